package services

import "strings"

// recoveryPattern maps substrings of a backend error message to a hint.
// Variants across backends (MySQL, Postgres, SQLite, DuckDB) are folded
// into one class each.
type recoveryPattern struct {
	needles []string
	hint    string
}

var recoveryPatterns = []recoveryPattern{
	{
		needles: []string{"unknown column", "column not found", "no such column", "could not find column", "not found in from clause"},
		hint:    "Column not found. Verify the exact column name with the schema tool before retrying.",
	},
	{
		needles: []string{"unknown table", "table not found", "no such table", "does not exist", "not found in catalog"},
		hint:    "Table not found. List the available tables first and use an exact table name.",
	},
	{
		needles: []string{"syntax error", "error in your sql syntax", "parse error", "parser error"},
		hint:    "SQL syntax error. Rewrite the query, checking quoting and clause order near the reported token.",
	},
	{
		needles: []string{"type mismatch", "cannot convert", "invalid input syntax", "conversion error", "incompatible type"},
		hint:    "Type mismatch. Check the column types with the schema tool and compare or cast with matching types.",
	},
	{
		needles: []string{"access denied", "permission denied", "not authorized"},
		hint:    "Access denied. The current credentials cannot run this statement; stay within read-only queries.",
	},
}

const genericRecoveryHint = "Re-inspect the schema with the schema tools and retry with a corrected query."

// ErrorRecoveryAdvisor maps a database error message to a short remediation
// hint. It is a total function: any input, the empty string included, yields
// a hint, and it never fails.
type ErrorRecoveryAdvisor struct{}

func NewErrorRecoveryAdvisor() *ErrorRecoveryAdvisor {
	return &ErrorRecoveryAdvisor{}
}

// Advise returns the hint for the first matching error class, or the
// generic hint when nothing matches.
func (a *ErrorRecoveryAdvisor) Advise(errText string) string {
	lower := strings.ToLower(errText)
	for _, p := range recoveryPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.hint
			}
		}
	}
	return genericRecoveryHint
}
