package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRecoveryAdvisor_KnownClasses(t *testing.T) {
	a := NewErrorRecoveryAdvisor()

	tests := []struct {
		name    string
		errText string
		want    string
	}{
		{"mysql unknown column", "Unknown column 'Foo' in 'field list'", "Column not found. Verify the exact column name with the schema tool before retrying."},
		{"sqlite no such column", "no such column: Foo", "Column not found. Verify the exact column name with the schema tool before retrying."},
		{"postgres missing table", `relation "albums" does not exist`, "Table not found. List the available tables first and use an exact table name."},
		{"sqlite no such table", "no such table: Albums", "Table not found. List the available tables first and use an exact table name."},
		{"mysql 1064", "You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version for the right syntax to use near 'FORM Album' at line 1", "SQL syntax error. Rewrite the query, checking quoting and clause order near the reported token."},
		{"duckdb parser error", "Parser Error: syntax error at or near \"FORM\"", "SQL syntax error. Rewrite the query, checking quoting and clause order near the reported token."},
		{"type mismatch", "Conversion Error: Could not convert string 'abc' to INT32", "Type mismatch. Check the column types with the schema tool and compare or cast with matching types."},
		{"access denied", "Access denied for user 'agent'@'localhost'", "Access denied. The current credentials cannot run this statement; stay within read-only queries."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Advise(tt.errText))
		})
	}
}

func TestErrorRecoveryAdvisor_FallsBackToGenericHint(t *testing.T) {
	a := NewErrorRecoveryAdvisor()

	for _, in := range []string{"", "something completely unexpected", "E_FROBNICATION at 0x44"} {
		hint := a.Advise(in)
		assert.Equal(t, genericRecoveryHint, hint, "input: %q", in)
		assert.NotEmpty(t, hint)
	}
}

func TestErrorRecoveryAdvisor_CaseInsensitive(t *testing.T) {
	a := NewErrorRecoveryAdvisor()
	assert.Equal(t, a.Advise("UNKNOWN COLUMN Foo"), a.Advise("unknown column Foo"))
}
