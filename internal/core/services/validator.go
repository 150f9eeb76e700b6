package services

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of a safety check on one SQL string.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// unsafeKeywords are the destructive or privilege-altering statements the
// validator flags. Matching is on whole tokens, case-insensitive, so column
// names like "updated_at" do not trip it.
var unsafeKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "UPDATE", "INSERT", "GRANT", "REVOKE",
}

var sqlTokenRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// QueryValidator performs a static, heuristic safety check on SQL text.
// The verdict is advisory: the agent decides whether to proceed, the
// validator never blocks execution itself. The keyword heuristic is
// deliberately simple and can be fooled by comments or encoding tricks;
// that behavior is part of the contract.
type QueryValidator struct{}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{}
}

// Validate checks one SQL string. Validating the same text twice always
// yields the same verdict.
func (v *QueryValidator) Validate(query string) Verdict {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Verdict{Safe: false, Reason: "empty query"}
	}

	// A terminator followed by anything else means statement stacking.
	body := strings.TrimRight(trimmed, "; \t\r\n")
	if strings.Contains(body, ";") {
		return Verdict{Safe: false, Reason: "multiple statements"}
	}

	for _, token := range sqlTokenRe.FindAllString(body, -1) {
		upper := strings.ToUpper(token)
		for _, kw := range unsafeKeywords {
			if upper == kw {
				return Verdict{Safe: false, Reason: fmt.Sprintf("contains destructive keyword %s", kw)}
			}
		}
	}

	return Verdict{Safe: true}
}
