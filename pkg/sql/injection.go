package sql

import (
	"fmt"
	"strings"

	"github.com/corazawaf/libinjection-go"
)

// screenLiterals runs each single-quoted string literal through the
// libinjection fingerprint detector. Generated queries should only carry
// plain comparison values; anything that fingerprints as SQLi is rejected.
func screenLiterals(sqlQuery string) error {
	for _, literal := range extractStringLiterals(sqlQuery) {
		if literal == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(literal); isSQLi {
			return fmt.Errorf("string literal matches injection fingerprint %q: %w", fingerprint, ErrNotReadOnly)
		}
	}
	return nil
}

// extractStringLiterals returns the contents of single-quoted literals,
// handling both backslash and doubled-quote escapes.
func extractStringLiterals(sqlQuery string) []string {
	var literals []string
	var current strings.Builder
	inString := false
	prevChar := rune(0)

	for _, char := range sqlQuery {
		if inString {
			if char == '\'' && prevChar != '\\' {
				literals = append(literals, current.String())
				current.Reset()
				inString = false
			} else {
				current.WriteRune(char)
			}
		} else if char == '\'' {
			inString = true
		}
		prevChar = char
	}

	return literals
}
