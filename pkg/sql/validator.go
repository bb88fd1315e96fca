// Package sql provides validation and bounding of generated SQL. Generated
// queries fail closed: only a single read-only statement passes.
package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyQuery indicates the candidate was empty after normalization.
	ErrEmptyQuery = errors.New("empty SQL query")
	// ErrMultipleStatements indicates the candidate contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrNotReadOnly indicates the candidate is not a plain read statement.
	ErrNotReadOnly = errors.New("only SELECT statements are allowed")
	// ErrCommentsNotAllowed indicates the candidate contains SQL comments.
	ErrCommentsNotAllowed = errors.New("SQL comments are not allowed in generated queries")
)

// blockedKeywords are write/DDL/control operations that must never appear in
// a generated query, even inside subqueries or CTE bodies.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE",
	"CREATE", "GRANT", "REVOKE", "MERGE", "REPLACE", "EXEC", "EXECUTE", "CALL",
}

var blockedKeywordPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(blockedKeywords))
	for i, kw := range blockedKeywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}()

// ValidationResult contains the normalized SQL or the rejection reason.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateGenerated checks a generated candidate query and normalizes it.
//
// The validation order is:
//  1. Trim whitespace and strip the trailing semicolon (normalize)
//  2. Reject SQL comments
//  3. Reject multiple statements (any remaining semicolon outside strings)
//  4. Reject anything that is not a single SELECT (or read-only WITH)
//  5. Reject blocked write/DDL keywords anywhere outside string literals
//  6. Screen string literals for injection patterns
func ValidateGenerated(sqlQuery string) ValidationResult {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}

	if strings.Contains(normalized, "--") || strings.Contains(normalized, "/*") {
		return ValidationResult{Error: ErrCommentsNotAllowed}
	}

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	if !isReadStatement(normalized) {
		return ValidationResult{Error: ErrNotReadOnly}
	}

	// Blocked keywords are checked against the query with string literals
	// blanked so "SELECT * FROM t WHERE note = 'delete me'" passes.
	masked := maskStringLiterals(normalized)
	for i, pattern := range blockedKeywordPatterns {
		if pattern.MatchString(masked) {
			return ValidationResult{Error: fmt.Errorf("blocked SQL keyword %q: %w", blockedKeywords[i], ErrNotReadOnly)}
		}
	}

	if err := screenLiterals(normalized); err != nil {
		return ValidationResult{Error: err}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// modifyingCTEPattern matches CTEs that contain data-modifying operations,
// e.g. WITH deleted AS (DELETE FROM ...) SELECT * FROM deleted.
var modifyingCTEPattern = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)

// isReadStatement reports whether the statement is a SELECT or a read-only
// WITH. Modifying CTEs are rejected.
func isReadStatement(sqlQuery string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlQuery))

	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return true
	case strings.HasPrefix(upper, "WITH"):
		return !modifyingCTEPattern.MatchString(sqlQuery)
	default:
		return false
	}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Handle both backslash escape (\') and SQL standard escape ('').
			// For a doubled quote this exits and immediately re-enters on the
			// next quote, which correctly keeps us inside the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// maskStringLiterals replaces the contents of single-quoted string literals
// with spaces, preserving length and structure.
func maskStringLiterals(sqlQuery string) string {
	out := []rune(sqlQuery)
	inString := false
	prevChar := rune(0)

	for i, char := range sqlQuery {
		if inString {
			if char == '\'' && prevChar != '\\' {
				inString = false
			} else {
				out[i] = ' '
			}
		} else if char == '\'' {
			inString = true
		}
		prevChar = char
	}

	return string(out)
}

// stripTrailingSemicolon removes a trailing semicolon and surrounding whitespace.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
