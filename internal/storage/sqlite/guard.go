package sqlite

import (
	"errors"
	"strings"
)

var (
	ErrNotReadOnly        = errors.New("only SELECT queries are allowed")
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")
)

// NormalizeRead trims the statement, strips one trailing semicolon and
// rejects anything that is not a single SELECT. Semicolons inside string
// literals are tolerated.
func NormalizeRead(sqlText string) (string, error) {
	normalized := strings.TrimSpace(sqlText)
	normalized = strings.TrimSuffix(normalized, ";")
	normalized = strings.TrimSpace(normalized)

	if normalized == "" {
		return "", ErrNotReadOnly
	}
	if !strings.HasPrefix(strings.ToLower(normalized), "select") {
		return "", ErrNotReadOnly
	}
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	return normalized, nil
}

func hasSemicolonOutsideStrings(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	for _, ch := range sqlText {
		switch state {
		case stateNormal:
			switch ch {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			}
		}
	}
	return false
}
