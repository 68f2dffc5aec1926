package sqlgen

import "strings"

// Clean normalizes a raw model response into a bare SQL statement: code
// fences dropped, everything before the first SELECT discarded, trailing
// semicolon stripped. Idempotent, so repaired candidates can be cleaned
// again safely.
func Clean(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.ReplaceAll(cleaned, "```sql", "")
	}
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if idx := strings.Index(strings.ToLower(cleaned), "select"); idx != -1 {
		cleaned = cleaned[idx:]
	}

	cleaned = strings.TrimSuffix(cleaned, ";")

	return strings.TrimSpace(cleaned)
}

// IsSelect reports whether cleaned text is usable as a read query.
func IsSelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sqlText)), "select")
}
