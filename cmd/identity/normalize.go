package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (plus-addressing,
// unicode confusables) can be added later behind a versioned policy.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeFullName trims surrounding whitespace and collapses inner runs.
func NormalizeFullName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
