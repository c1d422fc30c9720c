package cache

import (
	"strings"
	"unicode"
)

// Normalize folds a raw question into its fingerprint: lowercase, whitespace
// runs collapsed to one space, trailing punctuation removed. Questions that
// differ only in casing, spacing or trailing punctuation share a fingerprint.
func Normalize(raw string) string {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
