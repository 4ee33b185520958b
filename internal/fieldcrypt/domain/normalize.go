package domain

import (
	"strings"
	"unicode"
)

// Normalizer maps a raw value to the canonical form that is blind-indexed.
// The same normalizer must be used on write and on lookup.
type Normalizer func(string) string

// NormalizeEmail lowercases and trims: "  User@Example.COM " -> "user@example.com".
var NormalizeEmail Normalizer = func(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeIdentifier uppercases and trims, for document numbers and similar codes.
var NormalizeIdentifier Normalizer = func(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizePhone strips every whitespace rune: "+1 555 010 9999" -> "+15550109999".
var NormalizePhone Normalizer = func(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NormalizeNone is the identity normalizer (exact, case-sensitive match).
var NormalizeNone Normalizer = func(s string) string {
	return s
}
