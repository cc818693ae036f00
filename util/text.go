package util

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns at most n runes of s. It never splits a multi-byte rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Abbreviate is Truncate with a trailing "..." when s was cut, for log output.
func Abbreviate(s string, n int) string {
	if t := Truncate(s, n); len(t) < len(s) {
		return t + "..."
	}
	return s
}

// MaskSecret hides all but the first visiblePrefix bytes of a secret.
// Short secrets are fully masked.
func MaskSecret(s string, visiblePrefix int) string {
	if len(s) <= visiblePrefix {
		return "***"
	}
	return s[:visiblePrefix] + "***"
}

// SanitizeEnvValue strips whitespace and one pair of matching surrounding
// quotes, as left behind by hand-edited env files.
func SanitizeEnvValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

// Coalesce returns the first non-zero value, or the zero value if all are zero.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
