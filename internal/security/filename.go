// Package security holds helpers for turning untrusted identifiers into
// values that are safe to hand to a filesystem or an HTTP header.
package security

import "strings"

const maxFilenameLen = 128

// SanitizeFilename makes a safe filename from an arbitrary string such as a
// run ID. Each run of characters other than ASCII letters, digits, '.' and
// '-' becomes a single underscore, leading and trailing dots and underscores
// are trimmed, and the result is capped at 128 bytes. An empty result is
// "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
