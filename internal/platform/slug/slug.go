// Package slug turns names into identifiers that are safe in paths and
// office ids.
package slug

import "strings"

const maxLen = 64

// Make lowercases input and collapses every run of characters outside
// [a-z0-9] into a single dash. The result is never empty and at most 64
// bytes long.
func Make(input string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	s := b.String()
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return "unnamed"
	}
	return s
}

// Valid reports whether s is already a slug.
func Valid(s string) bool {
	return s != "" && Make(s) == s
}
