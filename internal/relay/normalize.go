// Package relay bridges Twitch chat rooms and Discord text channels in both
// directions. Each configured room gets its own IRC connection with an explicit
// state machine; a shared guard suppresses redeliveries and provenance-tagged
// echoes so a message never bounces between the two sides.
package relay

import "strings"

// invisible runes that chat clients smuggle into messages: zero-width
// characters and directional formatting controls. Both keyspaces of the guard
// key on normalized text, so these must not defeat duplicate detection.
func isStrippedRune(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u2060': // zero-width
		return true
	case '\u200E', '\u200F': // LRM / RLM
		return true
	}
	if r >= '\u202A' && r <= '\u202E' { // embedding / override controls
		return true
	}
	if r >= '\u2066' && r <= '\u2069' { // isolate controls
		return true
	}
	return false
}

// Normalize strips zero-width and directional control characters, collapses
// whitespace runs to a single space and trims. Idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if isStrippedRune(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}
