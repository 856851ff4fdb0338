package chat

import "strings"

// AIMention reports whether the message content addresses the AI
// participant. Addressed means a case-insensitive "@AI " or "@IA " prefix.
// Malformed is set when the prefix is present but the required space is
// missing, so the caller can reject the message instead of silently
// treating it as plain text.
func AIMention(content string) (addressed, malformed bool) {
	if len(content) < 3 {
		return false, false
	}

	prefix := strings.ToUpper(content[:3])
	if prefix != "@AI" && prefix != "@IA" {
		return false, false
	}

	if len(content) == 3 || content[3] != ' ' {
		return false, true
	}
	return true, false
}
