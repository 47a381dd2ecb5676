package chat

import "strings"

// TypingSummary phrases the typing-indicator line for the given users:
// empty for none, singular for one, "and" for two, and a collective phrase
// beyond that.
func TypingSummary(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing..."
	case 2:
		return users[0] + " and " + users[1] + " are typing..."
	default:
		return strings.Join(users[:len(users)-1], ", ") + " and " + users[len(users)-1] + " are typing..."
	}
}
