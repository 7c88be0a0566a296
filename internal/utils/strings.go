package utils

// TruncateString shortens s to at most maxLen runes, appending an ellipsis
// when truncation occurs.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Ptr returns a pointer to v. Handy for optional wire fields.
func Ptr[T any](v T) *T {
	return &v
}
