package shared

// Truncate returns s shortened to at most n characters. Log details and
// prompt snippets are capped with this before storage or display.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
