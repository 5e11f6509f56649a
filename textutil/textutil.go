// Package textutil holds small string helpers shared by the summary,
// handler and notifier layers.
package textutil

// Truncate caps s at max runes and appends an ellipsis when text was cut.
// Slicing runes keeps multibyte characters intact; a byte slice could split
// one and produce invalid UTF-8.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
