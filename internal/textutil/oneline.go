package textutil

import (
	"strings"
	"unicode/utf8"
)

// OneLine collapses every run of whitespace into a single space and keeps at
// most limit characters, marking a cut with "...".
func OneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
