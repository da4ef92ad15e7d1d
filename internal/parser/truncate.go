package parser

import "unicode/utf8"

// Truncate cuts s to at most max bytes without splitting a UTF-8 codepoint,
// walking back from the limit to the nearest rune boundary. Summaries built
// from shell commands and tool inputs are bounded with this so multibyte
// text never gets corrupted.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// truncateEllipsis marks truncation with a trailing "..." when it happens.
func truncateEllipsis(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return Truncate(s, max) + "..."
}
