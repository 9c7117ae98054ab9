package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle prepares chat text for use as a video title. Text is NFC
// normalized, control characters become spaces, surrounding whitespace is
// trimmed, and the result is cut to maxRunes characters. An empty result means
// the title is unusable.
func NormalizeTitle(text string, maxRunes int) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	return Truncate(text, maxRunes)
}

// Truncate cuts s to at most maxRunes characters. Non-positive limits return
// s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		count++
	}
	return s
}

// TruncateTail keeps the last maxRunes characters of s. When anything is cut
// the result starts with an ellipsis, which counts toward the limit.
// Non-positive limits return s unchanged.
func TruncateTail(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	i := len(s)
	for n := 1; n < maxRunes; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return "…" + strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
