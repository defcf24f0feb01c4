package store

import (
	"regexp"
	"strings"
)

// emojiPattern covers the emoji and pictograph unicode blocks that show up in
// user-written review text.
var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{1F900}-\x{1F9FF}\x{1FA70}-\x{1FAFF}\x{FE00}-\x{FE0F}\x{200D}]`)

var trailingJunk = regexp.MustCompile(`[.;,\s]+$`)

// CleanText normalizes user-written review text: emoji are stripped, runs of
// three or more identical characters collapse to two, whitespace collapses to
// single spaces, and trailing punctuation is trimmed.
func CleanText(text string) string {
	text = emojiPattern.ReplaceAllString(text, "")
	text = collapseRepeats(text)
	text = strings.Join(strings.Fields(text), " ")
	text = trailingJunk.ReplaceAllString(text, "")
	return text
}

// collapseRepeats caps any run of identical runes at two. Pattern
// backreferences are unavailable in RE2, so this is a plain scan.
func collapseRepeats(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var prev rune = -1
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
