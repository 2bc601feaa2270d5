package feed

import (
	"regexp"
	"strings"
)

// MaxContentLength bounds the body text of RSS/Atom items, counted in characters.
const MaxContentLength = 280

var (
	markupTagPattern  = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}\x{FEFF}]+`)

	// Order matters: "&amp;lt;" decodes all the way to "<".
	entityReplacer = []struct{ from, to string }{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", `"`},
		{"&#39;", "'"},
		{"&nbsp;", " "},
	}
)

// Sanitize strips markup tags, decodes the six supported entities, collapses
// whitespace runs to a single space and trims the result.
func Sanitize(text string) string {
	text = markupTagPattern.ReplaceAllString(text, "")
	for _, e := range entityReplacer {
		text = strings.ReplaceAll(text, e.from, e.to)
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text to at most n characters. No ellipsis is appended.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
