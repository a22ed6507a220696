package subtitle

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText decodes HTML entities, strips markup tags and collapses runs of
// whitespace into single spaces. Decoding and stripping repeat until the text
// is stable, so escaped markup such as "&lt;b&gt;" is removed as well and
// CleanText(CleanText(s)) == CleanText(s).
func CleanText(s string) string {
	for {
		next := tagRe.ReplaceAllString(html.UnescapeString(s), " ")
		if next == s {
			break
		}
		s = next
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
