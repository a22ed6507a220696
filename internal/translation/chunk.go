package translation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the largest chunk, in characters, sent to a provider
// by [Client.TranslateLong].
const DefaultChunkSize = 1000

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// ChunkText splits text into trimmed, non-empty chunks of at most maxLen
// characters, breaking between sentences. Text that already fits is returned
// as a single chunk and blank text yields none. A sentence longer than maxLen
// is split between words; a single word longer than maxLen becomes its own
// chunk.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	add := func(piece string) {
		if utf8.RuneCountInString(cur.String())+utf8.RuneCountInString(piece) > maxLen {
			flush()
		}
		cur.WriteString(piece)
	}

	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		if utf8.RuneCountInString(strings.TrimSpace(sentence)) <= maxLen {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			add(word + " ")
		}
	}
	flush()
	return chunks
}
