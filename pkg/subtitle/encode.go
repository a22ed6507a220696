package subtitle

import (
	"fmt"
	"math"
	"strings"

	"github.com/MrWong99/lingosync/pkg/types"
)

// TextMode selects which cue text is written by [Encode].
type TextMode int

const (
	// TextOriginal writes Cue.Text.
	TextOriginal TextMode = iota
	// TextTranslated writes Cue.TranslatedText, falling back to Cue.Text.
	TextTranslated
	// TextBoth writes the translation below the original line.
	TextBoth
)

// ToSRT serializes cues as SubRip with 1-based sequential indices.
func ToSRT(cues []types.Cue) string {
	return Encode(cues, FormatSRT, TextOriginal)
}

// ToVTT serializes cues as WebVTT.
func ToVTT(cues []types.Cue) string {
	return Encode(cues, FormatVTT, TextOriginal)
}

// Encode serializes cues in the given format. TTML output is not supported
// and falls back to SRT.
func Encode(cues []types.Cue, f Format, mode TextMode) string {
	var b strings.Builder
	if f == FormatVTT {
		b.WriteString("WEBVTT\n\n")
	}
	for i, c := range cues {
		if i > 0 {
			b.WriteByte('\n')
		}
		if f == FormatVTT {
			fmt.Fprintf(&b, "%s --> %s\n", FormatVTTTime(c.Start), FormatVTTTime(c.End))
		} else {
			fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, FormatSRTTime(c.Start), FormatSRTTime(c.End))
		}
		b.WriteString(cueText(c, mode))
		b.WriteByte('\n')
	}
	return b.String()
}

func cueText(c types.Cue, mode TextMode) string {
	switch mode {
	case TextTranslated:
		return c.Display()
	case TextBoth:
		if c.TranslatedText != "" && c.TranslatedText != c.Text {
			return c.Text + "\n" + c.TranslatedText
		}
	}
	return c.Text
}

// FormatSRTTime formats seconds as HH:MM:SS,mmm.
func FormatSRTTime(sec float64) string {
	h, m, s, ms := splitTime(sec)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatVTTTime formats seconds as HH:MM:SS.mmm.
func FormatVTTTime(sec float64) string {
	h, m, s, ms := splitTime(sec)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitTime(sec float64) (h, m, s, ms int64) {
	if sec < 0 {
		sec = 0
	}
	total := int64(math.Round(sec * 1000))
	ms = total % 1000
	total /= 1000
	s = total % 60
	total /= 60
	m = total % 60
	h = total / 60
	return h, m, s, ms
}
