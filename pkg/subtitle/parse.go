// Package subtitle converts serialized caption payloads into normalized cue
// sequences and back.
//
// Three formats are understood: SubRip (SRT), WebVTT and attribute-timed XML
// (TTML and the YouTube transcript variants). Parsing never fails: blocks
// that lack a valid timestamp or text are skipped, and a document with no
// usable blocks yields an empty slice.
//
// The timeline helpers ([FindAt], [IndexAt], [NextAfter], [Merge]) operate on
// cue slices in their given order and do not require sorted input.
package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/lingosync/pkg/types"
)

// Parse converts content into cues. When hint is [FormatUnknown] the format
// is chosen by [Detect].
func Parse(content string, hint Format) []types.Cue {
	if hint == FormatUnknown {
		hint = Detect(content)
	}
	switch hint {
	case FormatVTT:
		return ParseVTT(content)
	case FormatTTML:
		return ParseTTML(content)
	default:
		return ParseSRT(content)
	}
}

var (
	blockSepRe = regexp.MustCompile(`\n\s*\n`)
	srtTimeRe  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)
	vttTimeRe  = regexp.MustCompile(`^((?:\d+:)?\d{1,2}:\d{2}\.\d{1,3})\s*-->\s*((?:\d+:)?\d{1,2}:\d{2}\.\d{1,3})`)
)

// ParseSRT parses SubRip content. Each block needs an index line, a
// timestamp line and at least one text line; text lines are joined with a
// single space.
func ParseSRT(content string) []types.Cue {
	content = strings.TrimPrefix(normalizeNewlines(content), "\ufeff")
	blocks := blockSepRe.Split(strings.TrimSpace(content), -1)

	cues := make([]types.Cue, 0, len(blocks))
	for i, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		m := srtTimeRe.FindStringSubmatch(strings.TrimSpace(lines[1]))
		if m == nil {
			continue
		}
		cue := types.Cue{
			ID:    fmt.Sprintf("srt-%d", i+1),
			Start: clockSeconds(m[1], m[2], m[3], m[4]),
			End:   clockSeconds(m[5], m[6], m[7], m[8]),
			Text:  CleanText(strings.Join(lines[2:], " ")),
		}
		if !cue.Valid() {
			continue
		}
		cues = append(cues, cue)
	}
	return cues
}

// ParseVTT parses WebVTT content. The header block, NOTE, STYLE and REGION
// blocks are skipped. Cue settings after the end timestamp are ignored and
// the optional cue identifier line is not used.
func ParseVTT(content string) []types.Cue {
	lines := strings.Split(strings.TrimPrefix(normalizeNewlines(content), "\ufeff"), "\n")

	var (
		cues    []types.Cue
		pending *types.Cue
		text    []string
		skip    bool
		n       int
	)
	flush := func() {
		if pending == nil {
			return
		}
		pending.Text = CleanText(strings.Join(text, " "))
		if pending.Valid() {
			n++
			pending.ID = fmt.Sprintf("vtt-%d", n)
			cues = append(cues, *pending)
		}
		pending, text = nil, nil
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case i == 0 && strings.HasPrefix(line, "WEBVTT"):
			skip = true
			continue
		case line == "":
			flush()
			skip = false
			continue
		case skip:
			continue
		case pending == nil && isVTTMetaBlock(line):
			skip = true
			continue
		}

		if m := vttTimeRe.FindStringSubmatch(line); m != nil {
			flush()
			start, ok1 := parseClock(m[1])
			end, ok2 := parseClock(m[2])
			if !ok1 || !ok2 {
				continue
			}
			pending = &types.Cue{Start: start, End: end}
			continue
		}
		if pending != nil {
			text = append(text, line)
		}
	}
	flush()
	return cues
}

func isVTTMetaBlock(line string) bool {
	for _, kw := range []string{"NOTE", "STYLE", "REGION"} {
		if line == kw || strings.HasPrefix(line, kw+" ") || strings.HasPrefix(line, kw+"\t") {
			return true
		}
	}
	return false
}

// clockSeconds converts already-validated h, m, s, fraction digit groups.
// The fraction is read as a decimal fraction, so "5" means 500ms.
func clockSeconds(h, m, s, frac string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	for len(frac) < 3 {
		frac += "0"
	}
	ms, _ := strconv.Atoi(frac[:3])
	return float64(hh*3600+mm*60+ss) + float64(ms)/1000
}

// parseClock parses "HH:MM:SS.fff", "MM:SS.fff" or "HH:MM:SS" (with either
// '.' or ',' as the fraction separator) into seconds.
func parseClock(v string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, p := range parts {
		if i == len(parts)-1 {
			p = strings.Replace(p, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		total = total*60 + f
	}
	return total, true
}
