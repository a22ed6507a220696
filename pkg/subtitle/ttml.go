package subtitle

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/lingosync/pkg/types"
)

// DefaultCueDuration is used for timed-text elements that carry a start but
// neither an end nor a duration.
const DefaultCueDuration = 5.0

// ParseTTML parses attribute-timed XML captions: TTML/DFXP <p> elements,
// YouTube transcript <text start="" dur=""> elements and YouTube srv3
// <p t="" d=""> elements (milliseconds). Nested spans are flattened and
// <br/> becomes a space. Decoding stops at the first XML syntax error and the
// cues collected up to that point are returned.
func ParseTTML(content string) []types.Cue {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		cues  []types.Cue
		cur   *ttmlElem
		depth int
		n     int
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF or a syntax error; keep what was decoded.
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if cur == nil {
				if name == "p" || name == "text" {
					cur = newTTMLElem(t.Attr)
					depth = 1
				}
				continue
			}
			depth++
			if name == "br" {
				cur.text.WriteByte(' ')
			}
		case xml.EndElement:
			if cur == nil {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			if cue, ok := cur.cue(); ok {
				n++
				cue.ID = fmt.Sprintf("ttml-%d", n)
				cues = append(cues, cue)
			}
			cur = nil
		case xml.CharData:
			if cur != nil {
				cur.text.Write(t)
			}
		}
	}
	return cues
}

type ttmlElem struct {
	start, end, dur  float64
	hasStart, hasEnd bool
	hasDur           bool
	text             strings.Builder
}

// newTTMLElem reads the timing attributes. A present attribute whose value
// does not parse counts as 0.
func newTTMLElem(attrs []xml.Attr) *ttmlElem {
	e := &ttmlElem{}
	for _, a := range attrs {
		switch strings.ToLower(a.Name.Local) {
		case "begin", "start":
			e.start, _ = ParseTimeAttr(a.Value)
			e.hasStart = true
		case "t":
			e.start, _ = parseMillis(a.Value)
			e.hasStart = true
		case "end":
			e.end, _ = ParseTimeAttr(a.Value)
			e.hasEnd = true
		case "dur":
			e.dur, _ = ParseTimeAttr(a.Value)
			e.hasDur = true
		case "d":
			e.dur, _ = parseMillis(a.Value)
			e.hasDur = true
		}
	}
	return e
}

func (e *ttmlElem) cue() (types.Cue, bool) {
	if !e.hasStart {
		return types.Cue{}, false
	}
	end := e.start + DefaultCueDuration
	switch {
	case e.hasEnd:
		end = e.end
	case e.hasDur:
		end = e.start + e.dur
	}
	c := types.Cue{Start: e.start, End: end, Text: CleanText(e.text.String())}
	return c, c.Valid()
}

// ParseTimeAttr parses a TTML time expression into seconds. Accepted forms:
// offset times with a unit suffix ("12.5s", "1500ms", "2m", "1h"), clock
// times ("01:02:03.500", "02:03.5", "01:02:03:12" with frames at 30fps) and
// plain numbers, which are read as seconds.
func ParseTimeAttr(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if strings.Contains(v, ":") {
		parts := strings.Split(v, ":")
		if len(parts) == 4 {
			secs, ok := parseClock(strings.Join(parts[:3], ":"))
			frames, err := strconv.ParseFloat(parts[3], 64)
			if !ok || err != nil {
				return 0, false
			}
			return secs + frames/30, true
		}
		return parseClock(v)
	}

	scale := 1.0
	switch {
	case strings.HasSuffix(v, "ms"):
		v, scale = strings.TrimSuffix(v, "ms"), 0.001
	case strings.HasSuffix(v, "s"):
		v = strings.TrimSuffix(v, "s")
	case strings.HasSuffix(v, "m"):
		v, scale = strings.TrimSuffix(v, "m"), 60
	case strings.HasSuffix(v, "h"):
		v, scale = strings.TrimSuffix(v, "h"), 3600
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f * scale, true
}

func parseMillis(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f / 1000, true
}
