package subtitle

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// Format identifies a serialized subtitle format.
type Format int

const (
	// FormatUnknown asks [Parse] to detect the format from the content.
	FormatUnknown Format = iota
	// FormatSRT is SubRip: numbered blocks with HH:MM:SS,mmm timestamps.
	FormatSRT
	// FormatVTT is WebVTT: a WEBVTT header followed by HH:MM:SS.mmm cues.
	FormatVTT
	// FormatTTML covers TTML and the YouTube XML transcript, both of which
	// carry timing in element attributes.
	FormatTTML
)

// String returns the lower-case short name of the format.
func (f Format) String() string {
	switch f {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	case FormatTTML:
		return "ttml"
	default:
		return "unknown"
	}
}

// ParseFormat converts a short name ("srt", "vtt", "webvtt", "ttml", "xml")
// into a [Format]. Unknown names yield [FormatUnknown].
func ParseFormat(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "srt":
		return FormatSRT
	case "vtt", "webvtt":
		return FormatVTT
	case "ttml", "dfxp", "xml", "srv3":
		return FormatTTML
	default:
		return FormatUnknown
	}
}

// FormatFromExt returns the format implied by the file extension of path.
func FormatFromExt(path string) Format {
	return ParseFormat(filepath.Ext(path))
}

var srtHeadRe = regexp.MustCompile(`^\d+\s*\n\d{2}:\d{2}:\d{2},\d{3}`)

// Detect guesses the format of content. The checks run in a fixed order:
// a leading WEBVTT header, then an XML or transcript marker, then an SRT
// index/timestamp head. Anything else is treated as SRT and logged.
func Detect(content string) Format {
	trimmed := strings.TrimSpace(strings.TrimPrefix(normalizeNewlines(content), "\ufeff"))

	switch {
	case strings.HasPrefix(trimmed, "WEBVTT"):
		return FormatVTT
	case strings.Contains(trimmed, "<?xml"),
		strings.Contains(trimmed, "<tt "),
		strings.Contains(trimmed, "<tt>"),
		strings.Contains(trimmed, "<transcript>"),
		strings.Contains(trimmed, "<timedtext"):
		return FormatTTML
	case srtHeadRe.MatchString(trimmed):
		return FormatSRT
	}

	slog.Warn("subtitle: unknown format, assuming srt", "bytes", len(content))
	return FormatSRT
}
