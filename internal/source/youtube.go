package source

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
)

const defaultTimedTextURL = "https://www.youtube.com/api/timedtext"

// YouTube fetches the public timed text transcript of a YouTube video.
type YouTube struct {
	baseURL string
	fetcher
}

var _ Source = (*YouTube)(nil)

// NewYouTube returns a YouTube source. baseURL overrides the timed text
// endpoint and may be empty.
func NewYouTube(baseURL string, opts ...HTTPOption) *YouTube {
	if baseURL == "" {
		baseURL = defaultTimedTextURL
	}
	opts = append([]HTTPOption{WithFormat(subtitle.FormatTTML)}, opts...)
	return &YouTube{baseURL: baseURL, fetcher: newFetcher(opts)}
}

// Name implements Source.
func (y *YouTube) Name() string { return "youtube" }

// Subtitles implements Source. An empty lang asks for English.
func (y *YouTube) Subtitles(ctx context.Context, videoID, lang string) ([]types.Cue, error) {
	if lang == "" || lang == types.LanguageAuto {
		lang = "en"
	}
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)
	return y.get(ctx, "youtube", y.baseURL+"?"+q.Encode())
}

var (
	videoIDRe     = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)
)

// ExtractVideoID returns the 11 character video id of a YouTube watch or
// short link URL.
func ExtractVideoID(rawURL string) (string, bool) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseISODuration converts an ISO 8601 duration of the form PT#H#M#S into
// seconds. Unparseable input yields 0.
func ParseISODuration(s string) float64 {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var total float64
	for i, mult := range []float64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		total += v * mult
	}
	return total
}
