package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 8 << 20
)

// HTTPOption is a functional option for [HTTP] and [YouTube] sources.
type HTTPOption func(*fetcher)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *fetcher) {
		f.client = c
	}
}

// WithFormat forces the subtitle format instead of detecting it from the
// response.
func WithFormat(format subtitle.Format) HTTPOption {
	return func(f *fetcher) {
		f.format = format
	}
}

type fetcher struct {
	client *http.Client
	format subtitle.Format
}

func newFetcher(opts []HTTPOption) fetcher {
	f := fetcher{client: &http.Client{Timeout: defaultTimeout}}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// get fetches rawURL and parses the body. A 404 yields no cues and no error.
func (f fetcher) get(ctx context.Context, name, rawURL string) ([]types.Cue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: %s: build request: %w", name, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: %s: request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("source: %s: read response: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: %s: unexpected status %d", name, resp.StatusCode)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return subtitle.Parse(string(data), f.format), nil
}

// HTTP fetches subtitle tracks from a URL template. The placeholders {video}
// and {lang} are replaced with the query-escaped video id and language.
type HTTP struct {
	template string
	fetcher
}

var _ Source = (*HTTP)(nil)

// NewHTTP returns an HTTP source for template, e.g.
// "https://cdn.example.com/subs/{video}/{lang}.vtt".
func NewHTTP(template string, opts ...HTTPOption) *HTTP {
	return &HTTP{template: template, fetcher: newFetcher(opts)}
}

// Name implements Source.
func (h *HTTP) Name() string { return "http" }

// Subtitles implements Source.
func (h *HTTP) Subtitles(ctx context.Context, videoID, lang string) ([]types.Cue, error) {
	r := strings.NewReplacer(
		"{video}", url.PathEscape(videoID),
		"{lang}", url.PathEscape(lang),
	)
	return h.get(ctx, "http", r.Replace(h.template))
}
