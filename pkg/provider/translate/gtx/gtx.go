// Package gtx provides a keyless translate.Provider that uses the public
// Google Translate web endpoint (client=gtx). It needs no credentials and is
// used as the fallback when no API key is configured.
//
// The endpoint answers with positional JSON arrays:
//
//	[[["Xin chào","Hello",null,null,10]],null,"en",null,null,null,0.98,...]
//
// Element 0 holds the translated segments, element 2 the detected source
// language and element 6 (when present) the detection confidence.
package gtx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

const (
	defaultBaseURL = "https://translate.googleapis.com/translate_a/single"
	defaultTimeout = 10 * time.Second

	// DefaultConfidence is reported when the endpoint returns no confidence.
	DefaultConfidence = 0.9
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the endpoint URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements translate.Provider against the keyless web endpoint.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

var _ translate.Provider = (*Provider)(nil)

// New creates a keyless Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return "gtx" }

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	raw, err := p.fetch(ctx, req.Text, translate.SourceOrAuto(req.Source), req.Target)
	if err != nil {
		return nil, err
	}
	res, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if res.DetectedSource == "" && req.Source != "" && req.Source != translate.Auto {
		res.DetectedSource = req.Source
	}
	return res, nil
}

// Detect implements translate.Provider by translating to English and reading
// the detected source language.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	raw, err := p.fetch(ctx, text, translate.Auto, "en")
	if err != nil {
		return nil, err
	}
	res, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if res.DetectedSource == "" {
		return nil, fmt.Errorf("gtx: detect: %w", translate.ErrEmptyResponse)
	}
	return &translate.Detection{Language: res.DetectedSource, Confidence: res.Confidence}, nil
}

func (p *Provider) fetch(ctx context.Context, text, source, target string) ([]byte, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gtx: build request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gtx: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gtx: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &translate.StatusError{Provider: "gtx", Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// decode extracts the joined translation, detected language and confidence
// from the positional response.
func decode(data []byte) (*translate.Result, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("gtx: decode response: %w", err)
	}
	if len(top) == 0 {
		return nil, fmt.Errorf("gtx: %w", translate.ErrEmptyResponse)
	}

	var segments [][]any
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return nil, fmt.Errorf("gtx: decode segments: %w", err)
	}
	var b strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("gtx: %w", translate.ErrEmptyResponse)
	}

	res := &translate.Result{Text: b.String(), Confidence: DefaultConfidence}
	if len(top) > 2 {
		var lang string
		if json.Unmarshal(top[2], &lang) == nil {
			res.DetectedSource = lang
		}
	}
	if len(top) > 6 {
		var conf float64
		if json.Unmarshal(top[6], &conf) == nil && conf > 0 && conf <= 1 {
			res.Confidence = conf
		}
	}
	return res, nil
}
