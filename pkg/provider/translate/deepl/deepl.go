// Package deepl provides a translate.Provider backed by the DeepL v2 REST API.
//
// Keys ending in ":fx" belong to the free plan and are sent to
// api-free.deepl.com; all other keys use api.deepl.com.
package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

const (
	freeBaseURL    = "https://api-free.deepl.com/v2"
	proBaseURL     = "https://api.deepl.com/v2"
	defaultTimeout = 30 * time.Second

	// detectConfidence is reported for DeepL detections, which carry no score.
	detectConfidence = 0.9
)

// Option is a functional option for configuring the DeepL Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (without the /translate suffix).
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithFormality sets the DeepL formality parameter ("more", "less",
// "prefer_more", "prefer_less" or "default").
func WithFormality(f string) Option {
	return func(p *Provider) {
		p.formality = f
	}
}

// Provider implements translate.Provider using DeepL.
type Provider struct {
	apiKey     string
	baseURL    string
	formality  string
	httpClient *http.Client
}

var _ translate.Provider = (*Provider)(nil)

// New creates a DeepL Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepl: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    proBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	if strings.HasSuffix(apiKey, ":fx") {
		p.baseURL = freeBaseURL
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return "deepl" }

type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	form := url.Values{}
	form.Add("text", req.Text)
	form.Set("target_lang", LangCode(req.Target, true))
	if req.Source != "" && req.Source != translate.Auto {
		form.Set("source_lang", LangCode(req.Source, false))
	}
	if p.formality != "" {
		form.Set("formality", p.formality)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("deepl: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepl: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("deepl: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &translate.StatusError{Provider: "deepl", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var dr translateResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(dr.Translations) == 0 {
		return nil, fmt.Errorf("deepl: %w", translate.ErrEmptyResponse)
	}

	tr := dr.Translations[0]
	return &translate.Result{
		Text:           tr.Text,
		DetectedSource: strings.ToLower(tr.DetectedSourceLanguage),
	}, nil
}

// Detect implements translate.Provider. DeepL has no detection endpoint, so
// the text is translated to English and the reported source language is used.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	res, err := p.Translate(ctx, translate.Request{Text: text, Source: translate.Auto, Target: "en"})
	if err != nil {
		return nil, err
	}
	if res.DetectedSource == "" {
		return nil, fmt.Errorf("deepl: detect: %w", translate.ErrEmptyResponse)
	}
	return &translate.Detection{Language: res.DetectedSource, Confidence: detectConfidence}, nil
}

// LangCode converts an ISO 639-1 code to the DeepL form. Target languages
// need a regional variant for English and Portuguese.
func LangCode(code string, target bool) string {
	code = strings.ToLower(code)
	if target {
		switch code {
		case "en":
			return "EN-US"
		case "pt":
			return "PT-PT"
		case "zh":
			return "ZH-HANS"
		}
	}
	if code == "no" {
		return "NB"
	}
	return strings.ToUpper(code)
}
