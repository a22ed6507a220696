// Package google provides a translate.Provider backed by the Google Cloud
// Translation v2 REST API. It requires an API key.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

const (
	defaultBaseURL = "https://translation.googleapis.com/language/translate/v2"
	defaultTimeout = 15 * time.Second
)

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. The translate endpoint is the base
// URL itself, detection is served under <base>/detect.
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

// Provider implements translate.Provider using the official Google API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ translate.Provider = (*Provider)(nil)

// New creates a new Google Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return "google" }

type translateRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
	Format string `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type detectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	body := translateRequest{Q: req.Text, Target: req.Target, Format: "text"}
	if req.Source != "" && req.Source != translate.Auto {
		body.Source = req.Source
	}

	var resp translateResponse
	if err := p.post(ctx, p.baseURL, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Translations) == 0 {
		return nil, fmt.Errorf("google: %w", translate.ErrEmptyResponse)
	}

	tr := resp.Data.Translations[0]
	res := &translate.Result{
		Text:           html.UnescapeString(tr.TranslatedText),
		DetectedSource: tr.DetectedSourceLanguage,
	}
	if res.DetectedSource == "" && body.Source != "" {
		res.DetectedSource = body.Source
	}
	return res, nil
}

// Detect implements translate.Provider.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	var resp detectResponse
	if err := p.post(ctx, p.baseURL+"/detect", map[string]string{"q": text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Detections) == 0 || len(resp.Data.Detections[0]) == 0 {
		return nil, fmt.Errorf("google: detect: %w", translate.ErrEmptyResponse)
	}
	d := resp.Data.Detections[0][0]
	return &translate.Detection{Language: d.Language, Confidence: d.Confidence}, nil
}

// post sends body as JSON to endpoint with the API key as query parameter
// and decodes the JSON response into out.
func (p *Provider) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("google: marshal request: %w", err)
	}

	u := endpoint + "?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("google: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("google: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("google: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &translate.StatusError{Provider: "google", Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("google: decode response: %w", err)
	}
	return nil
}
