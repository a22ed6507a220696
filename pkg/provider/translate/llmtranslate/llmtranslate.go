// Package llmtranslate provides a translate.Provider that prompts an
// llm.Provider to translate subtitle text.
package llmtranslate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/MrWong99/lingosync/pkg/provider/llm"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024

	// detectConfidence is reported for detections; the model gives no score.
	detectConfidence = 0.7
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithStyle appends extra guidelines to the system prompt, such as
// "casual anime dialogue" or "formal documentary narration".
func WithStyle(style string) Option {
	return func(p *Provider) {
		p.style = style
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Provider) {
		p.temperature = t
	}
}

// Provider implements translate.Provider on top of an LLM.
type Provider struct {
	llm         llm.Provider
	name        string
	style       string
	temperature float64
}

var _ translate.Provider = (*Provider)(nil)

// New creates a Provider. name identifies the backing model in logs
// (e.g. "openai" or "ollama").
func New(p llm.Provider, name string, opts ...Option) (*Provider, error) {
	if p == nil {
		return nil, errors.New("llmtranslate: llm provider must not be nil")
	}
	if name == "" {
		name = "llm"
	}
	t := &Provider{llm: p, name: name, temperature: defaultTemperature}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return p.name }

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.systemPrompt(req.Source, req.Target),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: req.Text}},
		Temperature:  p.temperature,
		MaxTokens:    maxTokens(p.llm, req.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("llmtranslate: %s: %w", p.name, err)
	}
	text := cleanOutput(resp)
	if text == "" {
		return nil, fmt.Errorf("llmtranslate: %s: %w", p.name, translate.ErrEmptyResponse)
	}

	res := &translate.Result{Text: text}
	if req.Source != "" && req.Source != translate.Auto {
		res.DetectedSource = req.Source
	}
	return res, nil
}

// Detect implements translate.Provider.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "Identify the language of the user's text. Respond with ONLY its two-letter ISO 639-1 code, nothing else.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens:    8,
	})
	if err != nil {
		return nil, fmt.Errorf("llmtranslate: %s: detect: %w", p.name, err)
	}

	code := strings.ToLower(strings.Trim(cleanOutput(resp), " .\"'`"))
	base, err := language.ParseBase(code)
	if err != nil {
		return nil, fmt.Errorf("llmtranslate: %s: detect: unrecognised code %q: %w", p.name, code, err)
	}
	return &translate.Detection{Language: base.String(), Confidence: detectConfidence}, nil
}

func (p *Provider) systemPrompt(source, target string) string {
	from := "the detected source language"
	if source != "" && source != translate.Auto {
		from = LanguageName(source)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional subtitle translator. Translate the user's subtitle line from %s to %s. ", from, LanguageName(target))
	b.WriteString("Keep the translation concise and natural for subtitle display. ")
	b.WriteString("Respond with ONLY the translated text, without quotes, notes or explanations.")
	if p.style != "" {
		b.WriteString("\n\nStyle guidelines: ")
		b.WriteString(p.style)
	}
	return b.String()
}

// LanguageName returns the English display name of an ISO 639-1 code, or the
// code itself when it is unknown.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func maxTokens(p llm.Provider, text string) int {
	// Rough upper bound: translations rarely exceed three tokens per input rune.
	n := max(len([]rune(text))*3, 64)
	n = min(n, defaultMaxTokens)
	if limit := p.Capabilities().MaxOutputTokens; limit > 0 {
		n = min(n, limit)
	}
	return n
}

func cleanOutput(resp *llm.CompletionResponse) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Content)
}
