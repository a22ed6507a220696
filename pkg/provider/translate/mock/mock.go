// Package mock provides a test double for the translate.Provider interface.
//
// By default Provider "translates" by prefixing the text with the target
// language in brackets ("[vi] Hello"), which keeps test expectations readable.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// TranslateFunc, if set, computes every Translate result.
	TranslateFunc func(ctx context.Context, req translate.Request) (*translate.Result, error)

	// TranslateErr, if non-nil, is returned by Translate when TranslateFunc is nil.
	TranslateErr error

	// DetectResult is returned by Detect.
	DetectResult *translate.Detection

	// DetectErr, if non-nil, is returned by Detect.
	DetectErr error

	// Block, if non-nil, makes Translate wait until it is closed or ctx is done.
	Block chan struct{}

	translateCalls []translate.Request
	detectCalls    []string
}

var _ translate.Provider = (*Provider)(nil)

// Name implements translate.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Translate records the call and returns the configured result.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	p.mu.Lock()
	p.translateCalls = append(p.translateCalls, req)
	fn, err, block := p.TranslateFunc, p.TranslateErr, p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &translate.Result{Text: "[" + req.Target + "] " + req.Text, DetectedSource: "en", Confidence: 0.9}, nil
}

// Detect records the call and returns DetectResult, DetectErr.
func (p *Provider) Detect(_ context.Context, text string) (*translate.Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detectCalls = append(p.detectCalls, text)
	if p.DetectErr != nil {
		return nil, p.DetectErr
	}
	if p.DetectResult == nil {
		return &translate.Detection{Language: "en", Confidence: 0.9}, nil
	}
	d := *p.DetectResult
	return &d, nil
}

// TranslateCalls returns a copy of the recorded Translate requests.
func (p *Provider) TranslateCalls() []translate.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]translate.Request, len(p.translateCalls))
	copy(out, p.translateCalls)
	return out
}

// DetectCalls returns a copy of the texts passed to Detect.
func (p *Provider) DetectCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.detectCalls))
	copy(out, p.detectCalls)
	return out
}

// SetTranslateErr replaces TranslateErr under the lock.
func (p *Provider) SetTranslateErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranslateErr = err
}
