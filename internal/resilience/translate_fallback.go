package resilience

import (
	"context"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

// TranslateFallback implements [translate.Provider] over an ordered list of
// translation backends, e.g. the official Google API first and the keyless
// endpoint second.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslateFallback)(nil)

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend. The breaker of each entry is named after the provider.
func NewTranslateFallback(primary translate.Provider, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{group: NewFallbackGroup(primary, primary.Name(), cfg)}
}

// AddFallback registers p after the existing backends.
func (f *TranslateFallback) AddFallback(p translate.Provider) {
	f.group.AddFallback(p.Name(), p)
}

// Name returns the primary's name.
func (f *TranslateFallback) Name() string { return f.group.Primary().Name() }

// Translate runs req against the first healthy backend.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (*translate.Result, error) {
		return p.Translate(ctx, req)
	})
}

// Detect runs language detection against the first healthy backend.
func (f *TranslateFallback) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	return ExecuteWithResult(ctx, f.group, func(p translate.Provider) (*translate.Detection, error) {
		return p.Detect(ctx, text)
	})
}

// Status reports the breaker state of every backend.
func (f *TranslateFallback) Status() []EntryStatus { return f.group.Status() }
