package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
	translatemock "github.com/MrWong99/lingosync/pkg/provider/translate/mock"
)

func TestTranslateFallback_Failover(t *testing.T) {
	t.Parallel()

	official := &translatemock.Provider{
		ProviderName: "google",
		TranslateErr: &translate.StatusError{Provider: "google", Code: 503},
	}
	keyless := &translatemock.Provider{ProviderName: "gtx"}

	fb := NewTranslateFallback(official, FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}})
	fb.AddFallback(keyless)

	if fb.Name() != "google" {
		t.Fatalf("Name() = %q", fb.Name())
	}

	req := translate.Request{Text: "Hello", Source: translate.Auto, Target: "vi"}
	for range 3 {
		res, err := fb.Translate(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "[vi] Hello" {
			t.Fatalf("Text = %q", res.Text)
		}
	}

	if n := len(official.TranslateCalls()); n != 2 {
		t.Errorf("official called %d times, want 2 before the breaker opened", n)
	}
	if n := len(keyless.TranslateCalls()); n != 3 {
		t.Errorf("keyless called %d times, want 3", n)
	}
	st := fb.Status()
	if st[0].Name != "google" || st[0].State != StateOpen || st[1].Name != "gtx" {
		t.Errorf("status = %+v", st)
	}
}

func TestTranslateFallback_Detect(t *testing.T) {
	t.Parallel()

	primary := &translatemock.Provider{ProviderName: "a", DetectErr: errors.New("boom")}
	secondary := &translatemock.Provider{ProviderName: "b", DetectResult: &translate.Detection{Language: "ja", Confidence: 0.8}}

	fb := NewTranslateFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	d, err := fb.Detect(context.Background(), "こんにちは")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Language != "ja" {
		t.Fatalf("Language = %q, want ja", d.Language)
	}
}

func TestTranslateFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewTranslateFallback(&translatemock.Provider{TranslateErr: errTest}, FallbackConfig{})
	_, err := fb.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"})
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Fatalf("err = %v", err)
	}
}
