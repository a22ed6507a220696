// Package translate defines the Provider interface for machine translation
// backends.
//
// A translation provider wraps a remote translation service (the Google Cloud
// Translation v2 API, the keyless Google web endpoint, DeepL, or an LLM) and
// presents a uniform text-in, text-out interface. Caching, batching and
// fallback between providers live one level up in the translation client;
// providers only perform a single request per call and report failures.
//
// Implementations must be safe for concurrent use.
package translate

import (
	"context"
	"errors"
	"fmt"
)

// Auto is the source language value asking the provider to detect the
// language of the input itself.
const Auto = "auto"

// ErrEmptyResponse is returned when a provider answers successfully but the
// response carries no translation.
var ErrEmptyResponse = errors.New("translate: empty response")

// Request is a single translation request.
type Request struct {
	// Text is the input text. Providers translate it verbatim.
	Text string

	// Source is the ISO 639-1 source language code or [Auto].
	Source string

	// Target is the ISO 639-1 target language code.
	Target string
}

// Result is a provider's answer to a [Request].
type Result struct {
	// Text is the translated text.
	Text string

	// DetectedSource is the source language reported by the provider. It is
	// empty when the provider does not report one.
	DetectedSource string

	// Confidence is the provider's confidence in DetectedSource in [0, 1],
	// or 0 when unknown.
	Confidence float64
}

// Detection is the outcome of language detection.
type Detection struct {
	Language   string
	Confidence float64
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Name identifies the provider in logs, metrics and circuit breakers.
	Name() string

	// Translate translates req.Text from req.Source to req.Target. It returns
	// an error when the service cannot be reached, rejects the request or
	// returns an unusable response. It never substitutes the input text.
	Translate(ctx context.Context, req Request) (*Result, error)

	// Detect reports the language of text.
	Detect(ctx context.Context, text string) (*Detection, error)
}

// StatusError is returned by HTTP-based providers when the service answers
// with a non-2xx status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("translate: %s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("translate: %s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status signals a transient failure
// (rate limiting or a server-side error).
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// SourceOrAuto returns src, or [Auto] when src is empty.
func SourceOrAuto(src string) string {
	if src == "" {
		return Auto
	}
	return src
}
