// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (ElevenLabs or a local Coqui
// server) and presents a uniform streaming interface. SynthesizeStream accepts
// a channel of text fragments and returns a channel of raw PCM as it becomes
// available, so playback can start before the whole utterance is rendered.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/lingosync/pkg/audio"
)

// Voice describes a voice offered by a provider.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the voice's BCP-47 tag or ISO 639-1 code, empty when the
	// voice is multilingual or the provider does not say.
	Language string

	// SpeedFactor adjusts speaking rate (0.5-2.0, 1.0 = default, 0 = default).
	SpeedFactor float64

	// PitchShift adjusts pitch (-10 to +10, 0 = default). Providers that
	// cannot shift pitch ignore it.
	PitchShift float64

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from text and returns a channel
	// that emits raw PCM in Format() as it is synthesised.
	//
	// The returned audio channel is closed when all text has been synthesised
	// or ctx is cancelled. The caller must drain it.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// during synthesis close the audio channel early.
	SynthesizeStream(ctx context.Context, text <-chan string, voice Voice) (<-chan []byte, error)

	// ListVoices returns all voices available from this provider.
	ListVoices(ctx context.Context) ([]Voice, error)

	// Format reports the PCM format emitted by SynthesizeStream.
	Format() audio.Format
}

// Single returns a closed channel carrying text as its only fragment.
func Single(text string) <-chan string {
	ch := make(chan string, 1)
	ch <- text
	close(ch)
	return ch
}

// Synthesize renders text completely and returns the PCM.
func Synthesize(ctx context.Context, p Provider, text string, voice Voice) ([]byte, error) {
	ch, err := p.SynthesizeStream(ctx, Single(text), voice)
	if err != nil {
		return nil, err
	}
	pcm := audio.Collect(ch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("tts: no audio produced for %q", truncate(text, 40))
	}
	return pcm, nil
}

// VoicesFor returns the voices whose Language matches lang by base language
// ("vi" matches "vi-VN"). Voices without a language are multilingual and
// always match.
func VoicesFor(voices []Voice, lang string) []Voice {
	base := strings.ToLower(strings.SplitN(lang, "-", 2)[0])
	var out []Voice
	for _, v := range voices {
		vl := strings.ToLower(v.Language)
		if vl == "" || vl == base || strings.HasPrefix(vl, base+"-") {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
