// Package ttsengine implements speech.Engine on top of a streaming TTS
// provider and an audio sink.
//
// Each utterance is synthesised by the provider and streamed straight into
// the sink, so playback begins with the first audio chunk. Pause and resume
// are forwarded to the sink.
package ttsengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	"github.com/MrWong99/lingosync/pkg/speech"
)

// ErrNoAudio is reported when the provider closed its stream without
// producing any audio.
var ErrNoAudio = errors.New("ttsengine: provider produced no audio")

// Option configures an [Engine].
type Option func(*Engine)

// WithLocal marks every voice as rendered on this machine. Use it for
// self-hosted providers such as a local Coqui server.
func WithLocal(local bool) Option {
	return func(e *Engine) { e.local = local }
}

// WithPitchRange sets the provider pitch shift applied for a pitch of 2.0
// (and its negation for 0.0). Default: 10.
func WithPitchRange(semitones float64) Option {
	return func(e *Engine) { e.pitchRange = semitones }
}

// Engine is a speech.Engine backed by a tts.Provider and an audio.Sink.
type Engine struct {
	provider   tts.Provider
	sink       audio.Sink
	name       string
	local      bool
	pitchRange float64
}

var _ speech.Engine = (*Engine)(nil)

// New returns an engine that synthesises with p and plays through sink.
// name is recorded as the provider of every listed voice.
func New(p tts.Provider, sink audio.Sink, name string, opts ...Option) *Engine {
	e := &Engine{provider: p, sink: sink, name: name, pitchRange: 10}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Voices lists the provider's voices. The first voice is reported as the
// default.
func (e *Engine) Voices(ctx context.Context) ([]speech.Voice, error) {
	vs, err := e.provider.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: %s: list voices: %w", e.name, err)
	}
	out := make([]speech.Voice, len(vs))
	for i, v := range vs {
		out[i] = speech.Voice{
			ID:      v.ID,
			Name:    v.Name,
			Lang:    v.Language,
			Local:   e.local,
			Default: i == 0,
		}
	}
	return out, nil
}

// Speak starts synthesis and playback of u.
func (e *Engine) Speak(ctx context.Context, u speech.Utterance) (speech.Playback, error) {
	pctx, cancel := context.WithCancel(ctx)
	voice := tts.Voice{
		ID:          u.Voice.ID,
		Name:        u.Voice.Name,
		Provider:    e.name,
		Language:    u.Language,
		SpeedFactor: u.Rate,
		PitchShift:  (u.Pitch - 1) * e.pitchRange,
	}
	pcm, err := e.provider.SynthesizeStream(pctx, tts.Single(u.Text), voice)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ttsengine: %s: synthesize: %w", e.name, err)
	}

	pb := &playback{
		sink:    e.sink,
		cancel:  cancel,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go pb.run(pctx, audio.Clip{Format: e.provider.Format(), Volume: u.Volume}, pcm)
	return pb, nil
}

type playback struct {
	sink    audio.Sink
	cancel  context.CancelFunc
	started chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	err       error
	cancelled bool
}

func (p *playback) run(ctx context.Context, clip audio.Clip, pcm <-chan []byte) {
	defer close(p.done)
	defer p.cancel()

	var first []byte
	select {
	case b, ok := <-pcm:
		if !ok {
			p.setErr(ErrNoAudio)
			return
		}
		first = b
	case <-ctx.Done():
		go audio.Drain(pcm)
		p.setErr(ctx.Err())
		return
	}
	close(p.started)

	relay := make(chan []byte, 1)
	relay <- first
	go func() {
		defer close(relay)
		for b := range pcm {
			select {
			case relay <- b:
			case <-ctx.Done():
				go audio.Drain(pcm)
				return
			}
		}
	}()
	clip.Audio = relay

	p.setErr(p.sink.Play(ctx, clip))
}

func (p *playback) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		p.err = speech.ErrCancelled
		return
	}
	p.err = err
}

func (p *playback) Started() <-chan struct{} { return p.started }
func (p *playback) Done() <-chan struct{}    { return p.done }

func (p *playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *playback) Pause()  { p.sink.Pause() }
func (p *playback) Resume() { p.sink.Resume() }

func (p *playback) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.cancel()
}
