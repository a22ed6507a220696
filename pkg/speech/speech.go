// Package speech turns translated cues into spoken audio.
//
// The [Controller] wraps a platform voice synthesis [Engine] and guarantees
// that at most one utterance is active at any time: starting a new utterance
// always cancels the previous one first. Each call to [Controller.Speak]
// returns a one-shot [Completion] that resolves exactly once, when the engine
// reports the end of the utterance or an error.
//
// Engines live in subpackages: [github.com/MrWong99/lingosync/pkg/speech/ttsengine]
// renders speech through a TTS provider and an audio sink, and
// [github.com/MrWong99/lingosync/pkg/speech/mock] is a scriptable test double.
package speech

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCancelled is reported for an utterance that was stopped before it
	// finished, either explicitly or because a newer utterance replaced it.
	ErrCancelled = errors.New("speech: utterance cancelled")

	// ErrNoEngine is reported when the controller has no engine to speak with.
	ErrNoEngine = errors.New("speech: no engine configured")
)

// Voice is a voice offered by an [Engine].
type Voice struct {
	ID   string
	Name string

	// Lang is a BCP-47 tag such as "vi-VN". It may be a bare base language.
	Lang string

	// Local marks voices rendered on this machine rather than by a remote
	// service.
	Local bool

	// Default marks the engine's preferred voice.
	Default bool
}

// Utterance is one fully resolved speech request handed to an [Engine].
type Utterance struct {
	Text     string
	Language string
	Voice    Voice
	Rate     float64
	Pitch    float64
	Volume   float64
}

// Playback is the handle for an utterance in progress.
type Playback interface {
	// Started is closed once audio output has begun.
	Started() <-chan struct{}

	// Done is closed when the utterance has ended for any reason.
	Done() <-chan struct{}

	// Err reports why the utterance ended. It is nil on natural completion
	// and [ErrCancelled] after Cancel. Only valid once Done is closed.
	Err() error

	Pause()
	Resume()

	// Cancel stops the utterance. Done is closed promptly afterwards.
	Cancel()
}

// Engine is the platform voice synthesis the controller drives.
type Engine interface {
	// Voices lists the available voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak starts rendering u and returns immediately. A non-nil error means
	// the utterance never started.
	Speak(ctx context.Context, u Utterance) (Playback, error)
}

// Options are the per-utterance synthesis settings. Zero fields fall back to
// the controller defaults, so a zero Volume cannot express silence.
type Options struct {
	// Language is a BCP-47 tag ("vi-VN").
	Language string

	Rate   float64
	Pitch  float64
	Volume float64

	// Voice selects a voice by ID or name. Empty or "default" picks the best
	// voice for Language.
	Voice string
}

// DefaultOptions returns the built-in utterance defaults.
func DefaultOptions() Options {
	return Options{
		Language: "vi-VN",
		Rate:     1,
		Pitch:    1,
		Volume:   0.8,
	}
}

// Or returns o with every zero field replaced by the value from def.
func (o Options) Or(def Options) Options {
	if o.Language == "" {
		o.Language = def.Language
	}
	if o.Rate == 0 {
		o.Rate = def.Rate
	}
	if o.Pitch == 0 {
		o.Pitch = def.Pitch
	}
	if o.Volume == 0 {
		o.Volume = def.Volume
	}
	if o.Voice == "" {
		o.Voice = def.Voice
	}
	return o
}

// Callbacks are optional per-utterance hooks. They run on the controller's
// watcher goroutine and must not call Speak or Stop synchronously.
type Callbacks struct {
	OnStart  func()
	OnEnd    func()
	OnError  func(error)
	OnPause  func()
	OnResume func()
}

// Completion is the one-shot result of [Controller.Speak].
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed when the utterance has ended.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the outcome. Only valid once Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the utterance ends or ctx is done. Giving up on ctx does
// not stop the utterance.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capabilities summarizes what the engine can do.
type Capabilities struct {
	Supported  bool     `json:"supported"`
	VoiceCount int      `json:"voiceCount"`
	Languages  []string `json:"languages"`
}
