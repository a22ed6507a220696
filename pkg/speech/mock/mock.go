// Package mock provides a scriptable speech.Engine for tests.
//
// By default every utterance starts immediately and stays in progress until
// the test calls Finish or Fail on its [Playback]. Set AutoFinish to have
// utterances end on their own.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/pkg/speech"
)

// Engine is a mock implementation of speech.Engine.
type Engine struct {
	mu sync.Mutex

	// VoiceList is returned by Voices.
	VoiceList []speech.Voice

	// VoicesErr, if non-nil, is returned by Voices.
	VoicesErr error

	// SpeakErr, if non-nil, is returned by Speak.
	SpeakErr error

	// AutoFinish makes every playback end successfully right after starting.
	AutoFinish bool

	utterances []speech.Utterance
	playbacks  []*Playback
	voiceCalls int
}

var _ speech.Engine = (*Engine)(nil)

// Voices implements speech.Engine.
func (e *Engine) Voices(context.Context) ([]speech.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voiceCalls++
	if e.VoicesErr != nil {
		return nil, e.VoicesErr
	}
	return append([]speech.Voice(nil), e.VoiceList...), nil
}

// Speak implements speech.Engine.
func (e *Engine) Speak(_ context.Context, u speech.Utterance) (speech.Playback, error) {
	e.mu.Lock()
	e.utterances = append(e.utterances, u)
	if e.SpeakErr != nil {
		err := e.SpeakErr
		e.mu.Unlock()
		return nil, err
	}
	pb := newPlayback(u)
	e.playbacks = append(e.playbacks, pb)
	auto := e.AutoFinish
	e.mu.Unlock()

	pb.Start()
	if auto {
		pb.Finish()
	}
	return pb, nil
}

// Utterances returns a copy of every utterance passed to Speak.
func (e *Engine) Utterances() []speech.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]speech.Utterance(nil), e.utterances...)
}

// Playbacks returns every playback created so far, oldest first.
func (e *Engine) Playbacks() []*Playback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Playback(nil), e.playbacks...)
}

// Last returns the most recent playback, or nil.
func (e *Engine) Last() *Playback {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.playbacks) == 0 {
		return nil
	}
	return e.playbacks[len(e.playbacks)-1]
}

// VoiceCalls returns how often Voices was called.
func (e *Engine) VoiceCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voiceCalls
}

// Await polls until at least n utterances were requested or timeout elapses.
// It reports whether the count was reached.
func (e *Engine) Await(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		e.mu.Lock()
		got := len(e.utterances)
		e.mu.Unlock()
		if got >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Playback is a mock speech.Playback controlled by the test.
type Playback struct {
	// Utterance is what the engine was asked to speak.
	Utterance speech.Utterance

	started   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	doneOnce  sync.Once

	mu        sync.Mutex
	err       error
	paused    bool
	pauses    int
	resumes   int
	cancelled bool
}

var _ speech.Playback = (*Playback)(nil)

func newPlayback(u speech.Utterance) *Playback {
	return &Playback{Utterance: u, started: make(chan struct{}), done: make(chan struct{})}
}

// Start marks the playback as started.
func (p *Playback) Start() { p.startOnce.Do(func() { close(p.started) }) }

// Finish ends the playback successfully.
func (p *Playback) Finish() { p.end(nil) }

// Fail ends the playback with err.
func (p *Playback) Fail(err error) { p.end(err) }

func (p *Playback) end(err error) {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Started implements speech.Playback.
func (p *Playback) Started() <-chan struct{} { return p.started }

// Done implements speech.Playback.
func (p *Playback) Done() <-chan struct{} { return p.done }

// Err implements speech.Playback.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Pause implements speech.Playback.
func (p *Playback) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.pauses++
}

// Resume implements speech.Playback.
func (p *Playback) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.resumes++
}

// Cancel implements speech.Playback.
func (p *Playback) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	p.end(speech.ErrCancelled)
}

// Paused reports whether the playback is paused.
func (p *Playback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Cancelled reports whether Cancel was called.
func (p *Playback) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Counts returns the number of Pause and Resume calls.
func (p *Playback) Counts() (pauses, resumes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses, p.resumes
}
