// Package mock provides a test double for the audio.Sink interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingosync/pkg/audio"
)

// Played records one completed or interrupted Play call.
type Played struct {
	Format audio.Format
	PCM    []byte
	Volume float64
	Err    error
}

// Sink is a mock audio.Sink. Play drains the clip and then, when Hold is set,
// blocks until Release is called or ctx is cancelled.
type Sink struct {
	// Hold makes every Play wait for Release after draining its clip.
	Hold bool

	// PlayErr, if non-nil, is returned by Play after draining the clip.
	PlayErr error

	mu       sync.Mutex
	played   []Played
	paused   bool
	playing  bool
	pauses   int
	resumes  int
	release  chan struct{}
	startedC chan struct{}
}

var _ audio.Sink = (*Sink)(nil)

// Play implements audio.Sink.
func (s *Sink) Play(ctx context.Context, clip audio.Clip) error {
	pcm, err := drain(ctx, clip.Audio)

	s.mu.Lock()
	s.playing = true
	s.paused = false
	rel := make(chan struct{})
	s.release = rel
	hold, playErr := s.Hold, s.PlayErr
	if s.startedC != nil {
		close(s.startedC)
		s.startedC = nil
	}
	s.mu.Unlock()

	if err == nil && hold {
		select {
		case <-rel:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err == nil {
		err = playErr
	}

	s.mu.Lock()
	s.playing = false
	s.paused = false
	s.played = append(s.played, Played{Format: clip.Format, PCM: pcm, Volume: clip.Volume, Err: err})
	s.mu.Unlock()
	return err
}

// Pause implements audio.Sink.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	if s.playing {
		s.paused = true
	}
}

// Resume implements audio.Sink.
func (s *Sink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	s.paused = false
}

// Release lets the clip currently held by Play finish.
func (s *Sink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release != nil {
		close(s.release)
		s.release = nil
	}
}

// Started returns a channel closed when the next Play call has drained its clip.
func (s *Sink) Started() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedC == nil {
		s.startedC = make(chan struct{})
	}
	return s.startedC
}

// Played returns a copy of the recorded clips.
func (s *Sink) Played() []Played {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Played, len(s.played))
	copy(out, s.played)
	return out
}

// Paused reports whether the sink is paused mid-clip.
func (s *Sink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Counts returns the number of Pause and Resume calls.
func (s *Sink) Counts() (pauses, resumes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses, s.resumes
}

func drain(ctx context.Context, ch <-chan []byte) ([]byte, error) {
	var out []byte
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out, nil
			}
			out = append(out, b...)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}
