package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/clock"
)

const (
	// audioLead is how far ahead of real time PCM is sent, so the client
	// buffer never runs dry.
	audioLead = 500 * time.Millisecond

	// paceStep bounds a single pacing sleep so pauses are noticed quickly.
	paceStep = 50 * time.Millisecond
)

// sender is the part of a session the sink writes through.
type sender interface {
	sendJSON(ctx context.Context, t Type, payload any) error
	sendBinary(ctx context.Context, data []byte) error
}

// wsSink streams clips to the client as binary frames. Sending is paced to
// real time so Play returns roughly when the client finishes playing, which
// keeps the speech controller's notion of "speaking" honest.
type wsSink struct {
	out sender
	clk clock.Clock

	playMu sync.Mutex

	mu      sync.Mutex
	playing bool
	paused  bool
	gate    chan struct{}
	since   time.Time
	played  time.Duration
}

var _ audio.Sink = (*wsSink)(nil)

func newSink(out sender, clk clock.Clock) *wsSink {
	return &wsSink{out: out, clk: clk}
}

// Play implements audio.Sink.
func (s *wsSink) Play(ctx context.Context, clip audio.Clip) error {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	vol := clip.Volume
	if vol <= 0 {
		vol = 1
	}
	if err := s.out.sendJSON(ctx, TypeAudioStart, AudioStartPayload{
		SampleRate: clip.Format.SampleRate,
		Channels:   clip.Format.Channels,
		Volume:     vol,
	}); err != nil {
		audio.Drain(clip.Audio)
		return err
	}

	s.mu.Lock()
	s.playing, s.paused, s.gate = true, false, nil
	s.since, s.played = s.clk.Now(), 0
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.playing, s.paused = false, false
		if s.gate != nil {
			close(s.gate)
			s.gate = nil
		}
		s.mu.Unlock()
	}()

	var sent time.Duration
	stop := func(err error) error {
		go audio.Drain(clip.Audio)
		_ = s.out.sendJSON(context.WithoutCancel(ctx), TypeAudioStop, nil)
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return stop(ctx.Err())
		case chunk, ok := <-clip.Audio:
			if !ok {
				if err := s.pace(ctx, sent, 0); err != nil {
					return stop(err)
				}
				return s.out.sendJSON(ctx, TypeAudioEnd, nil)
			}
			if err := s.pace(ctx, sent, audioLead); err != nil {
				return stop(err)
			}
			if err := s.out.sendBinary(ctx, chunk); err != nil {
				return stop(err)
			}
			sent += clip.Format.Duration(len(chunk))
		}
	}
}

// pace waits until no more than lead of the sent audio is still unplayed.
// Time spent paused does not count as played.
func (s *wsSink) pace(ctx context.Context, sent, lead time.Duration) error {
	for {
		s.mu.Lock()
		gate, paused := s.gate, s.paused
		played := s.played
		if !paused {
			played += s.clk.Now().Sub(s.since)
		}
		s.mu.Unlock()

		if paused {
			select {
			case <-gate:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		ahead := sent - played
		if ahead <= lead {
			return nil
		}
		if !clock.Sleep(s.clk, min(ahead-lead, paceStep), ctx.Done()) {
			return ctx.Err()
		}
	}
}

// Pause implements audio.Sink.
func (s *wsSink) Pause() {
	s.mu.Lock()
	if !s.playing || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.played += s.clk.Now().Sub(s.since)
	s.gate = make(chan struct{})
	s.mu.Unlock()
	_ = s.out.sendJSON(context.Background(), TypeAudioPause, nil)
}

// Resume implements audio.Sink.
func (s *wsSink) Resume() {
	s.mu.Lock()
	if !s.playing || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.since = s.clk.Now()
	close(s.gate)
	s.gate = nil
	s.mu.Unlock()
	_ = s.out.sendJSON(context.Background(), TypeAudioResume, nil)
}
