// Package oto provides an audio.Sink that plays through the local speakers
// using github.com/ebitengine/oto/v3.
//
// oto allows a single context per process, so create one Sink and share it.
package oto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/lingosync/pkg/audio"
)

const pollInterval = 20 * time.Millisecond

// DefaultFormat is the device format used when New is given a zero format.
var DefaultFormat = audio.Format{SampleRate: 44100, Channels: 2}

// Sink implements audio.Sink on the default output device.
type Sink struct {
	otoCtx *oto.Context
	format audio.Format

	// playMu serializes Play calls.
	playMu sync.Mutex

	mu     sync.Mutex
	player *oto.Player
	paused bool
	closed bool
}

var _ audio.Sink = (*Sink)(nil)

// New initialises the audio device with format and waits until it is ready.
func New(format audio.Format) (*Sink, error) {
	if format.SampleRate == 0 || format.Channels == 0 {
		format = DefaultFormat
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: init audio device: %w", err)
	}
	<-ready
	return &Sink{otoCtx: otoCtx, format: format}, nil
}

// Format returns the device format.
func (s *Sink) Format() audio.Format { return s.format }

// Play implements audio.Sink. Clips in a different format are converted to the
// device format chunk by chunk.
func (s *Sink) Play(ctx context.Context, clip audio.Clip) error {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	src := clip.Audio
	if clip.Format != s.format {
		src = audio.ConvertStream(ctx, clip.Audio, clip.Format, s.format)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return audio.ErrClosed
	}
	player := s.otoCtx.NewPlayer(audio.NewReader(ctx, src))
	vol := clip.Volume
	if vol <= 0 {
		vol = 1
	}
	player.SetVolume(vol)
	s.player = player
	s.paused = false
	player.Play()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.player = nil
		s.paused = false
		s.mu.Unlock()
		player.Close()
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			closed, paused := s.closed, s.paused
			s.mu.Unlock()
			if closed {
				player.Pause()
				return audio.ErrClosed
			}
			if !paused && !player.IsPlaying() {
				return nil
			}
		}
	}
}

// Pause implements audio.Sink.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil || s.paused {
		return
	}
	s.paused = true
	s.player.Pause()
}

// Resume implements audio.Sink.
func (s *Sink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil || !s.paused {
		return
	}
	s.paused = false
	s.player.Play()
}

// Close stops any clip in progress. The device itself stays open for the
// lifetime of the process.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
