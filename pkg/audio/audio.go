// Package audio defines the playback boundary for synthesized speech.
//
// All PCM handled by this package is signed 16-bit little-endian, interleaved
// when Channels > 1. A [Sink] plays one [Clip] at a time; speech backends feed
// it the audio produced by a TTS provider and use Pause/Resume to follow the
// video.
package audio

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrClosed is returned by Play once a sink has been closed.
var ErrClosed = errors.New("audio: sink closed")

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the playback length of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Clip is a single utterance of streamed PCM.
type Clip struct {
	Format Format

	// Audio delivers PCM chunks. The producer closes it when the utterance
	// is complete.
	Audio <-chan []byte

	// Volume in [0, 1]. Zero is treated as 1.
	Volume float64
}

// Sink plays clips.
type Sink interface {
	// Play blocks until the clip has been played completely, ctx is cancelled
	// or the sink is closed. Cancelling ctx stops playback immediately.
	Play(ctx context.Context, clip Clip) error

	// Pause suspends the clip currently playing. Pause with nothing playing
	// is a no-op.
	Pause()

	// Resume continues a paused clip.
	Resume()
}

// Collect drains ch and returns the concatenated PCM.
func Collect(ch <-chan []byte) []byte {
	var out []byte
	for b := range ch {
		out = append(out, b...)
	}
	return out
}

// Chunks returns a closed channel delivering pcm in pieces of at most size bytes.
func Chunks(pcm []byte, size int) <-chan []byte {
	if size <= 0 {
		size = len(pcm)
	}
	ch := make(chan []byte, len(pcm)/max(size, 1)+1)
	for len(pcm) > 0 {
		n := min(size, len(pcm))
		ch <- pcm[:n]
		pcm = pcm[n:]
	}
	close(ch)
	return ch
}

// Reader adapts a PCM channel to an io.Reader. Reads block until a chunk is
// available; io.EOF is returned once the channel is closed and drained.
type Reader struct {
	ctx context.Context
	ch  <-chan []byte
	buf []byte
}

// NewReader returns a Reader over ch that gives up with ctx.Err() when ctx is done.
func NewReader(ctx context.Context, ch <-chan []byte) *Reader {
	return &Reader{ctx: ctx, ch: ch}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		select {
		case b, ok := <-r.ch:
			if !ok {
				return 0, io.EOF
			}
			r.buf = b
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Scale multiplies every 16-bit sample in pcm by gain in place.
func Scale(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		v := float64(sampleAt(pcm, i/2)) * gain
		v = max(min(v, 32767), -32768)
		s := int16(v)
		pcm[i] = byte(s)
		pcm[i+1] = byte(s >> 8)
	}
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}
