package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a 16-bit PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FormatConverter converts PCM chunks from one format to another. It logs once
// on the first conversion and drops chunks that are not sample aligned.
// Create one per stream; not designed for shared use across goroutines.
type FormatConverter struct {
	From, To Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts one chunk. When the formats match the chunk is returned
// unchanged. Stereo input bound for mono is downmixed before resampling;
// mono input bound for stereo is resampled before it is duplicated.
func (c *FormatConverter) Convert(pcm []byte) []byte {
	if len(pcm)%(2*max(c.From.Channels, 1)) != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: PCM not sample aligned, dropping chunk",
				"bytes", len(pcm), "format", c.From.String())
		})
		return nil
	}
	if c.From == c.To {
		return pcm
	}
	c.warnedMismatch.Do(func() {
		slog.Debug("audio converter: converting", "from", c.From.String(), "to", c.To.String())
	})
	return Convert(pcm, c.From, c.To)
}

// Convert converts 16-bit PCM between formats. Only mono and stereo are
// supported; other channel counts are returned unchanged.
func Convert(pcm []byte, from, to Format) []byte {
	if from == to || from.Channels > 2 || to.Channels > 2 {
		return pcm
	}
	channels := from.Channels
	if channels == 2 && to.Channels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	if from.SampleRate != to.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, from.SampleRate, to.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, from.SampleRate, to.SampleRate)
		}
	}
	if channels == 1 && to.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	return pcm
}

// ConvertStream wraps in with a conversion goroutine. The returned channel is
// closed when in is closed or ctx is done. Empty chunks are dropped.
func ConvertStream(ctx context.Context, in <-chan []byte, from, to Format) <-chan []byte {
	out := make(chan []byte, max(cap(in), 1))
	go func() {
		defer close(out)
		conv := FormatConverter{From: from, To: to}
		for pcm := range in {
			converted := conv.Convert(pcm)
			if len(converted) == 0 {
				continue
			}
			select {
			case out <- converted:
			case <-ctx.Done():
				go Drain(in)
				return
			}
		}
	}()
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per stereo frame.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, 2*i))
		r := int32(sampleAt(pcm, 2*i+1))
		avg := (l + r) / 2
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input is returned unchanged when the rates match or
// either rate is not positive.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, srcRate, dstRate, 1)
}

// ResampleStereo16 resamples interleaved 16-bit stereo PCM from srcRate to
// dstRate using linear interpolation per channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, srcRate, dstRate, 2)
}

func resample(pcm []byte, srcRate, dstRate, channels int) []byte {
	frameSize := 2 * channels
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < frameSize {
		return pcm
	}
	srcFrames := len(pcm) / frameSize
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*frameSize)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx
		if idx+1 < srcFrames {
			next = idx + 1
		}
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			v := int16(s0*(1-frac) + s1*frac)
			o := (i*channels + ch) * 2
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
		}
	}
	return out
}

// formatString returns e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
