package audio_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/MrWong99/lingosync/pkg/audio"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func assertSamples(t *testing.T, got []byte, want []int16) {
	t.Helper()
	s := bytesToSamples(got)
	if len(s) != len(want) {
		t.Fatalf("got %d samples %v, want %v", len(s), s, want)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, s[i], want[i])
		}
	}
}

var (
	mono16k   = audio.Format{SampleRate: 16000, Channels: 1}
	stereo16k = audio.Format{SampleRate: 16000, Channels: 2}
	stereo32k = audio.Format{SampleRate: 32000, Channels: 2}
)

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	assertSamples(t, audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300})), []int16{100, 100, 200, 200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	assertSamples(t, audio.StereoToMono(samplesToBytes([]int16{100, 300, -4, 4, 32767, 32767})), []int16{200, 0, 32767})
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{0, 100, 200, 300})
	if got := audio.ResampleMono16(in, 16000, 16000); len(got) != len(in) {
		t.Errorf("same rate changed length to %d", len(got))
	}
	assertSamples(t, audio.ResampleMono16(in, 8000, 16000), []int16{0, 50, 100, 150, 200, 250, 300, 300})
	assertSamples(t, audio.ResampleMono16(in, 16000, 8000), []int16{0, 200})
	if got := audio.ResampleMono16(in, 0, 16000); len(got) != len(in) {
		t.Error("zero srcRate should return input unchanged")
	}
}

func TestResampleStereo16(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{0, 1000, 100, 1100})
	assertSamples(t, audio.ResampleStereo16(in, 8000, 16000), []int16{0, 1000, 50, 1050, 100, 1100, 100, 1100})
}

func TestConvert(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{10, 20})
	assertSamples(t, audio.Convert(in, mono16k, mono16k), []int16{10, 20})
	assertSamples(t, audio.Convert(in, mono16k, stereo16k), []int16{10, 10, 20, 20})
	assertSamples(t, audio.Convert(samplesToBytes([]int16{10, 30, -4, 4}), stereo16k, mono16k), []int16{20, 0})

	up := audio.Convert(in, mono16k, stereo32k)
	if len(up) != 16 {
		t.Errorf("mono16k->stereo32k len = %d, want 16", len(up))
	}
}

func TestFormatConverter_Misaligned(t *testing.T) {
	t.Parallel()

	c := audio.FormatConverter{From: stereo16k, To: mono16k}
	if got := c.Convert([]byte{1, 2, 3, 4, 5, 6}); got != nil {
		t.Errorf("misaligned stereo chunk = %v, want nil", got)
	}
	same := audio.FormatConverter{From: mono16k, To: mono16k}
	if got := same.Convert([]byte{1, 2, 3}); got != nil {
		t.Errorf("odd chunk = %v, want nil", got)
	}
}

func TestConvertStream(t *testing.T) {
	t.Parallel()

	in := make(chan []byte, 3)
	in <- samplesToBytes([]int16{100, 200})
	in <- []byte{1, 2, 3}
	in <- samplesToBytes([]int16{300})
	close(in)

	var chunks [][]byte
	for c := range audio.ConvertStream(context.Background(), in, mono16k, stereo16k) {
		chunks = append(chunks, c)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	assertSamples(t, chunks[0], []int16{100, 100, 200, 200})
	assertSamples(t, chunks[1], []int16{300, 300})
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	if got := stereo32k.String(); got != "32000Hz stereo" {
		t.Errorf("String() = %q", got)
	}
	if got := mono16k.String(); got != "16000Hz mono" {
		t.Errorf("String() = %q", got)
	}
}
