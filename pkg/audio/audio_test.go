package audio

import (
	"context"
	"io"
	"testing"
	"time"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, byte(s), byte(s>>8))
	}
	return out
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	f := Format{SampleRate: 16000, Channels: 1}
	if got := f.BytesPerSecond(); got != 32000 {
		t.Errorf("BytesPerSecond = %d, want 32000", got)
	}
	if got := f.Duration(16000); got != 500*time.Millisecond {
		t.Errorf("Duration(16000) = %v, want 500ms", got)
	}
	if got := (Format{}).Duration(100); got != 0 {
		t.Errorf("zero format Duration = %v, want 0", got)
	}
}

func TestChunksAndCollect(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789")
	ch := Chunks(data, 3)
	var sizes []int
	var all []byte
	for b := range ch {
		sizes = append(sizes, len(b))
		all = append(all, b...)
	}
	if string(all) != "0123456789" {
		t.Errorf("joined = %q", all)
	}
	if len(sizes) != 4 || sizes[3] != 1 {
		t.Errorf("chunk sizes = %v, want [3 3 3 1]", sizes)
	}
	if got := Collect(Chunks(data, 4)); string(got) != "0123456789" {
		t.Errorf("Collect = %q", got)
	}
	if got := Collect(Chunks(nil, 4)); len(got) != 0 {
		t.Errorf("Collect(empty) = %q", got)
	}
}

func TestReader(t *testing.T) {
	t.Parallel()

	r := NewReader(context.Background(), Chunks([]byte("hello world"), 4))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("ReadAll = %q", got)
	}
}

func TestReader_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReader(ctx, make(chan []byte))
	if _, err := r.Read(make([]byte, 4)); err != context.Canceled {
		t.Errorf("Read err = %v, want context.Canceled", err)
	}
}

func TestScale(t *testing.T) {
	t.Parallel()

	buf := pcm16(1000, -1000, 30000)
	Scale(buf, 0.5)
	if sampleAt(buf, 0) != 500 || sampleAt(buf, 1) != -500 || sampleAt(buf, 2) != 15000 {
		t.Errorf("Scale(0.5) = %d %d %d", sampleAt(buf, 0), sampleAt(buf, 1), sampleAt(buf, 2))
	}

	loud := pcm16(30000)
	Scale(loud, 2)
	if sampleAt(loud, 0) != 32767 {
		t.Errorf("clipped sample = %d, want 32767", sampleAt(loud, 0))
	}
}
