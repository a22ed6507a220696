package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	ttsmock "github.com/MrWong99/lingosync/pkg/provider/tts/mock"
)

func TestTTSFallback_SynthesizeStream_Failover(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{SynthesizeErr: errors.New("primary down")}
	secondary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 0, 2, 0}}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})
	fb.AddFallback("secondary", secondary)

	ch, err := fb.SynthesizeStream(context.Background(), tts.Single("hello"), tts.Voice{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pcm := audio.Collect(ch)
	if len(pcm) != 4 {
		t.Fatalf("got %d bytes, want 4", len(pcm))
	}

	calls := secondary.Calls()
	if len(calls) != 1 || calls[0].Voice.ID != "v1" {
		t.Fatalf("secondary calls = %+v", calls)
	}
	if len(calls[0].Text) != 1 || calls[0].Text[0] != "hello" {
		t.Fatalf("secondary text = %v", calls[0].Text)
	}
}

func TestTTSFallback_ConvertsFallbackFormat(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{
		SynthesizeErr: errors.New("primary down"),
		AudioFormat:   audio.Format{SampleRate: 16000, Channels: 2},
	}
	secondary := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{{1, 0, 2, 0}},
		AudioFormat:      audio.Format{SampleRate: 16000, Channels: 1},
	}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	if got := fb.Format(); got != primary.AudioFormat {
		t.Fatalf("Format() = %v, want primary format", got)
	}

	ch, err := fb.SynthesizeStream(context.Background(), tts.Single("hi"), tts.Voice{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pcm := audio.Collect(ch)
	want := []byte{1, 0, 1, 0, 2, 0, 2, 0}
	if string(pcm) != string(want) {
		t.Fatalf("pcm = %v, want %v", pcm, want)
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{ListVoicesErr: errors.New("down")}
	secondary := &ttsmock.Provider{Voices: []tts.Voice{{ID: "a", Language: "vi-VN"}}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "a" {
		t.Fatalf("voices = %+v", voices)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	t.Parallel()

	fb := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errTest}, "only", FallbackConfig{})
	_, err := fb.SynthesizeStream(context.Background(), tts.Single("x"), tts.Voice{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
