package ttsengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/lingosync/pkg/audio"
	audiomock "github.com/MrWong99/lingosync/pkg/audio/mock"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	ttsmock "github.com/MrWong99/lingosync/pkg/provider/tts/mock"
	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/speech/ttsengine"
)

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s not closed", what)
	}
}

func TestEngine_SpeakPlaysThroughSink(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{
		SynthesizeChunks: [][]byte{{1, 0}, {2, 0}},
		AudioFormat:      audio.Format{SampleRate: 22050, Channels: 1},
	}
	sink := &audiomock.Sink{}
	e := ttsengine.New(p, sink, "coqui")

	pb, err := e.Speak(context.Background(), speech.Utterance{
		Text:     "Xin chào",
		Language: "vi-VN",
		Voice:    speech.Voice{ID: "v1", Name: "Mai"},
		Rate:     1.2,
		Pitch:    1.5,
		Volume:   0.8,
	})
	if err != nil {
		t.Fatalf("Speak() err = %v", err)
	}
	waitClosed(t, pb.Started(), "Started")
	waitClosed(t, pb.Done(), "Done")
	if err := pb.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	played := sink.Played()
	if len(played) != 1 {
		t.Fatalf("played %d clips, want 1", len(played))
	}
	if string(played[0].PCM) != string([]byte{1, 0, 2, 0}) || played[0].Volume != 0.8 || played[0].Format != p.AudioFormat {
		t.Errorf("played = %+v", played[0])
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider calls = %d", len(calls))
	}
	want := tts.Voice{ID: "v1", Name: "Mai", Provider: "coqui", Language: "vi-VN", SpeedFactor: 1.2, PitchShift: 5}
	got := calls[0].Voice
	if got.ID != want.ID || got.Name != want.Name || got.Provider != want.Provider ||
		got.Language != want.Language || got.SpeedFactor != want.SpeedFactor || got.PitchShift != want.PitchShift {
		t.Errorf("voice = %+v, want %+v", got, want)
	}
	if len(calls[0].Text) != 1 || calls[0].Text[0] != "Xin chào" {
		t.Errorf("text = %v", calls[0].Text)
	}
}

func TestEngine_CancelReportsErrCancelled(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 0}}}
	sink := &audiomock.Sink{Hold: true}
	e := ttsengine.New(p, sink, "mock")

	started := sink.Started()
	pb, err := e.Speak(context.Background(), speech.Utterance{Text: "hi"})
	if err != nil {
		t.Fatalf("Speak() err = %v", err)
	}
	waitClosed(t, started, "sink Started")

	pb.Pause()
	if !sink.Paused() {
		t.Error("sink not paused")
	}
	pb.Resume()

	pb.Cancel()
	waitClosed(t, pb.Done(), "Done")
	if err := pb.Err(); !errors.Is(err, speech.ErrCancelled) {
		t.Fatalf("Err() = %v, want ErrCancelled", err)
	}
}

func TestEngine_NoAudio(t *testing.T) {
	t.Parallel()

	e := ttsengine.New(&ttsmock.Provider{}, &audiomock.Sink{}, "mock")
	pb, err := e.Speak(context.Background(), speech.Utterance{Text: "hi"})
	if err != nil {
		t.Fatalf("Speak() err = %v", err)
	}
	waitClosed(t, pb.Done(), "Done")
	if !errors.Is(pb.Err(), ttsengine.ErrNoAudio) {
		t.Fatalf("Err() = %v, want ErrNoAudio", pb.Err())
	}
	select {
	case <-pb.Started():
		t.Error("Started closed without audio")
	default:
	}
}

func TestEngine_SynthesizeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")
	e := ttsengine.New(&ttsmock.Provider{SynthesizeErr: boom}, &audiomock.Sink{}, "mock")
	if _, err := e.Speak(context.Background(), speech.Utterance{Text: "hi"}); !errors.Is(err, boom) {
		t.Fatalf("Speak() err = %v, want %v", err, boom)
	}
}

func TestEngine_Voices(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{Voices: []tts.Voice{
		{ID: "a", Name: "Ana", Language: "es-ES"},
		{ID: "b", Name: "Ben", Language: "en-GB"},
	}}
	e := ttsengine.New(p, &audiomock.Sink{}, "coqui", ttsengine.WithLocal(true))
	vs, err := e.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() err = %v", err)
	}
	if len(vs) != 2 || !vs[0].Default || vs[1].Default || !vs[0].Local || vs[1].Lang != "en-GB" {
		t.Errorf("voices = %+v", vs)
	}

	failing := ttsengine.New(&ttsmock.Provider{ListVoicesErr: errors.New("down")}, &audiomock.Sink{}, "x")
	if _, err := failing.Voices(context.Background()); err == nil {
		t.Error("Voices() err = nil, want error")
	}
}
