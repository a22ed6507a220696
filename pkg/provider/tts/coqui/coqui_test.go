package coqui

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
)

// buildWAV returns a minimal RIFF/WAVE file holding pcm at rate Hz mono.
func buildWAV(pcm []byte, rate int) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 0, 44+len(pcm))
	u32 := func(v uint32) { buf = le.AppendUint32(buf, v) }
	u16 := func(v uint16) { buf = le.AppendUint16(buf, v) }

	buf = append(buf, "RIFF"...)
	u32(uint32(36 + len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	u32(16)
	u16(1)
	u16(1)
	u32(uint32(rate))
	u32(uint32(rate * 2))
	u16(2)
	u16(16)
	buf = append(buf, "data"...)
	u32(uint32(len(pcm)))
	return append(buf, pcm...)
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty serverURL")
	}
	if _, err := New("http://x", WithSampleRate(-1)); err == nil {
		t.Error("expected error for negative sample rate")
	}
	p, err := New("http://localhost:5002/", WithLanguage("vi"), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:5002" {
		t.Errorf("serverURL = %q", p.serverURL)
	}
	if p.Format() != (audio.Format{SampleRate: defaultSampleRate, Channels: 1}) {
		t.Errorf("Format = %+v", p.Format())
	}
}

func TestSentenceBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"Hello world", -1},
		{"Hello.", 5},
		{"Pi is 3.14 roughly. Yes", 18},
		{"Wow! Really?", 3},
		{"Dr.Who", -1},
	}
	for _, tt := range tests {
		if got := sentenceBoundary(tt.in); got != tt.want {
			t.Errorf("sentenceBoundary(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	in := make(chan string, 4)
	in <- "Hello wor"
	in <- "ld. How are"
	in <- " you? Fine"
	close(in)

	out := make(chan string, 8)
	splitSentences(context.Background(), in, out)
	var got []string
	for s := range out {
		got = append(got, s)
	}
	want := []string{"Hello world.", "How are you?", "Fine"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiTTSEndpoint {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("language_id") != "vi" || q.Get("speaker_id") != "spk1" {
			t.Errorf("query = %v", q)
		}
		mu.Lock()
		texts = append(texts, q.Get("text"))
		mu.Unlock()
		// One sample per sentence, value = sentence length.
		n := len(q.Get("text"))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(buildWAV([]byte{byte(n), 0}, 22050))
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	text := make(chan string, 2)
	text <- "Một. Hai"
	text <- " ba!"
	close(text)

	out, err := p.SynthesizeStream(context.Background(), text, tts.Voice{ID: "spk1", Language: "vi-VN"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm := audio.Collect(out)
	if len(pcm) != 4 {
		t.Fatalf("pcm len = %d, want 4", len(pcm))
	}
	// Order must follow the sentences regardless of request completion order.
	if int(pcm[0]) != len("Một.") || int(pcm[2]) != len("Hai ba!") {
		t.Errorf("pcm = %v", pcm)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 2 {
		t.Errorf("server texts = %q", texts)
	}
}

func TestSynthesizeStream_Resamples(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buildWAV(make([]byte, 200), 16000))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithSampleRate(32000))
	pcm, err := tts.Synthesize(context.Background(), p, "Hi.", tts.Voice{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(pcm) != 400 {
		t.Errorf("resampled len = %d, want 400", len(pcm))
	}
}

func TestSynthesizeStream_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	out, err := p.SynthesizeStream(context.Background(), tts.Single("Hello."), tts.Voice{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if pcm := audio.Collect(out); len(pcm) != 0 {
		t.Errorf("expected no audio, got %d bytes", len(pcm))
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
		lang string
	}{
		{"multi", `{"model_name":"vits","language":"en","speakers":["p2","p1"]}`, []string{"p1", "p2"}, "en"},
		{"single", `{"model_name":"tts_models/vi/vivos/vits","language":"vi"}`, []string{"default"}, "vi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != detailsEndpoint {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, _ := New(srv.URL)
			voices, err := p.ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices: %v", err)
			}
			if len(voices) != len(tt.want) {
				t.Fatalf("voices = %+v", voices)
			}
			for i, id := range tt.want {
				if voices[i].ID != id || voices[i].Language != tt.lang || voices[i].Provider != "coqui" {
					t.Errorf("voice %d = %+v", i, voices[i])
				}
			}
		})
	}
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	info, err := parseWAV(buildWAV([]byte{1, 2, 3, 4}, 24000))
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.DataOffset != 44 || info.SampleRate != 24000 || info.Channels != 1 {
		t.Errorf("info = %+v", info)
	}

	for _, bad := range [][]byte{nil, []byte("RIFF0000WAVX"), []byte("RIFF\x04\x00\x00\x00WAVE")} {
		if _, err := parseWAV(bad); err == nil {
			t.Errorf("parseWAV(%q) expected error", bad)
		}
	}
}
