package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("k", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
	p, err := New("k", WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Format(); got != (audio.Format{SampleRate: 24000, Channels: 1}) {
		t.Errorf("Format() = %+v", got)
	}
}

func TestStreamURL(t *testing.T) {
	t.Parallel()

	p, _ := New("k")
	u := p.streamURL("voice-abc123")
	for _, want := range []string{"wss://", "/text-to-speech/voice-abc123/stream-input", "model_id=eleven_flash_v2_5", "output_format=pcm_16000"} {
		if !strings.Contains(u, want) {
			t.Errorf("streamURL = %q, missing %q", u, want)
		}
	}
}

func TestSettingsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		speed float64
		want  float64
	}{
		{0, 0},
		{1, 0},
		{1.1, 1.1},
		{2, maxSpeed},
		{0.5, minSpeed},
	}
	for _, tt := range tests {
		if got := settingsFor(tts.Voice{SpeedFactor: tt.speed}).Speed; got != tt.want {
			t.Errorf("settingsFor(speed=%v).Speed = %v, want %v", tt.speed, got, tt.want)
		}
	}
}

func TestFlushMessageShape(t *testing.T) {
	t.Parallel()

	data, _ := json.Marshal(textMessage{Text: ""})
	if string(data) != `{"text":""}` {
		t.Errorf("flush = %s", data)
	}
}

func TestConvertVoices(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"voices": [
			{"voice_id": "abc123", "name": "Rachel", "category": "premade",
			 "labels": {"gender": "female", "accent": "american"}},
			{"voice_id": "def456", "name": "Linh", "category": "professional",
			 "labels": {"gender": "female"},
			 "verified_languages": [{"language": "vi", "locale": "vi-VN"}]}
		]
	}`)
	var vr voicesResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	voices := convertVoices(vr)
	if len(voices) != 2 {
		t.Fatalf("len = %d, want 2", len(voices))
	}
	if voices[0].Metadata["accent"] != "american" || voices[0].Metadata["category"] != "premade" {
		t.Errorf("metadata = %v", voices[0].Metadata)
	}
	if voices[0].Language != "" {
		t.Errorf("Rachel language = %q, want multilingual", voices[0].Language)
	}
	if voices[1].Language != "vi-VN" || voices[1].Provider != "elevenlabs" {
		t.Errorf("Linh = %+v", voices[1])
	}
}

func TestListVoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "key" {
			http.Error(w, "bad request", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"One"}]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURLs("ws://unused", srv.URL+"/v1"))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Errorf("voices = %+v", voices)
	}

	bad, _ := New("wrong", WithBaseURLs("ws://unused", srv.URL+"/v1"))
	if _, err := bad.ListVoices(context.Background()); err == nil {
		t.Error("expected error for 401")
	}
}

func TestSynthesizeStream(t *testing.T) {
	t.Parallel()

	received := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/text-to-speech/voice-1/stream-input") {
			t.Errorf("path = %q", r.URL.Path)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		var texts []string
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var msg map[string]any
			_ = json.Unmarshal(data, &msg)
			text, _ := msg["text"].(string)
			if _, ok := msg["xi_api_key"]; ok {
				continue
			}
			if text == "" {
				break
			}
			texts = append(texts, text)
		}
		received <- texts

		for _, chunk := range [][]byte{{1, 2}, {3, 4}} {
			resp, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(chunk)})
			_ = conn.Write(r.Context(), websocket.MessageText, resp)
		}
		final, _ := json.Marshal(audioResponse{IsFinal: true})
		_ = conn.Write(r.Context(), websocket.MessageText, final)
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, _ := New("key", WithBaseURLs(wsBase, srv.URL), WithDefaultVoice("voice-1"))

	text := make(chan string, 3)
	text <- "Xin chào."
	text <- "  "
	text <- "Tạm biệt."
	close(text)

	out, err := p.SynthesizeStream(context.Background(), text, tts.Voice{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	pcm := audio.Collect(out)
	if len(pcm) != 4 || pcm[0] != 1 || pcm[3] != 4 {
		t.Errorf("pcm = %v", pcm)
	}
	texts := <-received
	if len(texts) != 2 || texts[0] != "Xin chào. " || texts[1] != "Tạm biệt. " {
		t.Errorf("server received %q", texts)
	}
}

func TestSynthesizeStream_NoVoice(t *testing.T) {
	t.Parallel()

	p, _ := New("key")
	if _, err := p.SynthesizeStream(context.Background(), tts.Single("x"), tts.Voice{}); err == nil {
		t.Error("expected error without voice ID")
	}
}
