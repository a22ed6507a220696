package google_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
	"github.com/MrWong99/lingosync/pkg/provider/translate/google"
)

func newServer(t *testing.T, h http.HandlerFunc) *google.Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := google.New("test-key", google.WithBaseURL(srv.URL+"/v2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()
	if _, err := google.New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	var got map[string]string
	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2" {
			t.Errorf("path = %q, want /v2", r.URL.Path)
		}
		if k := r.URL.Query().Get("key"); k != "test-key" {
			t.Errorf("key = %q", k)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"Xin ch&agrave;o &amp; t&#7841;m bi&#7879;t","detectedSourceLanguage":"en"}]}}`))
	})

	res, err := p.Translate(context.Background(), translate.Request{Text: "Hello & goodbye", Source: translate.Auto, Target: "vi"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Xin chào & tạm biệt" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.DetectedSource != "en" {
		t.Errorf("DetectedSource = %q, want en", res.DetectedSource)
	}
	if got["q"] != "Hello & goodbye" || got["target"] != "vi" || got["format"] != "text" {
		t.Errorf("request body = %v", got)
	}
	if _, ok := got["source"]; ok {
		t.Errorf("source must be omitted for auto, body = %v", got)
	}
}

func TestTranslate_ExplicitSource(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["source"] != "ja" {
			t.Errorf("source = %q, want ja", body["source"])
		}
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"Hello"}]}}`))
	})

	res, err := p.Translate(context.Background(), translate.Request{Text: "こんにちは", Source: "ja", Target: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.DetectedSource != "ja" {
		t.Errorf("DetectedSource = %q, want ja", res.DetectedSource)
	}
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		})
		_, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"})
		var se *translate.StatusError
		if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
			t.Fatalf("err = %v, want StatusError 429", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
		})
		_, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"})
		if !errors.Is(err, translate.ErrEmptyResponse) {
			t.Fatalf("err = %v, want ErrEmptyResponse", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		if _, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"}); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestDetect(t *testing.T) {
	t.Parallel()

	p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/detect" {
			t.Errorf("path = %q, want /v2/detect", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"detections":[[{"language":"fr","confidence":0.97,"isReliable":false}]]}}`))
	})

	d, err := p.Detect(context.Background(), "Bonjour tout le monde")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Language != "fr" || d.Confidence != 0.97 {
		t.Errorf("Detect = %+v", d)
	}
}
