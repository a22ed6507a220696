package gtx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
	"github.com/MrWong99/lingosync/pkg/provider/translate/gtx"
)

func newProvider(t *testing.T, h http.HandlerFunc) *gtx.Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return gtx.New(gtx.WithBaseURL(srv.URL))
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("client") != "gtx" || q.Get("sl") != "auto" || q.Get("tl") != "vi" || q.Get("dt") != "t" {
			t.Errorf("query = %v", q)
		}
		if q.Get("q") != "Hello world. How are you?" {
			t.Errorf("q = %q", q.Get("q"))
		}
		_, _ = w.Write([]byte(`[[["Xin chào thế giới. ","Hello world. ",null,null,10],["Bạn khỏe không?","How are you?",null,null,10]],null,"en",null,null,null,0.98,[],[["en"],null,[0.98],["en"]]]`))
	})

	res, err := p.Translate(context.Background(), translate.Request{Text: "Hello world. How are you?", Target: "vi"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Xin chào thế giới. Bạn khỏe không?" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.DetectedSource != "en" {
		t.Errorf("DetectedSource = %q, want en", res.DetectedSource)
	}
	if res.Confidence != 0.98 {
		t.Errorf("Confidence = %v, want 0.98", res.Confidence)
	}
}

func TestTranslate_DefaultConfidence(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["Hallo","Hello",null,null,1]],null,"en"]`))
	})
	res, err := p.Translate(context.Background(), translate.Request{Text: "Hello", Source: "en", Target: "de"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Confidence != gtx.DefaultConfidence {
		t.Errorf("Confidence = %v, want %v", res.Confidence, gtx.DefaultConfidence)
	}
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusTooManyRequests, `rate limited`},
		{"not json", http.StatusOK, `<html></html>`},
		{"empty", http.StatusOK, `[]`},
		{"no segments", http.StatusOK, `[[],null,"en"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			if _, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if tl := r.URL.Query().Get("tl"); tl != "en" {
			t.Errorf("tl = %q, want en", tl)
		}
		_, _ = w.Write([]byte(`[[["Hello","こんにちは",null,null,1]],null,"ja",null,null,null,0.87]`))
	})
	d, err := p.Detect(context.Background(), "こんにちは")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Language != "ja" || d.Confidence != 0.87 {
		t.Errorf("Detect = %+v", d)
	}
}

func TestDetect_NoLanguage(t *testing.T) {
	t.Parallel()

	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["Hello","Hello",null,null,1]]]`))
	})
	if _, err := p.Detect(context.Background(), "Hello"); !errors.Is(err, translate.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}
