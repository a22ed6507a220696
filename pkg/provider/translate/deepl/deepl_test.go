package deepl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/lingosync/pkg/provider/translate"
)

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty apiKey")
	}

	free, _ := New("abc:fx")
	if free.baseURL != freeBaseURL {
		t.Errorf("free key baseURL = %q, want %q", free.baseURL, freeBaseURL)
	}
	pro, _ := New("abc")
	if pro.baseURL != proBaseURL {
		t.Errorf("pro key baseURL = %q, want %q", pro.baseURL, proBaseURL)
	}
}

func TestLangCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code   string
		target bool
		want   string
	}{
		{"en", true, "EN-US"},
		{"en", false, "EN"},
		{"pt", true, "PT-PT"},
		{"zh", true, "ZH-HANS"},
		{"zh", false, "ZH"},
		{"no", true, "NB"},
		{"vi", true, "VI"},
		{"JA", false, "JA"},
	}
	for _, tt := range tests {
		if got := LangCode(tt.code, tt.target); got != tt.want {
			t.Errorf("LangCode(%q, %v) = %q, want %q", tt.code, tt.target, got, tt.want)
		}
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key key-1" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("text") != "Guten Morgen" || r.PostForm.Get("target_lang") != "EN-US" {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.PostForm.Get("source_lang") != "" {
			t.Errorf("source_lang must be omitted for auto")
		}
		if r.PostForm.Get("formality") != "less" {
			t.Errorf("formality = %q", r.PostForm.Get("formality"))
		}
		_, _ = w.Write([]byte(`{"translations":[{"detected_source_language":"DE","text":"Good morning"}]}`))
	}))
	defer srv.Close()

	p, err := New("key-1", WithBaseURL(srv.URL+"/v2/"), WithFormality("less"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Translate(context.Background(), translate.Request{Text: "Guten Morgen", Source: translate.Auto, Target: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Good morning" || res.DetectedSource != "de" {
		t.Errorf("Translate = %+v", res)
	}

	d, err := p.Detect(context.Background(), "Guten Morgen")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Language != "de" || d.Confidence != detectConfidence {
		t.Errorf("Detect = %+v", d)
	}
}

func TestTranslate_Forbidden(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Wrong endpoint"}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	_, err := p.Translate(context.Background(), translate.Request{Text: "x", Target: "vi"})
	var se *translate.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 StatusError", err)
	}
	if se.Retryable() {
		t.Error("403 must not be retryable")
	}
}
