package speech_test

import (
	"testing"

	"github.com/MrWong99/lingosync/pkg/speech"
)

func TestLanguageTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want string
	}{
		{"vi", "vi-VN"},
		{"EN", "en-US"},
		{"auto", "en-US"},
		{"pt", "pt-PT"},
		{"no", "no-NO"},
		{"ms", "ms-MY"},
		{"pt-br", "pt-BR"},
		{"xx", speech.DefaultLanguageTag},
		{"", speech.DefaultLanguageTag},
	}
	for _, tt := range tests {
		if got := speech.LanguageTag(tt.code); got != tt.want {
			t.Errorf("LanguageTag(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestBaseCode(t *testing.T) {
	t.Parallel()

	for tag, want := range map[string]string{"vi-VN": "vi", "EN-us": "en", "ja": "ja", "": "en"} {
		if got := speech.BaseCode(tag); got != want {
			t.Errorf("BaseCode(%q) = %q, want %q", tag, got, want)
		}
	}
}

func TestBestVoice(t *testing.T) {
	t.Parallel()

	remote := speech.Voice{ID: "r", Lang: "vi-VN"}
	def := speech.Voice{ID: "d", Lang: "vi-VN", Default: true}
	local := speech.Voice{ID: "l", Lang: "vi-VN", Local: true}
	english := speech.Voice{ID: "e", Lang: "en-US", Local: true}

	tests := []struct {
		name   string
		voices []speech.Voice
		code   string
		want   string
		ok     bool
	}{
		{"local preferred", []speech.Voice{remote, def, local, english}, "vi", "l", true},
		{"default next", []speech.Voice{remote, def, english}, "vi", "d", true},
		{"first match", []speech.Voice{english, remote}, "vi", "r", true},
		{"no match", []speech.Voice{english}, "vi", "", false},
		{"canonical base", []speech.Voice{{ID: "h", Lang: "iw-IL"}}, "he", "h", true},
		{"empty list", nil, "en", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := speech.BestVoice(tt.voices, tt.code)
			if ok != tt.ok || got.ID != tt.want {
				t.Errorf("BestVoice() = (%q, %v), want (%q, %v)", got.ID, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSampleText(t *testing.T) {
	t.Parallel()

	if got := speech.SampleText("ja-JP"); got != "こんにちは、これは日本語の音声テストです。" {
		t.Errorf("SampleText(ja-JP) = %q", got)
	}
	if got := speech.SampleText("sv"); got != speech.SampleText("en") {
		t.Errorf("SampleText(sv) = %q, want English fallback", got)
	}
}

func TestOptionsOr(t *testing.T) {
	t.Parallel()

	got := speech.Options{Rate: 1.5}.Or(speech.DefaultOptions())
	want := speech.Options{Language: "vi-VN", Rate: 1.5, Pitch: 1, Volume: 0.8}
	if got != want {
		t.Errorf("Or() = %+v, want %+v", got, want)
	}
}
