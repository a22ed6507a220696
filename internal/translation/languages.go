package translation

import (
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var supported = []string{
	"vi", "en", "ja", "ko", "zh", "th", "fr", "de", "es", "ru", "ar", "hi",
	"it", "pt", "nl", "sv", "da", "no", "fi", "pl", "tr", "he", "id", "ms",
}

// Language describes a supported target language.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
}

// SupportedLanguages returns the languages offered as translation targets,
// with English and native display names.
func SupportedLanguages() []Language {
	en := display.English.Languages()
	out := make([]Language, 0, len(supported))
	for _, code := range supported {
		tag := language.Make(code)
		out = append(out, Language{
			Code:   code,
			Name:   en.Name(tag),
			Native: display.Self.Name(tag),
		})
	}
	return out
}

// IsSupported reports whether code is one of [SupportedLanguages].
func IsSupported(code string) bool {
	return slices.Contains(supported, code)
}
