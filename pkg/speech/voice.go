package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguageTag is used for codes without a known regional tag.
const DefaultLanguageTag = "en-US"

var languageTags = map[string]string{
	"auto": "en-US",
	"vi":   "vi-VN",
	"en":   "en-US",
	"ja":   "ja-JP",
	"ko":   "ko-KR",
	"zh":   "zh-CN",
	"th":   "th-TH",
	"fr":   "fr-FR",
	"de":   "de-DE",
	"es":   "es-ES",
	"ru":   "ru-RU",
	"ar":   "ar-SA",
	"hi":   "hi-IN",
	"it":   "it-IT",
	"pt":   "pt-PT",
	"nl":   "nl-NL",
	"sv":   "sv-SE",
	"da":   "da-DK",
	"no":   "no-NO",
	"fi":   "fi-FI",
	"pl":   "pl-PL",
	"tr":   "tr-TR",
	"he":   "he-IL",
	"id":   "id-ID",
	"ms":   "ms-MY",
}

// LanguageTag maps a language code to the regional tag used for speech
// ("vi" -> "vi-VN"). A code that already carries a region is returned in
// canonical form. Unknown codes yield [DefaultLanguageTag].
func LanguageTag(code string) string {
	if tag, ok := languageTags[strings.ToLower(code)]; ok {
		return tag
	}
	if t, err := language.Parse(code); err == nil {
		if _, conf := t.Region(); conf == language.Exact {
			return t.String()
		}
	}
	return DefaultLanguageTag
}

// BaseCode returns the language part of a tag ("vi-VN" -> "vi"), or "en" for
// an empty tag.
func BaseCode(tag string) string {
	code, _, _ := strings.Cut(tag, "-")
	if code == "" {
		return "en"
	}
	return strings.ToLower(code)
}

// VoicesFor returns the voices whose language matches code. A voice matches
// when its tag starts with or contains code, or when both parse to the same
// base language ("iw" and "he").
func VoicesFor(voices []Voice, code string) []Voice {
	code = strings.ToLower(code)
	want, wantErr := language.ParseBase(code)

	var out []Voice
	for _, v := range voices {
		lang := strings.ToLower(v.Lang)
		if code != "" && strings.Contains(lang, code) {
			out = append(out, v)
			continue
		}
		if wantErr != nil {
			continue
		}
		if t, err := language.Parse(v.Lang); err == nil {
			if b, _ := t.Base(); b == want {
				out = append(out, v)
			}
		}
	}
	return out
}

// BestVoice picks the voice to use for a language code: a local voice first,
// then the engine default, then the first match. It reports false when no
// voice matches, in which case the engine chooses.
func BestVoice(voices []Voice, code string) (Voice, bool) {
	matches := VoicesFor(voices, code)
	if len(matches) == 0 {
		return Voice{}, false
	}
	for _, v := range matches {
		if v.Local {
			return v, true
		}
	}
	for _, v := range matches {
		if v.Default {
			return v, true
		}
	}
	return matches[0], true
}

// findVoice resolves an explicit voice selection by ID, then by name.
func findVoice(voices []Voice, sel string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == sel {
			return v, true
		}
	}
	for _, v := range voices {
		if strings.EqualFold(v.Name, sel) {
			return v, true
		}
	}
	return Voice{}, false
}

var sampleTexts = map[string]string{
	"vi": "Xin chào, đây là bài kiểm tra giọng nói tiếng Việt.",
	"en": "Hello, this is a voice test in English.",
	"ja": "こんにちは、これは日本語の音声テストです。",
	"ko": "안녕하세요, 이것은 한국어 음성 테스트입니다.",
	"zh": "你好，这是中文语音测试。",
	"th": "สวัสดี นี่คือการทดสอบเสียงภาษาไทย",
	"fr": "Bonjour, ceci est un test vocal en français.",
	"de": "Hallo, das ist ein Sprachtest auf Deutsch.",
	"es": "Hola, esta es una prueba de voz en español.",
	"ru": "Привет, это голосовой тест на русском языке.",
	"ar": "مرحبا، هذا اختبار صوتي باللغة العربية.",
	"hi": "नमस्ते, यह हिंदी में एक आवाज परीक्षण है।",
}

// SampleText returns a short test sentence in the given language, English
// when none is known.
func SampleText(code string) string {
	if s, ok := sampleTexts[BaseCode(code)]; ok {
		return s
	}
	return sampleTexts["en"]
}
