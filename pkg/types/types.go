// Package types defines the shared types used across all lingosync packages.
//
// These types form the lingua franca between the subtitle parser, sources,
// the translation client, the speech controller and the realtime processor.
// Each package defines its own domain types; cross-cutting data structures
// live here to avoid circular imports.
package types

import (
	"errors"
	"strings"
)

// LanguageAuto is the source language value that asks the translation
// provider to detect the language itself.
const LanguageAuto = "auto"

// Cue is a single timed subtitle entry.
//
// Start and End are offsets in seconds from the start of the video. A valid
// cue has End > Start and non-empty Text. TranslatedText is attached once a
// translation is available and is otherwise empty.
type Cue struct {
	// ID is unique within a session (e.g. "srt-3", "vtt-12", "live-<uuid>").
	ID string `json:"id"`

	// Start is the cue start offset in seconds.
	Start float64 `json:"start"`

	// End is the cue end offset in seconds.
	End float64 `json:"end"`

	// Text is the normalized original-language text.
	Text string `json:"text"`

	// TranslatedText is the target-language text, empty until translated.
	TranslatedText string `json:"translatedText,omitempty"`
}

// Contains reports whether t falls inside the cue window. Both bounds are
// inclusive.
func (c Cue) Contains(t float64) bool {
	return c.Start <= t && t <= c.End
}

// Duration returns End - Start in seconds.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// Display returns the translated text when present, the original text otherwise.
func (c Cue) Display() string {
	if c.TranslatedText != "" {
		return c.TranslatedText
	}
	return c.Text
}

// Valid reports whether the cue satisfies the cue invariants.
func (c Cue) Valid() bool {
	return c.End > c.Start && c.Start >= 0 && strings.TrimSpace(c.Text) != ""
}

// IsZero reports whether c is the zero cue. The processor uses the zero cue
// to signal that no subtitle is active.
func (c Cue) IsZero() bool {
	return c == Cue{}
}

// WithTranslation returns a copy of c carrying the given translated text.
func (c Cue) WithTranslation(text string) Cue {
	c.TranslatedText = text
	return c
}

// Settings is the user-facing pipeline configuration. The core reads it at
// session start and on explicit update calls; it never mutates it itself.
type Settings struct {
	SourceLanguage string  `yaml:"source_language" json:"sourceLanguage"`
	TargetLanguage string  `yaml:"target_language" json:"targetLanguage"`
	AutoDetect     bool    `yaml:"auto_detect"     json:"autoDetect"`
	EnableTTS      bool    `yaml:"enable_tts"      json:"enableTTS"`
	TTSSpeed       float64 `yaml:"tts_speed"       json:"ttsSpeed"`
	TTSVoice       string  `yaml:"tts_voice"       json:"ttsVoice"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SourceLanguage: LanguageAuto,
		TargetLanguage: "vi",
		AutoDetect:     true,
		EnableTTS:      true,
		TTSSpeed:       1.0,
		TTSVoice:       "default",
	}
}

// Validate checks the settings for values the pipeline cannot work with.
// All problems are reported together.
func (s Settings) Validate() error {
	var errs []error
	if s.SourceLanguage == "" {
		errs = append(errs, errors.New("settings: source_language is required (use \"auto\" for detection)"))
	}
	switch s.TargetLanguage {
	case "":
		errs = append(errs, errors.New("settings: target_language is required"))
	case LanguageAuto:
		errs = append(errs, errors.New("settings: target_language cannot be \"auto\""))
	}
	if s.TTSSpeed <= 0 {
		errs = append(errs, errors.New("settings: tts_speed must be positive"))
	}
	return errors.Join(errs...)
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	SourceLanguage *string  `json:"sourceLanguage,omitempty"`
	TargetLanguage *string  `json:"targetLanguage,omitempty"`
	AutoDetect     *bool    `json:"autoDetect,omitempty"`
	EnableTTS      *bool    `json:"enableTTS,omitempty"`
	TTSSpeed       *float64 `json:"ttsSpeed,omitempty"`
	TTSVoice       *string  `json:"ttsVoice,omitempty"`
}

// Apply returns s with every non-nil field of p applied.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.SourceLanguage != nil {
		s.SourceLanguage = *p.SourceLanguage
	}
	if p.TargetLanguage != nil {
		s.TargetLanguage = *p.TargetLanguage
	}
	if p.AutoDetect != nil {
		s.AutoDetect = *p.AutoDetect
	}
	if p.EnableTTS != nil {
		s.EnableTTS = *p.EnableTTS
	}
	if p.TTSSpeed != nil {
		s.TTSSpeed = *p.TTSSpeed
	}
	if p.TTSVoice != nil {
		s.TTSVoice = *p.TTSVoice
	}
	return s
}

// PatchFrom builds a patch that sets every field to the value in s.
func PatchFrom(s Settings) SettingsPatch {
	return SettingsPatch{
		SourceLanguage: &s.SourceLanguage,
		TargetLanguage: &s.TargetLanguage,
		AutoDetect:     &s.AutoDetect,
		EnableTTS:      &s.EnableTTS,
		TTSSpeed:       &s.TTSSpeed,
		TTSVoice:       &s.TTSVoice,
	}
}
