package bridge

import (
	"encoding/json"
	"errors"

	"github.com/MrWong99/lingosync/pkg/types"
)

// Type names a message. Requests carrying an ID are answered exactly once
// with "<TYPE>_RESULT" and the same ID.
type Type string

// Inbound message types.
const (
	TypeToggleTranslator  Type = "TOGGLE_TRANSLATOR"
	TypeGetVideoInfo      Type = "GET_VIDEO_INFO"
	TypeUpdateSettings    Type = "UPDATE_SETTINGS"
	TypeTranslateSubtitle Type = "TRANSLATE_SUBTITLE"
	TypeLoadSubtitles     Type = "LOAD_SUBTITLES"
	TypeVideoEvent        Type = "VIDEO_EVENT"
	TypeCaptionText       Type = "CAPTION_TEXT"
	TypeGetLanguages      Type = "GET_LANGUAGES"
	TypeGetStats          Type = "GET_STATS"
)

// Outbound message types.
const (
	TypeSubtitleUpdate      Type = "SUBTITLE_UPDATE"
	TypeTranslationComplete Type = "TRANSLATION_COMPLETE"
	TypeError               Type = "ERROR"

	// Audio framing around binary PCM frames.
	TypeAudioStart  Type = "AUDIO_START"
	TypeAudioEnd    Type = "AUDIO_END"
	TypeAudioStop   Type = "AUDIO_STOP"
	TypeAudioPause  Type = "AUDIO_PAUSE"
	TypeAudioResume Type = "AUDIO_RESUME"
)

// ResultType returns the reply type for a request type.
func ResultType(t Type) Type { return t + "_RESULT" }

// ErrUnknownType is reported for message types the bridge does not handle.
var ErrUnknownType = errors.New("bridge: unknown message type")

// Message is the JSON envelope of every text frame.
type Message struct {
	Type    Type            `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error is set on replies to failed requests.
	Error string `json:"error,omitempty"`
}

// TogglePayload switches the translator on or off. A nil Enabled flips the
// current state.
type TogglePayload struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// ToggleResult reports the state after a toggle.
type ToggleResult struct {
	Enabled   bool `json:"enabled"`
	Subtitles int  `json:"subtitles"`
}

// TranslatePayload asks for a one-off translation. Empty Target and Source
// fall back to the session settings.
type TranslatePayload struct {
	Text   string `json:"text"`
	Target string `json:"target,omitempty"`
	Source string `json:"source,omitempty"`
}

// TranslateResult is the reply to [TypeTranslateSubtitle].
type TranslateResult struct {
	TranslatedText string  `json:"translatedText"`
	DetectedSource string  `json:"detectedSource,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Cached         bool    `json:"cached,omitempty"`
}

// LoadPayload supplies subtitles. Content, when set, is parsed directly
// (Format is an optional hint such as "srt"). Otherwise the configured
// sources are asked for VideoID in Lang.
type LoadPayload struct {
	VideoID string `json:"videoId"`
	Lang    string `json:"lang,omitempty"`
	Content string `json:"content,omitempty"`
	Format  string `json:"format,omitempty"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
}

// LoadResult is the reply to [TypeLoadSubtitles].
type LoadResult struct {
	Count int `json:"count"`
}

// VideoEventPayload forwards a DOM media event.
type VideoEventPayload struct {
	Event       string  `json:"event"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration,omitempty"`
	Rate        float64 `json:"playbackRate,omitempty"`
}

// CaptionPayload carries caption text scraped from the page.
type CaptionPayload struct {
	Text string `json:"text"`
}

// CaptionResult reports whether the caption produced a new cue.
type CaptionResult struct {
	Accepted bool      `json:"accepted"`
	Cue      types.Cue `json:"cue,omitzero"`
}

// SubtitlePayload is the payload of [TypeSubtitleUpdate] and
// [TypeTranslationComplete]. Cue is nil when no subtitle is active.
type SubtitlePayload struct {
	Cue *types.Cue `json:"cue"`
}

// ErrorPayload is the payload of [TypeError].
type ErrorPayload struct {
	Message string `json:"message"`
}

// AudioStartPayload announces the PCM format of the binary frames that
// follow until [TypeAudioEnd] or [TypeAudioStop].
type AudioStartPayload struct {
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	Volume     float64 `json:"volume"`
}
