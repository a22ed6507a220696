package app

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/internal/translation"
	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
)

// maxBodySize bounds request bodies. Subtitle files are posted whole.
const maxBodySize = 4 << 20

// TranslateRequest is the body of POST /api/translate.
type TranslateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Source string `json:"source"`
}

// TranslateResponse is the reply of POST /api/translate.
type TranslateResponse struct {
	Text           string  `json:"text"`
	DetectedSource string  `json:"detectedSource,omitempty"`
	Confidence     float64 `json:"confidence"`
	Cached         bool    `json:"cached"`
	Fallback       bool    `json:"fallback"`
}

// DetectRequest is the body of POST /api/detect.
type DetectRequest struct {
	Text string `json:"text"`
}

// LanguagesResponse is the reply of GET /api/languages.
type LanguagesResponse struct {
	Languages []translation.Language `json:"languages"`
	Speech    bool                   `json:"speech"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) registerAPI(r chi.Router) {
	r.Post("/translate", a.handleTranslate)
	r.Post("/detect", a.handleDetect)
	r.Post("/subtitles/translate", a.handleTranslateSubtitles)
	r.Get("/languages", a.handleLanguages)
	r.Get("/sessions", a.handleSessions)
	r.Get("/cache", a.handleCacheStats)
	r.Delete("/cache", a.handleClearCache)
}

func (a *App) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	defaults := a.settings()
	target := cmp.Or(req.Target, defaults.TargetLanguage)
	if target == types.LanguageAuto {
		writeError(w, http.StatusBadRequest, errors.New("target language cannot be auto"))
		return
	}

	res := a.translator.Translate(r.Context(), req.Text, target, cmp.Or(req.Source, defaults.SourceLanguage))
	status := http.StatusOK
	if res.Fallback {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, TranslateResponse{
		Text:           res.Text,
		DetectedSource: res.DetectedSource,
		Confidence:     res.Confidence,
		Cached:         res.Cached,
		Fallback:       res.Fallback,
	})
}

func (a *App) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}
	writeJSON(w, http.StatusOK, a.translator.Detect(r.Context(), req.Text))
}

// handleTranslateSubtitles translates a posted subtitle file. Query
// parameters: target, source, format (output, defaults to the input format)
// and mode (translated or both).
func (a *App) handleTranslateSubtitles(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	content := string(body)
	cues := subtitle.Parse(content, subtitle.FormatUnknown)
	if len(cues) == 0 {
		writeError(w, http.StatusUnprocessableEntity, errors.New("no cues found"))
		return
	}

	q := r.URL.Query()
	defaults := a.settings()
	target := cmp.Or(q.Get("target"), defaults.TargetLanguage)
	out := subtitle.ParseFormat(q.Get("format"))
	if out == subtitle.FormatUnknown {
		out = subtitle.Detect(content)
	}
	if out != subtitle.FormatVTT {
		out = subtitle.FormatSRT
	}
	mode := subtitle.TextTranslated
	if q.Get("mode") == "both" {
		mode = subtitle.TextBoth
	}

	log := observe.Logger(r.Context())
	translated := a.translator.TranslateCues(r.Context(), cues, target, cmp.Or(q.Get("source"), defaults.SourceLanguage),
		func(p float64) { log.Debug("subtitle translation progress", "progress", p) })
	if err := r.Context().Err(); err != nil {
		return
	}

	w.Header().Set("Content-Type", contentType(out))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, subtitle.Encode(translated, out, mode)); err != nil {
		log.Warn("write subtitles", "err", err)
	}
}

func (a *App) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LanguagesResponse{
		Languages: translation.SupportedLanguages(),
		Speech:    a.providers.TTS != nil,
	})
}

func (a *App) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.List())
}

func (a *App) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"entries": a.translator.CacheSize()})
}

func (a *App) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n := a.translator.CacheSize()
	a.translator.ClearCache()
	observe.Logger(r.Context()).Info("translation cache cleared", "entries", n)
	w.WriteHeader(http.StatusNoContent)
}

func contentType(f subtitle.Format) string {
	if f == subtitle.FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json response", "err", err)
	}
}
