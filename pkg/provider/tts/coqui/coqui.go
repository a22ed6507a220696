// Package coqui provides a tts.Provider backed by a locally running Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu). Synthesis uses GET /api/tts with query
// parameters and the voice catalogue comes from GET /details.
//
// The server works one utterance per request, so SynthesizeStream splits the
// incoming text into sentences and keeps a few requests in flight while
// emitting audio in sentence order.
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("vi"))
package coqui

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/lingosync/pkg/audio"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultSampleRate = 22050
	apiTTSEndpoint    = "/api/tts"
	detailsEndpoint   = "/details"

	// lookahead bounds the synthesis requests in flight at once.
	lookahead = 3

	pcmChunkSize = 4096
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language_id sent to multilingual models.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithSampleRate sets the sample rate PCM is resampled to. Default 22050 Hz,
// the native rate of most Coqui models.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements tts.Provider against a Coqui TTS server.
type Provider struct {
	serverURL  string
	language   string
	sampleRate int
	httpClient *http.Client
}

var _ tts.Provider = (*Provider)(nil)

// New creates a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.sampleRate <= 0 {
		return nil, fmt.Errorf("coqui: invalid sample rate %d", p.sampleRate)
	}
	return p, nil
}

// Format implements tts.Provider.
func (p *Provider) Format() audio.Format {
	return audio.Format{SampleRate: p.sampleRate, Channels: 1}
}

type result struct {
	pcm []byte
	err error
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	out := make(chan []byte, 64)
	sentences := make(chan string, lookahead)
	pending := make(chan chan result, lookahead)

	go splitSentences(ctx, text, sentences)

	go func() {
		defer close(pending)
		for s := range sentences {
			ch := make(chan result, 1)
			select {
			case pending <- ch:
			case <-ctx.Done():
				return
			}
			go func() {
				pcm, err := p.synthesize(ctx, s, voice)
				ch <- result{pcm: pcm, err: err}
			}()
		}
	}()

	go func() {
		defer close(out)
		for ch := range pending {
			var r result
			select {
			case r = <-ch:
			case <-ctx.Done():
				return
			}
			if r.err != nil {
				slog.Warn("coqui: synthesis failed", "err", r.err)
				return
			}
			for pcm := r.pcm; len(pcm) > 0; {
				n := min(pcmChunkSize, len(pcm))
				select {
				case out <- pcm[:n]:
				case <-ctx.Done():
					return
				}
				pcm = pcm[n:]
			}
		}
	}()

	return out, nil
}

// splitSentences reads fragments from text and forwards complete sentences.
func splitSentences(ctx context.Context, text <-chan string, out chan<- string) {
	defer close(out)
	var buf strings.Builder
	emit := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				emit(buf.String())
				return
			}
			buf.WriteString(fragment)
			for {
				s := buf.String()
				idx := sentenceBoundary(s)
				if idx < 0 {
					break
				}
				buf.Reset()
				buf.WriteString(s[idx+1:])
				if !emit(s[:idx+1]) {
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// sentenceBoundary returns the index of the first '.', '!' or '?' that ends s
// or is followed by whitespace, or -1.
func sentenceBoundary(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 >= len(s) || unicode.IsSpace(rune(s[i+1])) {
				return i
			}
		}
	}
	return -1
}

// synthesize performs one GET /api/tts request and returns PCM in Format().
func (p *Provider) synthesize(ctx context.Context, sentence string, voice tts.Voice) ([]byte, error) {
	params := url.Values{}
	params.Set("text", sentence)
	if voice.ID != "" && voice.ID != "default" {
		params.Set("speaker_id", voice.ID)
	}
	if lang := p.languageFor(voice); lang != "" {
		params.Set("language_id", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}
	from := audio.Format{SampleRate: info.SampleRate, Channels: info.Channels}
	return audio.Convert(wav[info.DataOffset:], from, p.Format()), nil
}

func (p *Provider) languageFor(v tts.Voice) string {
	if p.language != "" {
		return p.language
	}
	base, _, _ := strings.Cut(v.Language, "-")
	return base
}

// detailsResponse is returned by GET /details. Speakers is empty for
// single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// ListVoices implements tts.Provider. Multi-speaker models yield one voice per
// speaker, single-speaker models a single voice named after the model.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var d detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}

	lang := d.Language
	if p.language != "" {
		lang = p.language
	}
	meta := map[string]string{"model_name": d.ModelName, "local": "true"}

	if len(d.Speakers) == 0 {
		name := d.ModelName
		if name == "" {
			name = "default"
		}
		return []tts.Voice{{ID: "default", Name: name, Provider: "coqui", Language: lang, Metadata: meta}}, nil
	}

	speakers := slices.Clone(d.Speakers)
	slices.Sort(speakers)
	voices := make([]tts.Voice, 0, len(speakers))
	for _, spk := range speakers {
		voices = append(voices, tts.Voice{ID: spk, Name: spk, Provider: "coqui", Language: lang, Metadata: meta})
	}
	return voices, nil
}

// wavInfo holds the format metadata from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int
	SampleRate int
	Channels   int
}

// parseWAV walks the RIFF chunks of wav and returns the data offset and the
// format from the "fmt " chunk.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	info := wavInfo{SampleRate: defaultSampleRate, Channels: 1}
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch id {
		case "fmt ":
			if size >= 16 && offset+8+16 <= len(wav) {
				f := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			}
		case "data":
			info.DataOffset = offset + 8
			return info, nil
		}

		// Chunks are word-aligned.
		offset += 8 + size + size%2
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}
