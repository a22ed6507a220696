package bridge

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/internal/processor"
	"github.com/MrWong99/lingosync/internal/source"
	"github.com/MrWong99/lingosync/internal/translation"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/speech/ttsengine"
	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
	"github.com/MrWong99/lingosync/pkg/video"
)

const (
	writeTimeout = 5 * time.Second

	// notifyBuffer bounds the pushed messages waiting for the writer.
	notifyBuffer = 64

	// maxRecentLanguages bounds the recently used target languages.
	maxRecentLanguages = 5
)

var (
	// ErrNoSubtitles is returned when a load request produced no cues.
	ErrNoSubtitles = errors.New("bridge: no subtitles found")

	// ErrTranslationFailed is returned when no provider could translate a
	// one-off request.
	ErrTranslationFailed = errors.New("bridge: translation failed")

	errEmptyText = errors.New("bridge: text is required")
)

// Timings are the processor timing knobs applied to new sessions.
type Timings struct {
	TickInterval     time.Duration
	Debounce         time.Duration
	TranslationDelay time.Duration
}

// Deps are the shared services every session runs on.
type Deps struct {
	Translator *translation.Client

	// Sources resolves subtitles by video ID. Nil means clients must send
	// subtitle content themselves.
	Sources source.Source

	// TTS renders spoken translations. Nil disables speech.
	TTS     tts.Provider
	TTSName string

	Settings types.Settings
	Timings  Timings
	Metrics  *observe.Metrics
	Clock    clock.Clock
}

type handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Session is one connected client. It owns a simulated player driven by the
// client's media events, a processor and a speech controller whose audio is
// streamed back over the connection.
type Session struct {
	id      string
	conn    *websocket.Conn
	deps    Deps
	metrics *observe.Metrics

	writeMu sync.Mutex

	player *video.Player
	proc   *processor.Processor
	speech *speech.Controller
	live   *source.Live

	handlers map[Type]handler
	notify   chan Message
	unsubs   []func()

	mu     sync.Mutex
	recent []string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		deps:    deps,
		metrics: deps.Metrics,
		notify:  make(chan Message, notifyBuffer),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	settings := deps.Settings
	var engine speech.Engine
	if deps.TTS != nil {
		engine = ttsengine.New(deps.TTS, newSink(s, deps.Clock), deps.TTSName)
	} else {
		settings.EnableTTS = false
	}
	s.speech = speech.New(engine, speech.WithClock(deps.Clock))

	opts := []processor.Option{
		processor.WithSettings(settings),
		processor.WithMetrics(deps.Metrics),
	}
	if t := deps.Timings; t.TickInterval > 0 {
		opts = append(opts, processor.WithTickInterval(t.TickInterval))
	}
	if t := deps.Timings; t.Debounce > 0 {
		opts = append(opts, processor.WithDebounce(t.Debounce))
	}
	if t := deps.Timings; t.TranslationDelay > 0 {
		opts = append(opts, processor.WithTranslationDelay(t.TranslationDelay))
	}
	s.player = video.NewPlayer(deps.Clock)
	s.proc = processor.New(deps.Clock, deps.Translator, s.speech, opts...)
	s.proc.Bind(s.player)
	s.live = source.NewLive(s.player)

	s.unsubs = append(s.unsubs,
		s.live.Observe(s.proc.AddSubtitle),
		s.proc.OnSubtitle(func(c types.Cue) {
			s.push(TypeSubtitleUpdate, subtitlePayload(c))
		}),
		s.proc.OnTranslation(func(c types.Cue) {
			s.push(TypeTranslationComplete, subtitlePayload(c))
		}),
		s.proc.OnError(func(err error) {
			s.push(TypeError, ErrorPayload{Message: err.Error()})
		}),
	)

	s.handlers = map[Type]handler{
		TypeToggleTranslator:  s.toggle,
		TypeGetVideoInfo:      s.videoInfo,
		TypeUpdateSettings:    s.updateSettings,
		TypeTranslateSubtitle: s.translate,
		TypeLoadSubtitles:     s.load,
		TypeVideoEvent:        s.videoEvent,
		TypeCaptionText:       s.caption,
		TypeGetLanguages:      s.languages,
		TypeGetStats:          s.stats,
	}
	return s
}

func subtitlePayload(c types.Cue) SubtitlePayload {
	if c.IsZero() {
		return SubtitlePayload{}
	}
	return SubtitlePayload{Cue: &c}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Processor returns the session's processor.
func (s *Session) Processor() *processor.Processor { return s.proc }

// UpdateSettings applies patch to the running session.
func (s *Session) UpdateSettings(patch types.SettingsPatch) error {
	if s.deps.TTS == nil {
		off := false
		patch.EnableTTS = &off
	}
	if err := s.proc.UpdateSettings(patch); err != nil {
		return err
	}
	if !s.proc.Settings().EnableTTS {
		s.speech.Stop()
	}
	if patch.TargetLanguage != nil {
		s.rememberLanguage(*patch.TargetLanguage)
	}
	return nil
}

// Run serves the connection until the client disconnects or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop()
	}()

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("bridge: session %s: read: %w", s.id, err)
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("bridge: malformed message", "session", s.id, "err", err)
			s.push(TypeError, ErrorPayload{Message: "malformed message"})
			continue
		}
		s.metrics.RecordBridgeMessage(s.ctx, string(msg.Type), "in")
		s.dispatch(msg)
	}
}

// dispatch runs the handler for msg. Requests that may wait on the network
// are handled off the read loop.
func (s *Session) dispatch(msg Message) {
	h, ok := s.handlers[msg.Type]
	if !ok {
		s.reply(msg, nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type))
		return
	}
	switch msg.Type {
	case TypeTranslateSubtitle, TypeLoadSubtitles, TypeGetLanguages:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			res, err := h(s.ctx, msg.Payload)
			s.reply(msg, res, err)
		}()
	default:
		res, err := h(s.ctx, msg.Payload)
		s.reply(msg, res, err)
	}
}

// reply answers a request that carried an ID.
func (s *Session) reply(req Message, result any, err error) {
	if err != nil {
		slog.Debug("bridge: request failed", "session", s.id, "type", req.Type, "err", err)
	}
	if req.ID == "" {
		if err != nil {
			s.push(TypeError, ErrorPayload{Message: err.Error()})
		}
		return
	}
	out := Message{Type: ResultType(req.Type), ID: req.ID}
	if err != nil {
		out.Error = err.Error()
	} else if result != nil {
		raw, merr := json.Marshal(result)
		if merr != nil {
			out.Error = merr.Error()
		} else {
			out.Payload = raw
		}
	}
	if werr := s.write(s.ctx, out); werr != nil {
		slog.Debug("bridge: reply dropped", "session", s.id, "type", req.Type, "err", werr)
	}
}

// push queues an unsolicited message for the writer. It never blocks; when
// the client falls behind the message is dropped.
func (s *Session) push(t Type, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("bridge: encode push", "type", t, "err", err)
		return
	}
	select {
	case s.notify <- Message{Type: t, Payload: raw}:
	case <-s.ctx.Done():
	default:
		slog.Warn("bridge: client too slow, dropping message", "session", s.id, "type", t)
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.notify:
			if err := s.write(s.ctx, msg); err != nil {
				slog.Debug("bridge: push failed", "session", s.id, "type", msg.Type, "err", err)
			}
		}
	}
}

func (s *Session) write(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", msg.Type, err)
	}
	if err := s.writeFrame(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	s.metrics.RecordBridgeMessage(ctx, string(msg.Type), "out")
	return nil
}

func (s *Session) writeFrame(ctx context.Context, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, typ, data)
}

// sendJSON implements sender for the audio sink.
func (s *Session) sendJSON(ctx context.Context, t Type, payload any) error {
	msg := Message{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bridge: encode %s: %w", t, err)
		}
		msg.Payload = raw
	}
	return s.write(ctx, msg)
}

// sendBinary implements sender for the audio sink.
func (s *Session) sendBinary(ctx context.Context, data []byte) error {
	return s.writeFrame(ctx, websocket.MessageBinary, data)
}

// Close stops the pipeline and closes the connection. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, u := range s.unsubs {
			u()
		}
		s.proc.Close()
		s.speech.Stop()
		s.cancel()
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "")
		slog.Debug("bridge: session closed", "session", s.id)
	})
}

func (s *Session) rememberLanguage(code string) {
	if code == "" || code == types.LanguageAuto {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = slices.DeleteFunc(s.recent, func(c string) bool { return c == code })
	s.recent = slices.Insert(s.recent, 0, code)
	if len(s.recent) > maxRecentLanguages {
		s.recent = s.recent[:maxRecentLanguages]
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("bridge: decode payload: %w", err)
	}
	return v, nil
}

func (s *Session) toggle(_ context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[TogglePayload](raw)
	if err != nil {
		return nil, err
	}
	enable := !s.proc.Running()
	if p.Enabled != nil {
		enable = *p.Enabled
	}
	if enable {
		err := s.proc.Start(s.proc.Subtitles())
		if err != nil && !errors.Is(err, processor.ErrAlreadyRunning) {
			return nil, err
		}
	} else {
		s.proc.Stop()
	}
	return ToggleResult{Enabled: s.proc.Running(), Subtitles: len(s.proc.Subtitles())}, nil
}

func (s *Session) videoInfo(context.Context, json.RawMessage) (any, error) {
	return s.player.Info(), nil
}

func (s *Session) updateSettings(_ context.Context, raw json.RawMessage) (any, error) {
	patch, err := decode[types.SettingsPatch](raw)
	if err != nil {
		return nil, err
	}
	if err := s.UpdateSettings(patch); err != nil {
		return nil, err
	}
	return s.proc.Settings(), nil
}

func (s *Session) translate(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[TranslatePayload](raw)
	if err != nil {
		return nil, err
	}
	if p.Text == "" {
		return nil, errEmptyText
	}
	settings := s.proc.Settings()
	target, src := cmp.Or(p.Target, settings.TargetLanguage), cmp.Or(p.Source, settings.SourceLanguage)
	res := s.deps.Translator.Translate(ctx, p.Text, target, src)
	if res.Fallback {
		return nil, ErrTranslationFailed
	}
	s.rememberLanguage(target)
	return TranslateResult{
		TranslatedText: res.Text,
		DetectedSource: res.DetectedSource,
		Confidence:     res.Confidence,
		Cached:         res.Cached,
	}, nil
}

func (s *Session) load(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[LoadPayload](raw)
	if err != nil {
		return nil, err
	}
	info := video.Info{VideoID: p.VideoID, Title: p.Title, URL: p.URL}
	if id, ok := source.ExtractVideoID(p.URL); ok {
		info.Platform = "youtube"
		if info.VideoID == "" {
			info.VideoID = id
		}
	}

	var cues []types.Cue
	switch {
	case p.Content != "":
		cues = subtitle.Parse(p.Content, subtitle.ParseFormat(p.Format))
	case s.deps.Sources != nil && info.VideoID != "":
		lang := cmp.Or(p.Lang, s.proc.Settings().SourceLanguage)
		cues, err = s.deps.Sources.Subtitles(ctx, info.VideoID, lang)
		if err != nil {
			s.metrics.RecordPipelineError(ctx, "source")
			return nil, err
		}
	}
	if len(cues) == 0 {
		return nil, ErrNoSubtitles
	}

	s.player.SetInfo(info)
	s.live.Reset()
	s.proc.SetSubtitles(cues)
	slog.Info("bridge: subtitles loaded", "session", s.id, "video", info.VideoID, "cues", len(cues))
	return LoadResult{Count: len(cues)}, nil
}

func (s *Session) videoEvent(_ context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[VideoEventPayload](raw)
	if err != nil {
		return nil, err
	}
	typ, err := video.ParseEventType(p.Event)
	if err != nil {
		return nil, err
	}
	if p.Rate > 0 {
		s.player.SetRate(p.Rate)
	}
	if p.Duration > 0 {
		info := s.player.Info()
		info.Duration = p.Duration
		s.player.SetInfo(info)
	}
	s.player.Apply(video.Event{Type: typ, Time: p.CurrentTime})
	return nil, nil
}

func (s *Session) caption(_ context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[CaptionPayload](raw)
	if err != nil {
		return nil, err
	}
	cue, ok := s.live.Push(p.Text)
	return CaptionResult{Accepted: ok, Cue: cue}, nil
}

// LanguagesResult is the reply to [TypeGetLanguages].
type LanguagesResult struct {
	Languages []translation.Language `json:"languages"`
	Recent    []string               `json:"recent"`
	Speech    speech.Capabilities    `json:"speech"`
}

func (s *Session) languages(ctx context.Context, _ json.RawMessage) (any, error) {
	s.mu.Lock()
	recent := slices.Clone(s.recent)
	s.mu.Unlock()
	return LanguagesResult{
		Languages: translation.SupportedLanguages(),
		Recent:    recent,
		Speech:    s.speech.Capabilities(ctx),
	}, nil
}

// StatsResult is the reply to [TypeGetStats].
type StatsResult struct {
	Session   string          `json:"session"`
	Processor processor.Stats `json:"processor"`
	Speaking  bool            `json:"speaking"`
	Settings  types.Settings  `json:"settings"`
}

func (s *Session) stats(context.Context, json.RawMessage) (any, error) {
	return StatsResult{
		Session:   s.id,
		Processor: s.proc.Stats(),
		Speaking:  s.speech.IsSpeaking(),
		Settings:  s.proc.Settings(),
	}, nil
}
