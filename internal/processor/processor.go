// Package processor implements the realtime subtitle processor: it follows a
// video clock, tracks the active cue, translates cues as they become active
// and hands translations to speech.
//
// A [Processor] is idle until [Processor.Start]. While active, a sync loop
// samples the video position every tick. A change of the active cue is
// debounced, announced to [Processor.OnSubtitle] subscribers with the
// original text and then translated, from the translation cache when
// possible and otherwise through a translation queue that is drained one
// cue at a time. Translations are announced to [Processor.OnTranslation]
// subscribers and spoken when text-to-speech is enabled and the cue is still
// the active one.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/internal/translation"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
	"github.com/MrWong99/lingosync/pkg/video"
)

// Timing defaults.
const (
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultDebounce         = 100 * time.Millisecond
	DefaultTranslationDelay = 300 * time.Millisecond
)

// Volume and pitch used for spoken translations.
const (
	speechVolume = 0.8
	speechPitch  = 1.0
)

var (
	// ErrNoVideo is returned by Start when no video clock is bound.
	ErrNoVideo = errors.New("processor: no video clock bound")

	// ErrAlreadyRunning is returned by Start while the processor is active.
	ErrAlreadyRunning = errors.New("processor: already running")

	// ErrTranslationFailed is reported to error subscribers when a cue could
	// not be translated and its original text is used instead.
	ErrTranslationFailed = errors.New("processor: translation failed")
)

// Translator is the part of [translation.Client] the processor uses.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) translation.Result
	Cached(text, target, source string) (translation.Entry, bool)
	CacheSize() int
	ClearCache()
}

// Speaker is the part of [speech.Controller] the processor uses.
type Speaker interface {
	Speak(ctx context.Context, text string, opts speech.Options, cb speech.Callbacks) *speech.Completion
	Pause()
	Resume()
	Stop()
}

var (
	_ Translator = (*translation.Client)(nil)
	_ Speaker    = (*speech.Controller)(nil)
)

// Option configures a [Processor].
type Option func(*Processor)

// WithTickInterval sets how often the sync loop samples the video clock.
func WithTickInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.tickInterval = d
		}
	}
}

// WithDebounce sets the delay between a cue change and its handling.
func WithDebounce(d time.Duration) Option {
	return func(p *Processor) { p.debounce = max(d, 0) }
}

// WithTranslationDelay sets the pause between translation queue items.
func WithTranslationDelay(d time.Duration) Option {
	return func(p *Processor) { p.translationDelay = max(d, 0) }
}

// WithSettings sets the initial settings. Defaults to [types.DefaultSettings].
func WithSettings(s types.Settings) Option {
	return func(p *Processor) { p.settings = s }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// Stats is a snapshot of processor state.
type Stats struct {
	Active       bool   `json:"active"`
	Subtitles    int    `json:"subtitles"`
	CurrentIndex int    `json:"currentIndex"`
	QueueLen     int    `json:"queueLen"`
	CacheSize    int    `json:"cacheSize"`
	Generation   uint64 `json:"generation"`
}

// Processor coordinates subtitle sync, translation and speech for one video.
//
// All methods are safe for concurrent use. Subscriber callbacks are invoked
// without internal locks held, but they must not block.
type Processor struct {
	clk     clock.Clock
	tr      Translator
	sp      Speaker
	metrics *observe.Metrics

	tickInterval     time.Duration
	debounce         time.Duration
	translationDelay time.Duration

	mu        sync.Mutex
	settings  types.Settings
	video     video.Clock
	unbind    func()
	subtitles []types.Cue
	current   int
	active    bool
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	stopTick  chan struct{}
	pending   clock.Timer
	queue     []types.Cue
	draining  bool

	subs subscribers
}

// New returns an idle processor.
func New(clk clock.Clock, tr Translator, sp Speaker, opts ...Option) *Processor {
	if clk == nil {
		clk = clock.Real()
	}
	p := &Processor{
		clk:              clk,
		tr:               tr,
		sp:               sp,
		tickInterval:     DefaultTickInterval,
		debounce:         DefaultDebounce,
		translationDelay: DefaultTranslationDelay,
		settings:         types.DefaultSettings(),
		current:          -1,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.cancel()
	return p
}

// Bind attaches the video clock, replacing any previous one.
func (p *Processor) Bind(v video.Clock) {
	unsub := v.Subscribe(p.handleEvent)
	p.mu.Lock()
	prev := p.unbind
	p.video = v
	p.unbind = unsub
	p.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Start activates the processor with cues and starts the sync loop.
func (p *Processor) Start(cues []types.Cue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.video == nil {
		return ErrNoVideo
	}
	if p.active {
		return ErrAlreadyRunning
	}
	p.active = true
	p.subtitles = slices.Clone(cues)
	p.current = -1
	p.resetLocked()
	p.ctx, p.cancel = context.WithCancel(context.Background())

	stop := make(chan struct{})
	p.stopTick = stop
	t := p.clk.NewTicker(p.tickInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				p.sync()
			}
		}
	}()
	slog.Info("processor: started", "cues", len(cues))
	return nil
}

// Stop halts the sync loop, drops pending work and silences speech.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.current = -1
	p.resetLocked()
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
	p.cancel()
	p.mu.Unlock()

	p.sp.Stop()
	slog.Info("processor: stopped")
}

// Close stops the processor and detaches it from the video clock.
func (p *Processor) Close() {
	p.Stop()
	p.mu.Lock()
	unbind := p.unbind
	p.unbind = nil
	p.video = nil
	p.mu.Unlock()
	if unbind != nil {
		unbind()
	}
}

// resetLocked starts a new generation: pending debounce and queued
// translations are dropped and in-flight results are discarded.
func (p *Processor) resetLocked() {
	p.gen++
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	if n := len(p.queue); n > 0 {
		p.metrics.TranslationQueueDepth.Add(context.Background(), -int64(n))
	}
	p.queue = nil
}

func (p *Processor) handleEvent(ev video.Event) {
	p.mu.Lock()
	active, tts := p.active, p.settings.EnableTTS
	p.mu.Unlock()
	if !active {
		return
	}
	switch ev.Type {
	case video.EventSeeked:
		p.seek()
	case video.EventPlay:
		if tts {
			p.sp.Resume()
		}
	case video.EventPause:
		if tts {
			p.sp.Pause()
		}
	case video.EventEnded:
		p.mu.Lock()
		prev := p.current
		p.current = -1
		p.resetLocked()
		p.mu.Unlock()
		p.sp.Stop()
		if prev != -1 {
			p.subs.subtitle(types.Cue{})
		}
	}
}

func (p *Processor) seek() {
	p.mu.Lock()
	prev := p.current
	p.current = -1
	p.resetLocked()
	p.mu.Unlock()

	p.sp.Stop()
	p.sync()

	p.mu.Lock()
	cleared := prev != -1 && p.current == -1
	p.mu.Unlock()
	if cleared {
		p.subs.subtitle(types.Cue{})
	}
}

// sync runs one step of the time sync algorithm.
func (p *Processor) sync() {
	p.mu.Lock()
	v := p.video
	if !p.active || v == nil || len(p.subtitles) == 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	now := v.CurrentTime()

	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	i := subtitle.IndexAt(p.subtitles, now)
	switch {
	case i >= 0 && i != p.current:
		p.current = i
		cue, gen := p.subtitles[i], p.gen
		if p.pending != nil {
			p.pending.Stop()
		}
		p.pending = p.clk.AfterFunc(p.debounce, func() { p.handleChange(gen, cue) })
		p.mu.Unlock()
		p.metrics.RecordCueChange(context.Background())
	case i < 0 && p.current != -1:
		p.current = -1
		if p.pending != nil {
			p.pending.Stop()
			p.pending = nil
		}
		p.mu.Unlock()
		p.subs.subtitle(types.Cue{})
	default:
		p.mu.Unlock()
	}
}

func (p *Processor) isCurrentLocked(gen uint64, id string) bool {
	return p.gen == gen && p.active && p.current >= 0 && p.current < len(p.subtitles) && p.subtitles[p.current].ID == id
}

func (p *Processor) handleChange(gen uint64, cue types.Cue) {
	p.mu.Lock()
	if !p.isCurrentLocked(gen, cue.ID) {
		p.mu.Unlock()
		return
	}
	p.pending = nil
	settings := p.settings
	p.mu.Unlock()

	p.subs.subtitle(cue)

	if e, ok := p.tr.Cached(cue.Text, settings.TargetLanguage, settings.SourceLanguage); ok {
		translated := cue.WithTranslation(e.Text)
		p.subs.translation(translated)
		p.speak(gen, translated, settings)
		return
	}
	p.enqueue(gen, cue)
}

func (p *Processor) enqueue(gen uint64, cue types.Cue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || slices.ContainsFunc(p.queue, func(q types.Cue) bool { return q.ID == cue.ID }) {
		return
	}
	p.queue = append(p.queue, cue)
	p.metrics.TranslationQueueDepth.Add(context.Background(), 1)
	if !p.draining {
		p.draining = true
		go p.drain()
	}
}

func (p *Processor) drain() {
	for {
		p.mu.Lock()
		if !p.active || len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		cue := p.queue[0]
		p.queue = p.queue[1:]
		gen, ctx, settings := p.gen, p.ctx, p.settings
		p.mu.Unlock()
		p.metrics.TranslationQueueDepth.Add(ctx, -1)

		res := p.tr.Translate(ctx, cue.Text, settings.TargetLanguage, settings.SourceLanguage)
		translated := cue.WithTranslation(res.Text)

		p.mu.Lock()
		stale := p.gen != gen
		current := p.isCurrentLocked(gen, cue.ID)
		p.mu.Unlock()

		if !stale {
			if res.Fallback {
				p.metrics.RecordPipelineError(ctx, "translate")
				p.subs.err(fmt.Errorf("processor: cue %s: %w", cue.ID, ErrTranslationFailed))
			}
			p.subs.translation(translated)
			if current {
				p.speak(gen, translated, settings)
			}
		}

		clock.Sleep(p.clk, p.translationDelay, ctx.Done())
	}
}

func (p *Processor) speak(gen uint64, cue types.Cue, settings types.Settings) {
	if !settings.EnableTTS || cue.TranslatedText == "" {
		return
	}
	p.mu.Lock()
	ok := p.isCurrentLocked(gen, cue.ID)
	ctx := p.ctx
	p.mu.Unlock()
	if !ok {
		return
	}

	opts := speech.Options{
		Language: speech.LanguageTag(settings.TargetLanguage),
		Rate:     settings.TTSSpeed,
		Pitch:    speechPitch,
		Volume:   speechVolume,
		Voice:    settings.TTSVoice,
	}
	comp := p.sp.Speak(ctx, cue.TranslatedText, opts, speech.Callbacks{})
	go func() {
		err := comp.Wait(ctx)
		switch {
		case err == nil:
			p.metrics.RecordUtterance(ctx, "ok")
		case errors.Is(err, speech.ErrCancelled), ctx.Err() != nil:
			p.metrics.RecordUtterance(ctx, "cancelled")
		default:
			p.metrics.RecordUtterance(ctx, "error")
			p.metrics.RecordPipelineError(ctx, "speak")
			p.subs.err(fmt.Errorf("processor: speak cue %s: %w", cue.ID, err))
		}
	}()
}

// UpdateSettings applies patch. The merged settings must validate; on error
// the previous settings stay in effect.
func (p *Processor) UpdateSettings(patch types.SettingsPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.settings.Apply(patch)
	if err := next.Validate(); err != nil {
		return err
	}
	p.settings = next
	return nil
}

// Settings returns the current settings.
func (p *Processor) Settings() types.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// SetSubtitles replaces the cue list. Tracking and pending work are reset.
func (p *Processor) SetSubtitles(cues []types.Cue) {
	p.mu.Lock()
	prev := p.current
	p.subtitles = slices.Clone(cues)
	p.current = -1
	p.resetLocked()
	p.mu.Unlock()
	if prev != -1 {
		p.subs.subtitle(types.Cue{})
	}
}

// AddSubtitle inserts cue by start time, as delivered by a live caption
// feed. The active cue keeps its tracking.
func (p *Processor) AddSubtitle(cue types.Cue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.subtitles, func(c types.Cue) bool { return cue.Start < c.Start })
	if i < 0 {
		i = len(p.subtitles)
	}
	p.subtitles = slices.Insert(p.subtitles, i, cue)
	if p.current >= i {
		p.current++
	}
}

// CurrentSubtitle returns the active cue.
func (p *Processor) CurrentSubtitle() (types.Cue, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return types.Cue{}, false
	}
	return p.subtitles[p.current], true
}

// CurrentIndex returns the index of the active cue, or -1.
func (p *Processor) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Subtitles returns a copy of the cue list.
func (p *Processor) Subtitles() []types.Cue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.subtitles)
}

// Running reports whether the processor is active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// ClearCache empties the translation cache.
func (p *Processor) ClearCache() { p.tr.ClearCache() }

// CacheSize returns the number of cached translations.
func (p *Processor) CacheSize() int { return p.tr.CacheSize() }

// Stats returns a snapshot of the processor state.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Active:       p.active,
		Subtitles:    len(p.subtitles),
		CurrentIndex: p.current,
		QueueLen:     len(p.queue),
		Generation:   p.gen,
	}
	p.mu.Unlock()
	s.CacheSize = p.tr.CacheSize()
	return s
}

// OnSubtitle subscribes fn to active cue changes. fn receives the zero cue
// when no cue is active any more.
func (p *Processor) OnSubtitle(fn func(types.Cue)) (unsubscribe func()) {
	return addSub(&p.subs, &p.subs.onSubtitle, fn)
}

// OnTranslation subscribes fn to completed translations.
func (p *Processor) OnTranslation(fn func(types.Cue)) (unsubscribe func()) {
	return addSub(&p.subs, &p.subs.onTranslation, fn)
}

// OnError subscribes fn to per-cue translation and speech failures.
func (p *Processor) OnError(fn func(error)) (unsubscribe func()) {
	return addSub(&p.subs, &p.subs.onError, fn)
}
