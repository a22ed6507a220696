package speech

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/types"
)

// QueueGap is the pause between utterances in queue mode.
const QueueGap = 100 * time.Millisecond

// Option configures a [Controller].
type Option func(*Controller)

// WithDefaults sets the utterance defaults. Zero fields keep the built-in
// values from [DefaultOptions].
func WithDefaults(o Options) Option {
	return func(c *Controller) { c.defaults = o.Or(c.defaults) }
}

// WithClock sets the clock used for the queue gap. Defaults to [clock.Real].
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clk = clk }
}

// utterance tracks one Speak call from claim to completion.
type utterance struct {
	cb       Callbacks
	comp     *Completion
	pb       Playback
	finished chan struct{}
}

func (u *utterance) finish(err error) {
	if err != nil {
		if u.cb.OnError != nil {
			u.cb.OnError(err)
		}
	} else if u.cb.OnEnd != nil {
		u.cb.OnEnd()
	}
	u.comp.resolve(err)
	close(u.finished)
}

type queuedItem struct {
	text string
	opts Options
}

// Controller serializes speech through an [Engine].
//
// All methods are safe for concurrent use.
type Controller struct {
	engine Engine
	clk    clock.Clock

	mu         sync.Mutex
	defaults   Options
	voices     []Voice
	current    *utterance
	paused     bool
	queue      []queuedItem
	processing bool
}

// New returns a controller speaking through engine. A nil engine is allowed;
// every Speak then resolves with [ErrNoEngine].
func New(engine Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		clk:      clock.Real(),
		defaults: DefaultOptions(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Speak cancels any utterance in progress and starts speaking text. The
// returned completion resolves with nil when the engine finishes, or with the
// error that ended the utterance ([ErrCancelled] when it was replaced or
// stopped).
func (c *Controller) Speak(ctx context.Context, text string, opts Options, cb Callbacks) *Completion {
	u := &utterance{cb: cb, comp: newCompletion(), finished: make(chan struct{})}
	if c.engine == nil {
		u.finish(ErrNoEngine)
		return u.comp
	}

	c.claim(u)

	c.mu.Lock()
	opts = opts.Or(c.defaults)
	c.mu.Unlock()

	utt := Utterance{
		Text:     strings.TrimSpace(text),
		Language: opts.Language,
		Rate:     opts.Rate,
		Pitch:    opts.Pitch,
		Volume:   opts.Volume,
	}
	utt.Voice = c.pickVoice(ctx, opts)

	pb, err := c.engine.Speak(ctx, utt)

	c.mu.Lock()
	if err != nil {
		if c.current == u {
			c.current = nil
			c.paused = false
		}
		c.mu.Unlock()
		u.finish(fmt.Errorf("speech: start utterance: %w", err))
		return u.comp
	}
	u.pb = pb
	replaced := c.current != u
	c.mu.Unlock()

	if replaced {
		pb.Cancel()
	}
	go c.watch(u)
	return u.comp
}

// claim stops whatever is speaking and installs u as the current utterance.
func (c *Controller) claim(u *utterance) {
	for {
		c.mu.Lock()
		cur := c.current
		if cur == nil {
			c.current = u
			c.paused = false
			c.mu.Unlock()
			return
		}
		c.current = nil
		pb := cur.pb
		c.mu.Unlock()

		if pb != nil {
			pb.Cancel()
		}
		<-cur.finished
	}
}

func (c *Controller) watch(u *utterance) {
	select {
	case <-u.pb.Started():
	case <-u.pb.Done():
	}
	select {
	case <-u.pb.Started():
		if u.cb.OnStart != nil {
			u.cb.OnStart()
		}
	default:
	}
	<-u.pb.Done()

	c.mu.Lock()
	if c.current == u {
		c.current = nil
		c.paused = false
	}
	c.mu.Unlock()

	u.finish(u.pb.Err())
}

func (c *Controller) pickVoice(ctx context.Context, opts Options) Voice {
	voices := c.cachedVoices(ctx)
	if opts.Voice != "" && !strings.EqualFold(opts.Voice, "default") {
		if v, ok := findVoice(voices, opts.Voice); ok {
			return v
		}
		slog.Debug("speech: requested voice not found, selecting by language", "voice", opts.Voice, "language", opts.Language)
	}
	v, _ := BestVoice(voices, BaseCode(opts.Language))
	return v
}

func (c *Controller) cachedVoices(ctx context.Context) []Voice {
	c.mu.Lock()
	voices := c.voices
	c.mu.Unlock()
	if voices != nil {
		return voices
	}
	voices, err := c.engine.Voices(ctx)
	if err != nil {
		slog.Warn("speech: list voices", "err", err)
		return nil
	}
	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()
	return voices
}

// Voices returns the engine's voices, refreshing the cached list.
func (c *Controller) Voices(ctx context.Context) ([]Voice, error) {
	if c.engine == nil {
		return nil, ErrNoEngine
	}
	voices, err := c.engine.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech: list voices: %w", err)
	}
	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()
	return slices.Clone(voices), nil
}

// Pause suspends the current utterance. It is a no-op when nothing is
// speaking or speech is already paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	u := c.current
	if u == nil || u.pb == nil || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.mu.Unlock()

	u.pb.Pause()
	if u.cb.OnPause != nil {
		u.cb.OnPause()
	}
}

// Resume continues a paused utterance.
func (c *Controller) Resume() {
	c.mu.Lock()
	u := c.current
	if u == nil || u.pb == nil || !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.mu.Unlock()

	u.pb.Resume()
	if u.cb.OnResume != nil {
		u.cb.OnResume()
	}
}

// Stop cancels the current utterance and waits until its completion has
// resolved.
func (c *Controller) Stop() {
	c.mu.Lock()
	u := c.current
	c.current = nil
	c.paused = false
	var pb Playback
	if u != nil {
		pb = u.pb
	}
	c.mu.Unlock()

	if u == nil {
		return
	}
	if pb != nil {
		pb.Cancel()
	}
	<-u.finished
}

// IsSpeaking reports whether an utterance is in progress, paused or not.
func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// IsPaused reports whether the current utterance is paused.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetDefaults merges o into the controller defaults. Zero fields are left
// unchanged.
func (c *Controller) SetDefaults(o Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = o.Or(c.defaults)
}

// Defaults returns the current utterance defaults.
func (c *Controller) Defaults() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaults
}

// SpeakCue speaks the cue's display text in the regional tag for lang and
// waits for it to finish.
func (c *Controller) SpeakCue(ctx context.Context, cue types.Cue, lang string, opts Options) error {
	opts.Language = LanguageTag(lang)
	return c.Speak(ctx, cue.Display(), opts, Callbacks{}).Wait(ctx)
}

// SpeakCues speaks cues one after another. A failing cue is logged and
// skipped; progress is reported after every cue that was spoken. It returns
// early with ctx's error when ctx is done.
func (c *Controller) SpeakCues(ctx context.Context, cues []types.Cue, lang string, opts Options, progress func(done, total int)) error {
	for i, cue := range cues {
		if err := ctx.Err(); err != nil {
			c.Stop()
			return err
		}
		if err := c.SpeakCue(ctx, cue, lang, opts); err != nil {
			if ctx.Err() != nil {
				c.Stop()
				return ctx.Err()
			}
			slog.Warn("speech: cue failed", "cue", cue.ID, "index", i, "err", err)
			continue
		}
		if progress != nil {
			progress(i+1, len(cues))
		}
	}
	return nil
}

// Enqueue appends a cue to the speech queue. Nothing is spoken until
// [Controller.ProcessQueue] runs.
func (c *Controller) Enqueue(cue types.Cue, lang string, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts = opts.Or(c.defaults)
	opts.Language = LanguageTag(lang)
	c.queue = append(c.queue, queuedItem{text: cue.Display(), opts: opts})
}

// ProcessQueue starts speaking queued cues in order on a background
// goroutine. Each item waits for the previous one to end or fail, plus
// [QueueGap]. It returns immediately when the queue is empty, when a queue
// run is already active, or when an utterance is in progress.
func (c *Controller) ProcessQueue(ctx context.Context) {
	c.mu.Lock()
	if c.processing || len(c.queue) == 0 || c.current != nil {
		c.mu.Unlock()
		return
	}
	c.processing = true
	c.mu.Unlock()

	go c.drainQueue(ctx)
}

func (c *Controller) drainQueue(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		item := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if err := c.Speak(ctx, item.text, item.opts, Callbacks{}).Wait(ctx); err != nil {
			slog.Debug("speech: queued utterance ended with error", "err", err)
		}
		if !clock.Sleep(c.clk, QueueGap, ctx.Done()) {
			return
		}
	}
}

// ClearQueue drops every queued cue.
func (c *Controller) ClearQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
}

// QueueLen returns the number of queued cues.
func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Test speaks a sample sentence for lang at half volume and reports whether
// it played to the end.
func (c *Controller) Test(ctx context.Context, lang string) bool {
	opts := Options{Language: LanguageTag(lang), Rate: 1, Volume: 0.5}
	if err := c.Speak(ctx, SampleText(lang), opts, Callbacks{}).Wait(ctx); err != nil {
		slog.Warn("speech: voice test failed", "language", lang, "err", err)
		return false
	}
	return true
}

// Capabilities reports whether speech is available, how many voices the
// engine offers and which languages they cover.
func (c *Controller) Capabilities(ctx context.Context) Capabilities {
	if c.engine == nil {
		return Capabilities{}
	}
	voices, err := c.Voices(ctx)
	if err != nil {
		slog.Warn("speech: capabilities", "err", err)
		return Capabilities{}
	}
	langs := make([]string, 0, len(voices))
	for _, v := range voices {
		if v.Lang != "" && !slices.Contains(langs, v.Lang) {
			langs = append(langs, v.Lang)
		}
	}
	return Capabilities{Supported: true, VoiceCount: len(voices), Languages: langs}
}
