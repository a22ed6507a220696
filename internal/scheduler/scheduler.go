// Package scheduler queues spoken subtitles and plays them either in step
// with a video clock or one after another.
//
// In synced mode the scheduler polls the bound [video.Clock] every tick and
// speaks the first queued item whose window contains the playback position.
// Items stay queued so that seeking back replays them. In sequential mode the
// queue is drained in start-time order, each utterance awaited before the
// next one begins.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/speech"
	"github.com/MrWong99/lingosync/pkg/types"
	"github.com/MrWong99/lingosync/pkg/video"
)

// DefaultTickInterval is how often synced mode samples the video clock.
const DefaultTickInterval = 100 * time.Millisecond

// ErrEmptyText is returned when a cue has nothing to speak.
var ErrEmptyText = errors.New("scheduler: cue has no text")

// Speaker is the part of [speech.Controller] the scheduler drives.
type Speaker interface {
	Speak(ctx context.Context, text string, opts speech.Options, cb speech.Callbacks) *speech.Completion
	Pause()
	Resume()
	Stop()
}

var _ Speaker = (*speech.Controller)(nil)

// Options controls playback.
type Options struct {
	// SyncWithVideo selects synced mode. Without a bound clock the
	// scheduler falls back to sequential mode.
	SyncWithVideo bool

	// AutoPlay starts playback when an item is queued.
	AutoPlay bool

	Volume float64
	Rate   float64
	Pitch  float64

	TickInterval time.Duration
}

// DefaultOptions returns synced auto-play at 80% volume.
func DefaultOptions() Options {
	return Options{
		SyncWithVideo: true,
		AutoPlay:      true,
		Volume:        0.8,
		Rate:          1,
		Pitch:         1,
		TickInterval:  DefaultTickInterval,
	}
}

// Item is a queued utterance.
type Item struct {
	Cue       types.Cue
	StartTime float64
	EndTime   float64
	Text      string
	Options   speech.Options
}

func (it Item) contains(t float64) bool {
	return it.StartTime <= t && t <= it.EndTime
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithOptions replaces the playback options.
func WithOptions(o Options) Option {
	return func(s *Scheduler) { s.opts = o }
}

// WithClock sets the tick source. Defaults to [clock.Real].
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clk = clk }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler owns the audio queue.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	sp      Speaker
	clk     clock.Clock
	metrics *observe.Metrics
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	opts     Options
	queue    []Item
	playing  bool
	paused   bool
	closed   bool
	gen      uint64
	drainGen uint64
	epoch    uint64

	// current is the item being spoken; lastID is the cue synced mode last
	// started, kept after the utterance ends so a finished item is not
	// replayed while its window is still open.
	current  Item
	speaking bool
	uttGen   uint64
	lastID   string

	video    video.Clock
	unbind   func()
	stopTick chan struct{}
}

// New returns a stopped scheduler speaking through sp.
func New(sp Speaker, opts ...Option) *Scheduler {
	s := &Scheduler{
		sp:   sp,
		clk:  clock.Real(),
		opts: DefaultOptions(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.opts.TickInterval <= 0 {
		s.opts.TickInterval = DefaultTickInterval
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Options returns the current playback options.
func (s *Scheduler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// UpdateOptions applies fn to the playback options. Queued items keep the
// speech options they were queued with.
func (s *Scheduler) UpdateOptions(fn func(*Options)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.opts)
	if s.opts.TickInterval <= 0 {
		s.opts.TickInterval = DefaultTickInterval
	}
}

// Bind attaches a video clock, replacing any previous one. Playback follows
// its play, pause, seeked and ended events.
func (s *Scheduler) Bind(v video.Clock) {
	unsub := v.Subscribe(s.handleEvent)
	s.mu.Lock()
	prev := s.unbind
	s.video = v
	s.unbind = unsub
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (s *Scheduler) handleEvent(ev video.Event) {
	switch ev.Type {
	case video.EventPlay:
		s.Resume()
	case video.EventPause:
		s.Pause()
	case video.EventSeeked:
		s.mu.Lock()
		s.speaking = false
		s.lastID = ""
		s.epoch++
		recheck := s.opts.SyncWithVideo && s.playing && !s.paused
		s.mu.Unlock()
		s.sp.Stop()
		if recheck {
			s.tick()
		}
	case video.EventEnded:
		s.Stop()
	}
}

func (s *Scheduler) itemFor(cue types.Cue, lang string, custom *speech.Options) (Item, error) {
	text := strings.TrimSpace(cue.Display())
	if text == "" {
		return Item{}, ErrEmptyText
	}
	s.mu.Lock()
	base := speech.Options{
		Language: speech.LanguageTag(lang),
		Rate:     s.opts.Rate,
		Pitch:    s.opts.Pitch,
		Volume:   s.opts.Volume,
	}
	s.mu.Unlock()
	opts := base
	if custom != nil {
		opts = custom.Or(base)
	}
	return Item{Cue: cue, StartTime: cue.Start, EndTime: cue.End, Text: text, Options: opts}, nil
}

// Queue inserts cue into the queue by start time. opts overrides the
// scheduler's voice settings for this item when non-nil. With AutoPlay set,
// playback starts if it is not running.
func (s *Scheduler) Queue(cue types.Cue, lang string, opts *speech.Options) error {
	item, err := s.itemFor(cue, lang, opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	i := slices.IndexFunc(s.queue, func(q Item) bool { return item.StartTime < q.StartTime })
	if i < 0 {
		i = len(s.queue)
	}
	s.queue = slices.Insert(s.queue, i, item)
	auto := s.opts.AutoPlay && !s.playing
	s.mu.Unlock()

	if auto {
		s.Start()
	}
	return nil
}

// QueueMany queues every cue. Cues without text are skipped and reported in
// the returned error.
func (s *Scheduler) QueueMany(cues []types.Cue, lang string, opts *speech.Options) error {
	var errs []error
	for _, c := range cues {
		if err := s.Queue(c, lang, opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PlayNow stops whatever is speaking and speaks cue immediately, bypassing
// the queue. It blocks until the utterance ends and returns its error.
func (s *Scheduler) PlayNow(ctx context.Context, cue types.Cue, lang string, opts *speech.Options) error {
	item, err := s.itemFor(cue, lang, opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.speaking = false
	s.mu.Unlock()
	s.sp.Stop()

	err = s.sp.Speak(ctx, item.Text, item.Options, speech.Callbacks{}).Wait(ctx)
	s.recordUtterance(err)
	return err
}

// Start begins playback. It is a no-op while playing or when the queue is
// empty.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.playing || len(s.queue) == 0 {
		return
	}
	s.playing = true
	s.paused = false
	s.gen++
	s.runLocked()
}

func (s *Scheduler) runLocked() {
	if s.opts.SyncWithVideo {
		if s.video != nil {
			s.startTickerLocked()
			return
		}
		slog.Warn("scheduler: no video clock bound, falling back to sequential playback")
	}
	if s.drainGen != s.gen {
		s.drainGen = s.gen
		go s.drain(s.gen)
	}
}

func (s *Scheduler) startTickerLocked() {
	s.stopTickerLocked()
	stop := make(chan struct{})
	s.stopTick = stop
	t := s.clk.NewTicker(s.opts.TickInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	v := s.video
	if !s.playing || s.paused || v == nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	now := v.CurrentTime()

	s.mu.Lock()
	if !s.playing || s.paused {
		s.mu.Unlock()
		return
	}
	i := slices.IndexFunc(s.queue, func(it Item) bool { return it.contains(now) })
	switch {
	case i >= 0 && s.queue[i].Cue.ID != s.lastID:
		item := s.queue[i]
		s.lastID = item.Cue.ID
		g := s.beginLocked(item)
		epoch := s.epoch
		s.mu.Unlock()
		comp := s.sp.Speak(s.ctx, item.Text, item.Options, speech.Callbacks{})
		go func() { s.finish(g, comp.Wait(s.ctx)) }()

		// A stop or seek that raced with Speak must still silence it.
		s.mu.Lock()
		stale := s.epoch != epoch && s.uttGen == g
		s.mu.Unlock()
		if stale {
			s.sp.Stop()
		}
	case i < 0 && s.speaking:
		s.speaking = false
		s.lastID = ""
		s.mu.Unlock()
		s.sp.Stop()
	default:
		if i < 0 {
			s.lastID = ""
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) beginLocked(item Item) uint64 {
	s.uttGen++
	s.current = item
	s.speaking = true
	return s.uttGen
}

// finish clears current tracking for utterance g.
func (s *Scheduler) finish(g uint64, err error) {
	s.mu.Lock()
	if s.uttGen == g {
		s.speaking = false
		s.current = Item{}
	}
	s.mu.Unlock()
	s.recordUtterance(err)
}

func (s *Scheduler) recordUtterance(err error) {
	switch {
	case err == nil:
		s.metrics.RecordUtterance(s.ctx, "ok")
	case errors.Is(err, speech.ErrCancelled), errors.Is(err, context.Canceled):
		s.metrics.RecordUtterance(s.ctx, "cancelled")
	default:
		slog.Warn("scheduler: utterance failed", "err", err)
		s.metrics.RecordUtterance(s.ctx, "error")
		s.metrics.RecordPipelineError(s.ctx, "speak")
	}
}

func (s *Scheduler) drain(gen uint64) {
	for {
		s.mu.Lock()
		if s.gen != gen || !s.playing || s.paused || len(s.queue) == 0 {
			if s.drainGen == gen {
				s.drainGen = 0
			}
			if s.gen == gen && !s.paused {
				s.playing = false
			}
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		g := s.beginLocked(item)
		s.mu.Unlock()

		err := s.sp.Speak(s.ctx, item.Text, item.Options, speech.Callbacks{}).Wait(s.ctx)
		s.finish(g, err)
	}
}

// Pause suspends playback. It is a no-op unless playing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if !s.playing || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.stopTickerLocked()
	s.mu.Unlock()
	s.sp.Pause()
}

// Resume continues paused playback.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.mu.Unlock()
	s.sp.Resume()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing && !s.paused && !s.closed {
		s.runLocked()
	}
}

// Stop ends playback and silences the current utterance. The queue is kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.playing = false
	s.paused = false
	s.speaking = false
	s.current = Item{}
	s.lastID = ""
	s.gen++
	s.epoch++
	s.stopTickerLocked()
	s.mu.Unlock()
	s.sp.Stop()
}

// Clear empties the queue and stops playback.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.Stop()
}

// Remove drops the queued item for the cue with the given id and reports
// whether one was found.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = slices.DeleteFunc(s.queue, func(it Item) bool { return it.Cue.ID == id })
	return len(s.queue) != n
}

// UpdateItemOptions applies fn to the speech options of the queued item for
// the cue with the given id and reports whether one was found.
func (s *Scheduler) UpdateItemOptions(id string, fn func(*speech.Options)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queue {
		if s.queue[i].Cue.ID == id {
			fn(&s.queue[i].Options)
			return true
		}
	}
	return false
}

// Playing reports whether playback is running, paused or not.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Paused reports whether playback is paused.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Current returns the item being spoken.
func (s *Scheduler) Current() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.speaking
}

// Len returns the number of queued items.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Items returns a copy of the queue in start-time order.
func (s *Scheduler) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queue)
}

// Close stops playback, detaches the video clock and releases background
// goroutines. The scheduler cannot be restarted.
func (s *Scheduler) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	unbind := s.unbind
	s.unbind = nil
	s.video = nil
	s.mu.Unlock()
	if unbind != nil {
		unbind()
	}
	s.cancel()
}
