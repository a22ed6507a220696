// Package translation is the translation client used by the realtime
// processor, the bridge and the CLI.
//
// A [Client] sits in front of one or more [translate.Provider]s. It keeps an
// in-memory cache keyed by text and language pair, optionally backed by a
// persistent [store.Store], collapses concurrent identical requests and never
// fails a translation: when every provider fails the original text comes back
// with [Result.Fallback] set.
package translation

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/internal/resilience"
	"github.com/MrWong99/lingosync/internal/translation/store"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
	"github.com/MrWong99/lingosync/pkg/types"
)

// DefaultRequestDelay is the pause between items of a batch translation.
const DefaultRequestDelay = 100 * time.Millisecond

type (
	// Key identifies a cached translation.
	Key = store.Key

	// Entry is a cached translation.
	Entry = store.Entry
)

// Result is the outcome of [Client.Translate].
type Result struct {
	Text           string
	DetectedSource string
	Confidence     float64

	// Cached is set when the result came from the in-memory or persistent
	// cache.
	Cached bool

	// Fallback is set when no provider produced a translation and Text is
	// the input text.
	Fallback bool
}

// Detection is the outcome of [Client.Detect].
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Option configures a [Client].
type Option func(*Client)

// WithFallback registers a provider tried after the primary, typically the
// keyless endpoint behind a credentialed API. It may be given more than once.
func WithFallback(p translate.Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.fallbacks = append(c.fallbacks, p)
		}
	}
}

// WithStore adds a persistent second-level cache.
func WithStore(s store.Store) Option {
	return func(c *Client) { c.l2 = s }
}

// WithMaxEntries bounds the in-memory cache. Least recently used entries are
// evicted once n is exceeded. Zero, the default, means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Client) { c.maxEntries = max(n, 0) }
}

// WithRequestDelay sets the pause between batch items.
func WithRequestDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithClock sets the clock used for batch delays.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker configures the circuit breaker kept per provider.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = cfg }
}

type cacheItem struct {
	key   Key
	entry Entry
}

// Client translates text through a chain of providers with caching.
//
// All methods are safe for concurrent use.
type Client struct {
	primary   translate.Provider
	fallbacks []translate.Provider
	chain     *resilience.TranslateFallback
	l2        store.Store
	breaker   resilience.CircuitBreakerConfig
	clk       clock.Clock
	metrics   *observe.Metrics

	maxEntries int
	sf         singleflight.Group

	mu    sync.Mutex
	delay time.Duration
	items map[Key]*list.Element
	lru   *list.List
}

// New returns a client translating through primary. When primary is nil the
// first [WithFallback] provider takes its place; with no provider at all
// every translation falls back to the input text.
func New(primary translate.Provider, opts ...Option) *Client {
	c := &Client{
		primary: primary,
		clk:     clock.Real(),
		delay:   DefaultRequestDelay,
		items:   make(map[Key]*list.Element),
		lru:     list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	providers := c.fallbacks
	if c.primary != nil {
		providers = append([]translate.Provider{c.primary}, providers...)
	}
	if len(providers) > 0 {
		c.chain = resilience.NewTranslateFallback(providers[0], resilience.FallbackConfig{CircuitBreaker: c.breaker})
		for _, p := range providers[1:] {
			c.chain.AddFallback(p)
		}
	}
	return c
}

// Translate translates text into target. source may be empty or
// [types.LanguageAuto]. Whitespace-only input is returned unchanged without
// a provider call.
func (c *Client) Translate(ctx context.Context, text, target, source string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text}
	}
	k := Key{Text: text, Source: translate.SourceOrAuto(source), Target: target}

	if e, ok := c.lookup(ctx, k); ok {
		return Result{Text: e.Text, DetectedSource: e.DetectedSource, Confidence: e.Confidence, Cached: true}
	}
	if c.chain == nil {
		return Result{Text: text, Fallback: true}
	}

	v, err, _ := c.sf.Do(k.Text+"|"+k.Source+"|"+k.Target, func() (any, error) {
		return c.fetch(ctx, k)
	})
	if err != nil {
		observe.Logger(ctx).Warn("translation: falling back to original text",
			"target", target, "source", k.Source, "err", err)
		c.metrics.RecordPipelineError(ctx, "translate")
		return Result{Text: text, Fallback: true}
	}
	e := v.(Entry)
	return Result{Text: e.Text, DetectedSource: e.DetectedSource, Confidence: e.Confidence}
}

func (c *Client) fetch(ctx context.Context, k Key) (_ Entry, err error) {
	ctx, span := observe.StartSpan(ctx, "translation.translate",
		attribute.String("translation.source", k.Source),
		attribute.String("translation.target", k.Target),
	)
	defer func() { observe.EndSpan(span, err) }()

	start := c.clk.Now()
	res, err := c.chain.Translate(ctx, translate.Request{Text: k.Text, Source: k.Source, Target: k.Target})
	elapsed := c.clk.Now().Sub(start).Seconds()
	name := c.chain.Name()
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, name, "translate", "error")
		c.metrics.RecordProviderError(ctx, name, "translate")
		return Entry{}, err
	}
	c.metrics.RecordProviderRequest(ctx, name, "translate", "ok")
	c.metrics.TranslationDuration.Record(ctx, elapsed)

	e := Entry{Text: res.Text, DetectedSource: res.DetectedSource, Confidence: res.Confidence}
	if e.DetectedSource == "" {
		e.DetectedSource = k.Source
	}
	c.Remember(ctx, k, e)
	return e, nil
}

func (c *Client) lookup(ctx context.Context, k Key) (Entry, bool) {
	var e Entry
	c.mu.Lock()
	el, ok := c.items[k]
	if ok {
		c.lru.MoveToFront(el)
		e = el.Value.(*cacheItem).entry
	}
	c.mu.Unlock()
	c.metrics.RecordCacheLookup(ctx, observe.TierMemory, ok)
	if ok {
		return e, true
	}
	if c.l2 == nil {
		return Entry{}, false
	}

	e, ok, err := c.l2.Get(ctx, k)
	if err != nil {
		slog.Warn("translation: persistent cache lookup failed", "err", err)
		return Entry{}, false
	}
	c.metrics.RecordCacheLookup(ctx, observe.TierPersistent, ok)
	if ok {
		c.put(k, e)
	}
	return e, ok
}

// Cached returns the cached translation for text without calling a provider.
func (c *Client) Cached(text, target, source string) (Entry, bool) {
	k := Key{Text: text, Source: translate.SourceOrAuto(source), Target: target}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[k]
	if !ok {
		return Entry{}, false
	}
	return el.Value.(*cacheItem).entry, true
}

// Remember stores e for k in the in-memory cache and, when configured, the
// persistent store. Persistent write failures are logged.
func (c *Client) Remember(ctx context.Context, k Key, e Entry) {
	k.Source = translate.SourceOrAuto(k.Source)
	c.put(k, e)
	if c.l2 == nil {
		return
	}
	if err := c.l2.Put(ctx, k, e); err != nil {
		slog.Warn("translation: persistent cache write failed", "err", err)
	}
}

func (c *Client) put(k Key, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheItem).entry = e
		c.lru.MoveToFront(el)
		return
	}
	c.items[k] = c.lru.PushFront(&cacheItem{key: k, entry: e})
	for c.maxEntries > 0 && c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
	}
}

// CacheSize returns the number of in-memory entries.
func (c *Client) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// ClearCache empties the in-memory cache. The persistent store is left
// untouched.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*list.Element)
	c.lru.Init()
}

// SetRequestDelay changes the pause between batch items.
func (c *Client) SetRequestDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

func (c *Client) requestDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// TranslateCue returns cue with its translation attached. On failure the
// translated text equals the original text.
func (c *Client) TranslateCue(ctx context.Context, cue types.Cue, target, source string) types.Cue {
	return cue.WithTranslation(c.Translate(ctx, cue.Text, target, source).Text)
}

// TranslateCues translates cues one at a time with the request delay between
// items, reporting progress in (0, 1] after each. The output has one cue per
// input in the same order. Once ctx is done the remaining cues carry their
// original text.
func (c *Client) TranslateCues(ctx context.Context, cues []types.Cue, target, source string, progress func(float64)) []types.Cue {
	out := make([]types.Cue, len(cues))
	delay := c.requestDelay()
	for i, cue := range cues {
		if ctx.Err() != nil {
			out[i] = cue.WithTranslation(cue.Text)
		} else {
			out[i] = c.TranslateCue(ctx, cue, target, source)
		}
		if progress != nil {
			progress(float64(i+1) / float64(len(cues)))
		}
		if i < len(cues)-1 && ctx.Err() == nil {
			clock.Sleep(c.clk, delay, ctx.Done())
		}
	}
	return out
}

// Detect reports the language of text. Failures yield
// {[types.LanguageAuto], 0}.
func (c *Client) Detect(ctx context.Context, text string) Detection {
	unknown := Detection{Language: types.LanguageAuto}
	if strings.TrimSpace(text) == "" || c.chain == nil {
		return unknown
	}
	d, err := c.chain.Detect(ctx, text)
	if err != nil {
		observe.Logger(ctx).Warn("translation: language detection failed", "err", err)
		return unknown
	}
	return Detection{Language: d.Language, Confidence: d.Confidence}
}

// TranslateLong splits text with [ChunkText] and translates chunk by chunk,
// joining the results with single spaces.
func (c *Client) TranslateLong(ctx context.Context, text, target, source string) string {
	chunks := ChunkText(text, DefaultChunkSize)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, c.Translate(ctx, chunk, target, source).Text)
		if i < len(chunks)-1 && !clock.Sleep(c.clk, c.requestDelay(), ctx.Done()) {
			parts = append(parts, chunks[i+1:]...)
			break
		}
	}
	return strings.Join(parts, " ")
}

// Status reports the circuit state of every configured provider.
func (c *Client) Status() []resilience.EntryStatus {
	if c.chain == nil {
		return nil
	}
	return c.chain.Status()
}

// Close closes the persistent store, if any.
func (c *Client) Close() error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}
