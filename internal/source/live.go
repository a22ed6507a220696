package source

import (
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"

	"github.com/MrWong99/lingosync/pkg/subtitle"
	"github.com/MrWong99/lingosync/pkg/types"
	"github.com/MrWong99/lingosync/pkg/video"
)

const (
	// DefaultLiveWindow is how long a live cue stays on screen, in seconds.
	DefaultLiveWindow = 5.0

	// DefaultDuplicateThreshold is the Jaro-Winkler similarity at or above
	// which a caption counts as a repeat of the previous one.
	DefaultDuplicateThreshold = 0.92
)

// LiveOption is a functional option for [Live].
type LiveOption func(*Live)

// WithWindow sets the cue duration in seconds.
func WithWindow(sec float64) LiveOption {
	return func(l *Live) {
		if sec > 0 {
			l.window = sec
		}
	}
}

// WithDuplicateThreshold sets the similarity threshold. Values above 1
// disable near-duplicate suppression; exact repeats are still dropped.
func WithDuplicateThreshold(t float64) LiveOption {
	return func(l *Live) {
		l.threshold = t
	}
}

// Live turns caption text scraped from the page into cues anchored at the
// current video position. Player captions re-render the same line many times
// while it rolls in, so a caption that closely matches the previous one
// inside its window is dropped.
type Live struct {
	clock     video.Clock
	window    float64
	threshold float64

	mu      sync.Mutex
	last    types.Cue
	lastKey string
	subs    map[int]func(types.Cue)
	nextSub int
}

var _ Observer = (*Live)(nil)

// NewLive returns a live feed timed by v.
func NewLive(v video.Clock, opts ...LiveOption) *Live {
	l := &Live{
		clock:     v,
		window:    DefaultLiveWindow,
		threshold: DefaultDuplicateThreshold,
		subs:      make(map[int]func(types.Cue)),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Observe implements Observer.
func (l *Live) Observe(fn func(types.Cue)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Push records caption text seen at the current video position. It returns
// the new cue, or false when the text was empty or a near-duplicate.
func (l *Live) Push(text string) (types.Cue, bool) {
	text = subtitle.CleanText(text)
	if text == "" {
		return types.Cue{}, false
	}
	now := l.clock.CurrentTime()
	key := strings.ToLower(text)

	l.mu.Lock()
	if l.duplicateLocked(key, now) {
		l.mu.Unlock()
		return types.Cue{}, false
	}
	cue := types.Cue{
		ID:    "live-" + uuid.NewString(),
		Start: now,
		End:   now + l.window,
		Text:  text,
	}
	l.last, l.lastKey = cue, key
	fns := make([]func(types.Cue), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(cue)
	}
	return cue, true
}

func (l *Live) duplicateLocked(key string, now float64) bool {
	if l.lastKey == "" || !l.last.Contains(now) {
		return false
	}
	if key == l.lastKey {
		return true
	}
	return matchr.JaroWinkler(key, l.lastKey, false) >= l.threshold
}

// Reset forgets the previous caption, e.g. after a seek.
func (l *Live) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last, l.lastKey = types.Cue{}, ""
}
