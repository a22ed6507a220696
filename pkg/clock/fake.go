package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced [Clock]. Timers and tickers fire only inside
// [Fake.Advance], in deadline order. AfterFunc callbacks run synchronously
// in the advancing goroutine with no internal lock held.
//
// All methods are safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at      time.Time
	period  time.Duration
	ch      chan time.Time
	fn      func()
	stopped bool
}

var _ Clock = (*Fake)(nil)

// NewFake returns a fake clock set to start. A zero start uses a fixed
// arbitrary instant.
func NewFake(start time.Time) *Fake {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a periodic waiter.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	w := &waiter{period: d, ch: make(chan time.Time, 1)}
	f.add(w, d)
	return &fakeTicker{f: f, w: w}
}

// AfterFunc registers a one-shot callback.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	w := &waiter{fn: fn}
	f.add(w, d)
	return &fakeTimer{f: f, w: w}
}

// After registers a one-shot channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	w := &waiter{ch: make(chan time.Time, 1)}
	f.add(w, d)
	return w.ch
}

func (f *Fake) add(w *waiter, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.at = f.now.Add(d)
	f.waiters = append(f.waiters, w)
}

// Advance moves time forward by d, firing every waiter whose deadline is
// reached along the way.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		w := f.nextLocked(target)
		if w == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = w.at
		now := f.now
		if w.period > 0 {
			w.at = w.at.Add(w.period)
		} else {
			f.removeLocked(w)
		}
		f.mu.Unlock()

		if w.ch != nil {
			select {
			case w.ch <- now:
			default:
			}
		}
		if w.fn != nil {
			w.fn()
		}
	}
}

// Waiters returns the number of pending timers and tickers.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// BlockUntil waits until at least n timers or tickers are pending. Tests use
// it to make sure a goroutine has armed its timer before advancing.
func (f *Fake) BlockUntil(n int) {
	for f.Waiters() < n {
		time.Sleep(time.Millisecond)
	}
}

func (f *Fake) nextLocked(target time.Time) *waiter {
	var next *waiter
	for _, w := range f.waiters {
		if w.stopped || w.at.After(target) {
			continue
		}
		if next == nil || w.at.Before(next.at) {
			next = w
		}
	}
	return next
}

func (f *Fake) removeLocked(w *waiter) bool {
	for i, x := range f.waiters {
		if x == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	f *Fake
	w *waiter
}

func (t *fakeTicker) C() <-chan time.Time { return t.w.ch }

func (t *fakeTicker) Stop() {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	t.w.stopped = true
	t.f.removeLocked(t.w)
}

type fakeTimer struct {
	f *Fake
	w *waiter
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	t.w.stopped = true
	return t.f.removeLocked(t.w)
}
