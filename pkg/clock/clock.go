// Package clock abstracts the time sources used by the sync loops so that
// tests can drive ticks, debounce timers and rate-limit delays
// deterministically.
//
// Production code uses [Real]. Tests use [Fake] and move time forward with
// [Fake.Advance].
package clock

import "time"

// Clock is a source of time, tickers and timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker that fires every d. d must be positive.
	NewTicker(d time.Duration) Ticker

	// AfterFunc calls f in its own goroutine (or, for fakes, in the
	// goroutine advancing time) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Ticker delivers periodic ticks. Like [time.Ticker] it drops ticks for slow
// receivers.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer, false if it had already fired or been stopped.
	Stop() bool
}

// Real returns a [Clock] backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Sleep waits for d on c or until done is closed. It reports whether the full
// duration elapsed.
func Sleep(c Clock, d time.Duration, done <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-c.After(d):
		return true
	case <-done:
		return false
	}
}
