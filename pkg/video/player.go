package video

import (
	"sync"
	"time"

	"github.com/MrWong99/lingosync/pkg/clock"
)

// Info describes the video a [Player] is tracking.
type Info struct {
	VideoID     string  `json:"videoId"`
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	CurrentTime float64 `json:"currentTime"`
	Paused      bool    `json:"paused"`
	Ended       bool    `json:"ended,omitempty"`
}

// Player is a [Clock] that extrapolates the playback position from the last
// known position while playing. It is driven either by remote reports (the
// browser extension forwarding DOM media events) or directly by callers that
// simulate playback, such as the CLI.
//
// All methods are safe for concurrent use. Subscribers are invoked without
// the internal lock held.
type Player struct {
	clk clock.Clock

	mu      sync.Mutex
	info    Info
	base    float64
	baseAt  time.Time
	playing bool
	rate    float64
	subs    map[int]func(Event)
	nextSub int
}

var _ Clock = (*Player)(nil)

// NewPlayer returns a paused player at position 0.
func NewPlayer(clk clock.Clock) *Player {
	if clk == nil {
		clk = clock.Real()
	}
	return &Player{
		clk:    clk,
		rate:   1,
		baseAt: clk.Now(),
		subs:   make(map[int]func(Event)),
	}
}

// CurrentTime returns the extrapolated playback position.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	pos := p.base
	if p.playing {
		pos += p.clk.Now().Sub(p.baseAt).Seconds() * p.rate
	}
	if p.info.Duration > 0 && pos > p.info.Duration {
		pos = p.info.Duration
	}
	return pos
}

// rebaseLocked pins the current position so that later changes to rate or
// play state extrapolate from here.
func (p *Player) rebaseLocked(pos float64) {
	p.base = pos
	p.baseAt = p.clk.Now()
}

// Subscribe registers fn for playback events.
func (p *Player) Subscribe(fn func(Event)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Play starts or resumes playback and emits [EventPlay]. It is a no-op when
// already playing.
func (p *Player) Play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	pos := p.positionLocked()
	p.rebaseLocked(pos)
	p.playing = true
	p.info.Ended = false
	p.emitUnlock(Event{Type: EventPlay, Time: pos})
}

// Pause pauses playback and emits [EventPause]. It is a no-op when paused.
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	pos := p.positionLocked()
	p.rebaseLocked(pos)
	p.playing = false
	p.emitUnlock(Event{Type: EventPause, Time: pos})
}

// Seek jumps to t seconds and emits [EventSeeked].
func (p *Player) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	p.mu.Lock()
	p.rebaseLocked(t)
	p.info.Ended = false
	p.emitUnlock(Event{Type: EventSeeked, Time: t})
}

// End stops playback at the end of the media and emits [EventEnded].
func (p *Player) End() {
	p.mu.Lock()
	pos := p.positionLocked()
	p.rebaseLocked(pos)
	p.playing = false
	p.info.Ended = true
	p.emitUnlock(Event{Type: EventEnded, Time: pos})
}

// Report corrects the position from an authoritative time update without
// emitting play/pause/seek events. Subscribers receive [EventTimeUpdate].
func (p *Player) Report(t float64, paused bool) {
	p.mu.Lock()
	p.rebaseLocked(t)
	p.playing = !paused
	p.emitUnlock(Event{Type: EventTimeUpdate, Time: t})
}

// Apply feeds a remote event into the player: the position is corrected to
// ev.Time and the matching state transition is performed.
func (p *Player) Apply(ev Event) {
	switch ev.Type {
	case EventPlay:
		p.mu.Lock()
		p.rebaseLocked(ev.Time)
		p.mu.Unlock()
		p.Play()
	case EventPause:
		p.mu.Lock()
		if p.playing {
			p.rebaseLocked(ev.Time)
			p.playing = false
			p.emitUnlock(ev)
			return
		}
		p.rebaseLocked(ev.Time)
		p.mu.Unlock()
	case EventSeeked:
		p.Seek(ev.Time)
	case EventEnded:
		p.mu.Lock()
		p.rebaseLocked(ev.Time)
		p.mu.Unlock()
		p.End()
	default:
		p.mu.Lock()
		paused := !p.playing
		p.mu.Unlock()
		p.Report(ev.Time, paused)
	}
}

// SetRate sets the playback rate used for extrapolation.
func (p *Player) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebaseLocked(p.positionLocked())
	p.rate = rate
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing
}

// SetInfo replaces the descriptive video metadata. Playback state fields in
// info are ignored.
func (p *Player) SetInfo(info Info) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info.VideoID = info.VideoID
	p.info.Title = info.Title
	p.info.URL = info.URL
	p.info.Platform = info.Platform
	p.info.Duration = info.Duration
}

// Info returns the video metadata together with the live playback state.
func (p *Player) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	info.CurrentTime = p.positionLocked()
	info.Paused = !p.playing
	return info
}

// emitUnlock releases p.mu and delivers ev to every subscriber.
func (p *Player) emitUnlock(ev Event) {
	subs := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
