// Package video defines the video clock boundary consumed by the realtime
// processor and the audio scheduler, and a [Player] that implements it.
package video

import (
	"fmt"
	"strings"
)

// EventType enumerates playback events.
type EventType int

const (
	// EventTimeUpdate is a periodic position report. It is informational;
	// consumers poll [Clock.CurrentTime] instead of reacting to it.
	EventTimeUpdate EventType = iota
	EventPlay
	EventPause
	EventSeeked
	EventEnded
)

var eventNames = [...]string{"timeupdate", "play", "pause", "seeked", "ended"}

// String returns the DOM event name.
func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ParseEventType converts a DOM event name into an [EventType].
func ParseEventType(name string) (EventType, error) {
	for i, n := range eventNames {
		if strings.EqualFold(n, name) {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("video: unknown event %q", name)
}

// Event is a playback event with the playback position at which it happened.
type Event struct {
	Type EventType
	Time float64
}

// Clock is anything that exposes a playback position in seconds and
// play/pause/seeked/ended notifications.
type Clock interface {
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64

	// Subscribe registers fn for playback events and returns a function that
	// removes the subscription. fn must not block.
	Subscribe(fn func(Event)) (unsubscribe func())
}
