package processor

import (
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/lingosync/pkg/types"
)

func TestSubscribers_RegistrationOrder(t *testing.T) {
	t.Parallel()
	var (
		s   subscribers
		got []string
	)
	add := func(name string) func() {
		return addSub(&s, &s.onSubtitle, func(types.Cue) { got = append(got, name) })
	}
	add("a")
	unsubB := add("b")
	add("c")
	unsubB()
	unsubB()

	s.subtitle(types.Cue{})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("callbacks = %v, want [a c]", got)
	}
}

func TestSubscribers_UnsubscribeDuringNotify(t *testing.T) {
	t.Parallel()
	var (
		s    subscribers
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)
	addSub(&s, &s.onTranslation, func(types.Cue) {})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.subtitle(types.Cue{ID: "x"})
				s.translation(types.Cue{ID: "x"})
				s.err(errors.New("boom"))
			}
		}
	}()
	for range 500 {
		u1 := addSub(&s, &s.onSubtitle, func(types.Cue) {})
		u2 := addSub(&s, &s.onError, func(error) {})
		u1()
		u2()
	}
	close(stop)
	wg.Wait()

	if n := len(snapshot(&s, subtitleSubs)); n != 0 {
		t.Errorf("%d subtitle subscribers left", n)
	}
	if n := len(snapshot(&s, translationSubs)); n != 1 {
		t.Errorf("%d translation subscribers, want 1", n)
	}
}
