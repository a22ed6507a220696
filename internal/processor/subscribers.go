package processor

import (
	"slices"
	"sync"

	"github.com/MrWong99/lingosync/pkg/types"
)

type sub[F any] struct {
	id int
	fn F
}

// subscribers holds the callback lists. Callbacks run in registration order.
type subscribers struct {
	mu            sync.Mutex
	next          int
	onSubtitle    []sub[func(types.Cue)]
	onTranslation []sub[func(types.Cue)]
	onError       []sub[func(error)]
}

func addSub[F any](s *subscribers, list *[]sub[F], fn F) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	*list = append(*list, sub[F]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*list = slices.DeleteFunc(*list, func(e sub[F]) bool { return e.id == id })
	}
}

// snapshot copies the callbacks selected by list under the lock, so
// notifications never race with an unsubscribe rewriting the slice.
func snapshot[F any](s *subscribers, list func(*subscribers) []sub[F]) []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := list(s)
	out := make([]F, len(entries))
	for i, e := range entries {
		out[i] = e.fn
	}
	return out
}

func subtitleSubs(s *subscribers) []sub[func(types.Cue)] { return s.onSubtitle }
func translationSubs(s *subscribers) []sub[func(types.Cue)] { return s.onTranslation }
func errorSubs(s *subscribers) []sub[func(error)] { return s.onError }

func (s *subscribers) subtitle(c types.Cue) {
	for _, fn := range snapshot(s, subtitleSubs) {
		fn(c)
	}
}

func (s *subscribers) translation(c types.Cue) {
	for _, fn := range snapshot(s, translationSubs) {
		fn(c)
	}
}

func (s *subscribers) err(err error) {
	for _, fn := range snapshot(s, errorSubs) {
		fn(err)
	}
}
