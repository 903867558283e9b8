package bridge

import "sync"

// Slot is a single-value conflating mailbox. Offer never blocks and
// overwrites any value the consumer has not taken yet; TakeIfChanged hands
// out a value at most once per Offer.
type Slot[T any] struct {
	mu      sync.Mutex
	val     T
	version uint64
	seen    uint64

	notify chan struct{}
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{notify: make(chan struct{}, 1)}
}

// Offer stores v. It reports whether an untaken value was replaced.
func (s *Slot[T]) Offer(v T) (replaced bool) {
	s.mu.Lock()
	replaced = s.version != s.seen
	s.val = v
	s.version++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return replaced
}

// TakeIfChanged returns the latest value if it was offered after the last
// successful take.
func (s *Slot[T]) TakeIfChanged() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == s.seen {
		var zero T
		return zero, false
	}
	s.seen = s.version
	return s.val, true
}

// Ready fires after an Offer. A receive is only a hint; confirm with
// TakeIfChanged.
func (s *Slot[T]) Ready() <-chan struct{} { return s.notify }
