package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrSlotClosed is returned by Take once the slot has been closed.
var ErrSlotClosed = errors.New("slot closed")

// Slot is a single-item mailbox with latest-wins semantics: Put never
// blocks and replaces an unconsumed item. Consumers either block in Take or
// select on Notify and call TryTake.
type Slot[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	item   T
	full   bool
	closed bool
	notify chan struct{}

	overwritten uint64
}

// NewSlot returns an empty open slot.
func NewSlot[T any]() *Slot[T] {
	s := &Slot[T]{notify: make(chan struct{}, 1)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores v, reporting whether an unconsumed item was overwritten. Put on
// a closed slot is a no-op.
func (s *Slot[T]) Put(v T) (overwrote bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.full {
		s.overwritten++
		overwrote = true
	}
	s.item = v
	s.full = true
	s.cond.Signal()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return overwrote
}

// TryTake consumes the item if there is one.
func (s *Slot[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked()
}

// Take blocks until an item is available, the slot is closed or ctx is done.
func (s *Slot[T]) Take(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.full && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	var zero T
	if s.closed {
		return zero, ErrSlotClosed
	}
	if v, ok := s.takeLocked(); ok {
		return v, nil
	}
	return zero, ctx.Err()
}

// Peek returns the unconsumed item without taking it.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item, s.full
}

// Notify returns a channel that receives after each Put. It may hold a stale
// signal, so receivers must use TryTake and tolerate an empty slot.
func (s *Slot[T]) Notify() <-chan struct{} { return s.notify }

// Close wakes all blocked consumers. The unconsumed item is discarded.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.closed = true
	s.item = zero
	s.full = false
	s.cond.Broadcast()
}

// Overwritten returns how many unconsumed items were replaced.
func (s *Slot[T]) Overwritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwritten
}

func (s *Slot[T]) takeLocked() (T, bool) {
	var zero T
	if !s.full {
		return zero, false
	}
	v := s.item
	s.item = zero
	s.full = false
	return v, true
}
