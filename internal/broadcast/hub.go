// Package broadcast fans values out to independent subscribers without
// letting a slow subscriber block the publisher.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultCapacity is the per-subscriber queue length used when none is given
const DefaultCapacity = 16

// ErrClosed is returned by Recv once the subscription or its hub is closed
var ErrClosed = errors.New("subscription closed")

// LaggedError is returned by Recv when values were dropped because the
// subscriber fell behind. Receiving can continue after it.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged behind, %d values dropped", e.Missed)
}

// IsLagged reports whether err is a *LaggedError
func IsLagged(err error) bool {
	var lagged *LaggedError
	return errors.As(err, &lagged)
}

// Hub is a multi-producer, multi-consumer fan-out channel for one value type
type Hub[T any] struct {
	mu       sync.Mutex
	subs     map[*Subscription[T]]struct{}
	capacity int
	closed   bool
	dropped  atomic.Uint64
}

// New creates a hub whose subscribers buffer up to capacity values each
func New[T any](capacity int) *Hub[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub[T]{
		subs:     make(map[*Subscription[T]]struct{}),
		capacity: capacity,
	}
}

// Publish delivers v to every current subscriber. It never blocks; a full
// subscriber queue loses its oldest value.
func (h *Hub[T]) Publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	for sub := range h.subs {
		if sub.push(v) {
			h.dropped.Add(1)
		}
	}
	return len(h.subs)
}

// Subscribe registers a new subscriber. The initial values are queued ahead
// of anything published afterwards; nothing published earlier is delivered.
func (h *Hub[T]) Subscribe(initial ...T) *Subscription[T] {
	sub := &Subscription[T]{
		hub:      h,
		capacity: h.capacity,
		queue:    make([]T, 0, h.capacity),
		notify:   make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.closed = true
		return sub
	}
	for _, v := range initial {
		if sub.push(v) {
			h.dropped.Add(1)
		}
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Subscribers returns the number of registered subscribers
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the total number of values dropped across all subscribers
func (h *Hub[T]) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes every subscription; later publishes are discarded
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.close()
	}
	h.subs = nil
}

func (h *Hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// Subscription is one subscriber's ordered view of a hub
type Subscription[T any] struct {
	hub      *Hub[T]
	capacity int

	mu     sync.Mutex
	queue  []T
	missed uint64
	closed bool
	notify chan struct{}
}

// push enqueues v, dropping the oldest value when full. It reports whether a value was dropped.
func (s *Subscription[T]) push(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	dropped := false
	if len(s.queue) >= s.capacity {
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.missed++
		dropped = true
	}
	s.queue = append(s.queue, v)

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Recv returns the next value in publish order. After drops it first returns
// a *LaggedError; buffered values are still delivered after a Close.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.missed > 0 {
			missed := s.missed
			s.missed = 0
			s.mu.Unlock()
			return zero, &LaggedError{Missed: missed}
		}
		if len(s.queue) > 0 {
			v := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return v, nil
		}
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.notify:
		}
	}
}

// TryRecv returns the next queued value without waiting
func (s *Subscription[T]) TryRecv() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.queue) == 0 {
		return zero, false
	}
	v := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return v, true
}

// Len returns the number of queued values
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close unsubscribes. Pending Recv calls return ErrClosed once the queue is drained.
func (s *Subscription[T]) Close() {
	s.hub.remove(s)
	s.close()
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
