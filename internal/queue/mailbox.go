package queue

import (
	"context"
	"sync"
)

// Mailbox is an unbounded in-process FIFO. Push never blocks; Pop blocks
// until an item arrives, the mailbox is closed, or ctx ends.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{wake: make(chan struct{})}
}

// Push appends v. It fails only after Close.
func (m *Mailbox[T]) Push(v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.items = append(m.items, v)
	m.broadcast()
	return nil
}

// broadcast wakes every waiter. Callers hold mu.
func (m *Mailbox[T]) broadcast() {
	close(m.wake)
	m.wake = make(chan struct{})
}

// Pop removes the oldest item, waiting for one if necessary. Items pushed
// before Close are still delivered; ErrClosed is returned once empty.
func (m *Mailbox[T]) Pop(ctx context.Context) (T, error) {
	for {
		m.mu.Lock()
		if v, ok := m.popLocked(); ok {
			m.mu.Unlock()
			return v, nil
		}
		if m.closed {
			m.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-wake:
		}
	}
}

// TryPop removes the oldest item without waiting. Production consumers block
// in Pop or take everything with Drain; tests use TryPop to assert a
// mailbox is empty without hanging.
func (m *Mailbox[T]) TryPop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popLocked()
}

func (m *Mailbox[T]) popLocked() (T, bool) {
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

// Drain removes and returns everything queued, oldest first.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.items
	m.items = nil
	return out
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear discards queued items and returns how many were dropped.
func (m *Mailbox[T]) Clear() int {
	return len(m.Drain())
}

// Close stops further pushes and wakes blocked Pops.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.broadcast()
	}
}
