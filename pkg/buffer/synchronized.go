package buffer

import (
	"sync"
)

// Synchronized guards a CircularBuffer for use from several goroutines.
// Pushes take the write lock. Reads and samples take the read lock, so a
// sample always sees one consistent length; the random source is guarded
// separately because concurrent samplers share it.
type Synchronized[T any] struct {
	mu     sync.RWMutex
	randMu sync.Mutex
	buf    *CircularBuffer[T]
}

// NewSynchronized wraps buf. The caller must not use buf directly afterwards.
func NewSynchronized[T any](buf *CircularBuffer[T]) *Synchronized[T] {
	return &Synchronized[T]{buf: buf}
}

// NewSynchronizedBuffer creates a CircularBuffer and wraps it in one step.
func NewSynchronizedBuffer[T any](capacity int, options ...Option[T]) (*Synchronized[T], error) {
	buf, err := NewCircularBuffer(capacity, options...)
	if err != nil {
		return nil, err
	}
	return NewSynchronized(buf), nil
}

// Push inserts item under the write lock.
func (s *Synchronized[T]) Push(item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Push(item)
}

// PushItems inserts all items under a single write lock, so readers never
// observe a partially applied batch.
func (s *Synchronized[T]) PushItems(items ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.PushItems(items...)
}

// Get returns the item at physical slot index.
func (s *Synchronized[T]) Get(index int) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Get(index)
}

// Sample draws min(n, Len()) distinct items from a consistent view.
func (s *Synchronized[T]) Sample(n int) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.buf.Sample(n)
}

// Items returns a copy of the stored items in physical slot order.
func (s *Synchronized[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Items()
}

// Len returns the number of stored items.
func (s *Synchronized[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.Len()
}

// Capacity returns the maximum number of items the buffer retains.
func (s *Synchronized[T]) Capacity() int {
	return s.buf.Capacity() // immutable, no lock needed
}

// IsFull reports whether the buffer is saturated.
func (s *Synchronized[T]) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.IsFull()
}

// IsEmpty reports whether the buffer holds no items.
func (s *Synchronized[T]) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.IsEmpty()
}

// String renders the buffer under the read lock.
func (s *Synchronized[T]) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.String()
}

// Stats returns buffer statistics.
func (s *Synchronized[T]) Stats() *Statistics {
	return s.buf.Stats()
}

// Snapshot runs fn with the buffer held under the read lock.
// fn must not retain buf or call Push on it.
func (s *Synchronized[T]) Snapshot(fn func(buf *CircularBuffer[T])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.randMu.Lock()
	defer s.randMu.Unlock()
	fn(s.buf)
}

var (
	_ Buffer[int] = (*CircularBuffer[int])(nil)
	_ Buffer[int] = (*Synchronized[int])(nil)
)
