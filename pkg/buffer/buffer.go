// Package buffer provides a fixed-capacity circular buffer with oldest-slot
// overwrite and uniform random sampling, the storage primitive for
// experience-replay workloads.
//
// This package offers:
//   - CircularBuffer: single-owner generic ring with Push, Get and Sample
//   - Synchronized: RWMutex wrapper for producers and samplers on different goroutines
//   - Statistics always enabled for observability
//   - Optional Prometheus metrics integration via functional options
package buffer

import (
	"math/rand/v2"
)

// Buffer is the operation set shared by CircularBuffer and Synchronized.
// The buffer is parameterized by item type T and makes no assumption about it.
type Buffer[T any] interface {
	// Push inserts one item, overwriting the slot at the cursor once full.
	Push(item T)

	// PushItems pushes each item in order. It is not atomic.
	PushItems(items ...T)

	// Get returns the item at a physical slot index.
	// Returns an error matching errors.ErrOutOfRange when index >= Len().
	Get(index int) (T, error)

	// Sample draws min(n, Len()) distinct slots uniformly at random.
	Sample(n int) []T

	// Items returns a copy of the stored items in physical slot order.
	Items() []T

	// Len returns the number of stored items.
	Len() int

	// Capacity returns the maximum number of items the buffer retains.
	Capacity() int

	// IsFull returns true once Len() == Capacity().
	IsFull() bool

	// IsEmpty returns true if the buffer holds no items.
	IsEmpty() bool

	// String renders the buffer as Name([e0, e1, ...]).
	String() string

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics
}

// RandSource supplies the randomness used by Sample.
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	// IntN returns a uniform value in [0, n). n is always > 0.
	IntN(n int) int
}

// globalRand draws from the process-wide math/rand/v2 generator, which is
// safe for concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// NewSeededRand returns a deterministic RandSource for reproducible sampling.
// The returned source is not safe for concurrent use on its own; Synchronized
// serializes access to it.
func NewSeededRand(seed uint64) RandSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// EvictCallback is called with each item that leaves the buffer: the
// overwritten item once the buffer is full, or the pushed item itself when
// capacity is zero.
type EvictCallback[T any] func(item T)

// DefaultName is the type name used by String when WithName is not given.
const DefaultName = "CircularBuffer"
