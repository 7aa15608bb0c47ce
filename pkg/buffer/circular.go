package buffer

import (
	"fmt"
	"strings"

	"github.com/tristan-jl/replay-memory/errors"
)

// CircularBuffer is a fixed-capacity ring that appends until full and then
// overwrites the slot at its cursor, which always holds the least recently
// written item once the buffer is saturated.
//
// Indices are physical slots, not ages: after wraparound the item at a given
// index changes as the cursor passes over it.
//
// A CircularBuffer is not safe for concurrent use. Wrap it with Synchronized
// when producers and samplers run on different goroutines.
//
// A zero capacity buffer is legal. It retains nothing and reports both
// IsFull and IsEmpty as true.
type CircularBuffer[T any] struct {
	items    []T // len <= capacity, allocated once with cap == capacity
	capacity int
	cursor   int // next slot to overwrite once full

	name    string
	rand    RandSource
	onEvict EvictCallback[T]

	stats   *Statistics    // ALWAYS initialized for observability
	metrics *bufferMetrics // Optional Prometheus metrics
}

// NewCircularBuffer creates a buffer retaining at most capacity items.
// Negative capacities are treated as zero. The only error is a metrics
// registration failure when WithMetrics is used.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (*CircularBuffer[T], error) {
	if capacity < 0 {
		capacity = 0
	}

	opts := applyOptions(options...)

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "CircularBuffer", "NewCircularBuffer", "metrics registration")
		}
		metrics.updateSize(0, capacity)
	}

	return &CircularBuffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		name:     opts.name,
		rand:     opts.rand,
		onEvict:  opts.onEvict,
		stats:    NewStatistics(),
		metrics:  metrics,
	}, nil
}

// Push inserts item. While filling it is appended; once full it replaces the
// item at the cursor. The cursor then advances modulo capacity.
// With zero capacity the item is discarded.
func (cb *CircularBuffer[T]) Push(item T) {
	cb.stats.Push()

	switch {
	case cb.capacity == 0:
		cb.evicted(item)
	case len(cb.items) < cb.capacity:
		cb.items = append(cb.items, item)
		cb.cursor = (cb.cursor + 1) % cb.capacity
	default:
		old := cb.items[cb.cursor]
		cb.items[cb.cursor] = item
		cb.cursor = (cb.cursor + 1) % cb.capacity
		cb.evicted(old)
	}

	cb.stats.UpdateSize(int64(len(cb.items)))
	if cb.metrics != nil {
		cb.metrics.recordPush(len(cb.items), cb.capacity)
	}
}

func (cb *CircularBuffer[T]) evicted(item T) {
	cb.stats.Evict()
	if cb.metrics != nil {
		cb.metrics.recordEviction()
	}
	if cb.onEvict != nil {
		cb.onEvict(item)
	}
}

// PushItems pushes items in order. Earlier items are evicted first when the
// batch exceeds the remaining room.
func (cb *CircularBuffer[T]) PushItems(items ...T) {
	for _, item := range items {
		cb.Push(item)
	}
}

// Get returns the item stored at physical slot index.
func (cb *CircularBuffer[T]) Get(index int) (T, error) {
	if index < 0 || index >= len(cb.items) {
		var zero T
		cb.stats.Miss()
		if cb.metrics != nil {
			cb.metrics.recordMiss()
		}
		return zero, errors.WrapInvalid(
			fmt.Errorf("%w: index %d, len %d", errors.ErrOutOfRange, index, len(cb.items)),
			"CircularBuffer", "Get", "index lookup")
	}

	cb.stats.Get()
	if cb.metrics != nil {
		cb.metrics.recordGet()
	}
	return cb.items[index], nil
}

// Sample returns min(n, Len()) items drawn uniformly without replacement.
// No slot appears twice in one result. Each call is independent.
// A non-positive n or an empty buffer yields an empty slice.
func (cb *CircularBuffer[T]) Sample(n int) []T {
	size := len(cb.items)
	if n > size {
		n = size
	}
	if n <= 0 {
		return []T{}
	}

	// Partial Fisher-Yates over slot indices: the first n positions of a
	// uniform permutation.
	slots := make([]int, size)
	for i := range slots {
		slots[i] = i
	}

	out := make([]T, n)
	for i := 0; i < n; i++ {
		j := i + cb.rand.IntN(size-i)
		slots[i], slots[j] = slots[j], slots[i]
		out[i] = cb.items[slots[i]]
	}

	cb.stats.Sample(n)
	if cb.metrics != nil {
		cb.metrics.recordSample(n)
	}
	return out
}

// Items returns a copy of the stored items in physical slot order.
func (cb *CircularBuffer[T]) Items() []T {
	out := make([]T, len(cb.items))
	copy(out, cb.items)
	return out
}

// Len returns the number of stored items.
func (cb *CircularBuffer[T]) Len() int {
	return len(cb.items)
}

// Capacity returns the maximum number of items the buffer retains.
func (cb *CircularBuffer[T]) Capacity() int {
	return cb.capacity
}

// IsFull reports whether the buffer is saturated. Always true for zero capacity.
func (cb *CircularBuffer[T]) IsFull() bool {
	return len(cb.items) == cb.capacity
}

// IsEmpty reports whether the buffer holds no items.
func (cb *CircularBuffer[T]) IsEmpty() bool {
	return len(cb.items) == 0
}

// Name returns the type name used by String.
func (cb *CircularBuffer[T]) Name() string {
	return cb.name
}

// String renders the items in physical slot order as Name([e0, e1, ...]).
func (cb *CircularBuffer[T]) String() string {
	var sb strings.Builder
	sb.WriteString(cb.name)
	sb.WriteString("([")
	for i, item := range cb.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", item)
	}
	sb.WriteString("])")
	return sb.String()
}

// Stats returns buffer statistics (always available for observability).
func (cb *CircularBuffer[T]) Stats() *Statistics {
	return cb.stats
}
