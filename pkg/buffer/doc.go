// Package buffer provides a generic fixed-capacity circular buffer with
// oldest-slot overwrite, indexed access and uniform random sampling, plus
// always-on statistics and optional Prometheus metrics.
//
// # Overview
//
// CircularBuffer is the storage primitive for experience-replay style
// workloads: producers append observations, consumers draw random subsets.
//
//	buf, err := buffer.NewCircularBuffer[int](5)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	buf.PushItems(0, 1, 2, 3, 4, 5)
//	fmt.Println(buf) // CircularBuffer([5, 1, 2, 3, 4])
//
//	batch := buf.Sample(3) // three distinct slots
//
// # Storage Model
//
// The backing slice is allocated once with the full capacity. While filling,
// items are appended so index i is the i-th pushed item. Once full, each push
// replaces the slot under the cursor and advances it, so the cursor always
// points at the least recently written slot. Get addresses physical slots;
// after wraparound the item at an index changes identity as the cursor passes
// it. Callers that need chronological order must track it themselves.
//
// The buffer moves through two phases, filling and saturated, and never
// returns from saturated.
//
// # Zero Capacity
//
// NewCircularBuffer accepts capacity 0. Such a buffer discards every push
// (reporting it to the evict callback), keeps Len() at 0 and reports both
// IsFull and IsEmpty as true: it can accept no more and holds nothing.
//
// # Sampling
//
// Sample(n) returns min(n, Len()) items chosen uniformly among all subsets of
// that size, using a partial Fisher-Yates shuffle of slot indices. Asking for
// more than is stored is not an error; early in a buffer's life a training
// loop simply gets a smaller batch. The random source is injectable:
//
//	buf, _ := buffer.NewCircularBuffer[Transition](10000,
//		buffer.WithSeed[Transition](42),
//	)
//
// # Errors
//
// Get is the only fallible operation. An index outside [0, Len()) returns an
// Invalid classified error matching errors.ErrOutOfRange; it is never clamped.
//
// # Concurrency
//
// CircularBuffer is single-owner. Synchronized wraps one with a sync.RWMutex:
// pushes take the write lock, reads and samples the read lock, so every
// sample is drawn from a consistent length.
//
//	shared, _ := buffer.NewSynchronizedBuffer[Observation](50000,
//		buffer.WithName[Observation]("ReplayMemory"),
//		buffer.WithMetrics[Observation](registry, "replay_buffer"),
//	)
//
// # Observability
//
// Statistics are always collected with atomic counters (pushes, evictions,
// gets, misses, samples) and are available via Stats(). WithMetrics also
// exports them to Prometheus under the replay_buffer_* names with a
// component label.
package buffer
