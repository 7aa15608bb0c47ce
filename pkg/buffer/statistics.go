package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks buffer operation counts.
type Statistics struct {
	// Atomic counters for thread-safe updates
	pushes    int64
	evictions int64
	gets      int64
	misses    int64
	samples   int64
	sampled   int64

	// Protected by mutex
	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Push records a push operation.
func (s *Statistics) Push() {
	atomic.AddInt64(&s.pushes, 1)
}

// Evict records an item leaving the buffer.
func (s *Statistics) Evict() {
	atomic.AddInt64(&s.evictions, 1)
}

// Get records a successful indexed read.
func (s *Statistics) Get() {
	atomic.AddInt64(&s.gets, 1)
}

// Miss records an out-of-range indexed read.
func (s *Statistics) Miss() {
	atomic.AddInt64(&s.misses, 1)
}

// Sample records a sample call that returned n items.
func (s *Statistics) Sample(n int) {
	atomic.AddInt64(&s.samples, 1)
	atomic.AddInt64(&s.sampled, int64(n))
}

// UpdateSize updates the current buffer size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// Pushes returns the total number of push operations.
func (s *Statistics) Pushes() int64 {
	return atomic.LoadInt64(&s.pushes)
}

// Evictions returns the total number of evicted items.
func (s *Statistics) Evictions() int64 {
	return atomic.LoadInt64(&s.evictions)
}

// Gets returns the total number of successful indexed reads.
func (s *Statistics) Gets() int64 {
	return atomic.LoadInt64(&s.gets)
}

// Misses returns the total number of out-of-range indexed reads.
func (s *Statistics) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Samples returns the total number of sample calls that drew at least one item.
func (s *Statistics) Samples() int64 {
	return atomic.LoadInt64(&s.samples)
}

// SampledItems returns the total number of items handed out by Sample.
func (s *Statistics) SampledItems() int64 {
	return atomic.LoadInt64(&s.sampled)
}

// CurrentSize returns the current number of items in the buffer.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of items the buffer has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// Throughput returns the average number of pushes per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed <= 0 {
		return 0.0
	}
	return float64(s.Pushes()) / elapsed.Seconds()
}

// EvictionRate returns the fraction of pushes that evicted an item (0.0 to 1.0).
func (s *Statistics) EvictionRate() float64 {
	pushes := s.Pushes()
	if pushes == 0 {
		return 0.0
	}
	return float64(s.Evictions()) / float64(pushes)
}

// Utilization returns the current buffer utilization (0.0 to 1.0).
func (s *Statistics) Utilization(capacity int64) float64 {
	if capacity == 0 {
		return 0.0
	}
	return float64(s.CurrentSize()) / float64(capacity)
}

// Uptime returns how long the buffer has been tracked.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	atomic.StoreInt64(&s.pushes, 0)
	atomic.StoreInt64(&s.evictions, 0)
	atomic.StoreInt64(&s.gets, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.samples, 0)
	atomic.StoreInt64(&s.sampled, 0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentSize = 0
	s.maxSize = 0
	s.mu.Unlock()
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Pushes       int64         `json:"pushes"`
	Evictions    int64         `json:"evictions"`
	Gets         int64         `json:"gets"`
	Misses       int64         `json:"misses"`
	Samples      int64         `json:"samples"`
	SampledItems int64         `json:"sampled_items"`
	CurrentSize  int64         `json:"current_size"`
	MaxSize      int64         `json:"max_size"`
	Throughput   float64       `json:"throughput"`
	EvictionRate float64       `json:"eviction_rate"`
	Uptime       time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Pushes:       s.Pushes(),
		Evictions:    s.Evictions(),
		Gets:         s.Gets(),
		Misses:       s.Misses(),
		Samples:      s.Samples(),
		SampledItems: s.SampledItems(),
		CurrentSize:  s.CurrentSize(),
		MaxSize:      s.MaxSize(),
		Throughput:   s.Throughput(),
		EvictionRate: s.EvictionRate(),
		Uptime:       s.Uptime(),
	}
}
