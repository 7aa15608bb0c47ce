package natsclient

import (
	"sync"
	"time"
)

const (
	defaultCircuitThreshold = 5
	initialBackoff          = time.Second
)

// breaker counts connection failures. Every threshold failures it trips and
// hands back how long the circuit should stay open; the open period doubles
// on each trip up to maxBackoff and resets after a successful connect.
type breaker struct {
	threshold  int32
	maxBackoff time.Duration

	mu          sync.Mutex
	failures    int32 // since the last success
	round       int32 // since the last trip
	backoff     time.Duration
	lastFailure time.Time
}

func newBreaker() *breaker {
	return &breaker{
		threshold:  defaultCircuitThreshold,
		maxBackoff: time.Minute,
		backoff:    initialBackoff,
	}
}

// fail records one failure at now and reports whether the circuit trips,
// along with the open period to apply.
func (b *breaker) fail(now time.Time) (open time.Duration, tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.round++
	b.lastFailure = now
	if b.round < b.threshold {
		return 0, false
	}

	b.round = 0
	open = b.backoff
	b.backoff = min(b.backoff*2, b.maxBackoff)
	return open, true
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.round = 0
	b.backoff = initialBackoff
	b.lastFailure = time.Time{}
}

func (b *breaker) snapshot() (failures int32, backoff time.Duration, last time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.backoff, b.lastFailure
}
