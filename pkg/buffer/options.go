package buffer

import (
	"github.com/tristan-jl/replay-memory/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for buffer instances.
// Stats are ALWAYS collected - they are not optional.
type bufferOptions[T any] struct {
	name    string
	rand    RandSource
	onEvict EvictCallback[T]

	// metricsReg is optional - if provided, buffer stats are also exposed as Prometheus metrics
	metricsReg metric.MetricsRegistrar

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithName sets the type name printed by String, e.g. "ReplayMemory".
// Empty names are ignored.
func WithName[T any](name string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if name != "" {
			opts.name = name
		}
	}
}

// WithRand injects the random source used by Sample.
// If source is nil, this option is ignored.
func WithRand[T any](source RandSource) Option[T] {
	return func(opts *bufferOptions[T]) {
		if source != nil {
			opts.rand = source
		}
	}
}

// WithSeed makes sampling reproducible by using a seeded generator.
func WithSeed[T any](seed uint64) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.rand = NewSeededRand(seed)
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[T any](registry metric.MetricsRegistrar, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictCallback sets a callback invoked for every evicted item.
// The callback runs synchronously inside Push and must not call back into the buffer.
func WithEvictCallback[T any](callback EvictCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.onEvict = callback
	}
}

// applyOptions applies functional options to create final buffer configuration.
func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		name: DefaultName,
		rand: globalRand{},
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
