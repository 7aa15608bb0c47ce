package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tristan-jl/replay-memory/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	pushes    prometheus.Counter
	evictions prometheus.Counter
	gets      prometheus.Counter
	misses    prometheus.Counter
	samples   prometheus.Counter
	sampled   prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "replay",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

func newGauge(prefix, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "replay",
		Subsystem:   "buffer",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry metric.MetricsRegistrar, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		pushes:      newCounter(prefix, "pushes_total", "Total number of items pushed"),
		evictions:   newCounter(prefix, "evictions_total", "Total number of items overwritten or discarded"),
		gets:        newCounter(prefix, "gets_total", "Total number of successful indexed reads"),
		misses:      newCounter(prefix, "misses_total", "Total number of out-of-range indexed reads"),
		samples:     newCounter(prefix, "samples_total", "Total number of sample draws"),
		sampled:     newCounter(prefix, "sampled_items_total", "Total number of items returned by sample draws"),
		size:        newGauge(prefix, "size", "Current number of items in buffer"),
		utilization: newGauge(prefix, "utilization", "Buffer utilization as a fraction (0.0 to 1.0)"),
	}

	named := []struct {
		name string
		c    prometheus.Collector
	}{
		{"buffer_pushes", m.pushes},
		{"buffer_evictions", m.evictions},
		{"buffer_gets", m.gets},
		{"buffer_misses", m.misses},
		{"buffer_samples", m.samples},
		{"buffer_sampled_items", m.sampled},
		{"buffer_size", m.size},
		{"buffer_utilization", m.utilization},
	}
	for i, n := range named {
		if err := registry.Register(prefix, n.name, n.c); err != nil {
			for _, done := range named[:i] {
				registry.Unregister(prefix, done.name)
			}
			return nil, err
		}
	}

	return m, nil
}

// recordPush increments the push counter and updates size/utilization.
func (m *bufferMetrics) recordPush(size, capacity int) {
	m.pushes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordEviction() {
	m.evictions.Inc()
}

func (m *bufferMetrics) recordGet() {
	m.gets.Inc()
}

func (m *bufferMetrics) recordMiss() {
	m.misses.Inc()
}

func (m *bufferMetrics) recordSample(n int) {
	m.samples.Inc()
	m.sampled.Add(float64(n))
}

// updateSize sets the current buffer size and utilization.
func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	if capacity == 0 {
		m.utilization.Set(0)
		return
	}
	m.utilization.Set(float64(size) / float64(capacity))
}
