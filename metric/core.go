package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the service-level metrics of a replay memory deployment.
// Per-buffer metrics live with the buffer itself (see pkg/buffer).
type Metrics struct {
	ServiceStatus        *prometheus.GaugeVec
	ObservationsReceived *prometheus.CounterVec
	DecodeErrors         *prometheus.CounterVec
	SampleRequests       *prometheus.CounterVec
	SampleDuration       prometheus.Histogram
	BatchesPublished     prometheus.Counter

	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "replay",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=running)",
			},
			[]string{"service"},
		),

		ObservationsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replay",
				Subsystem: "ingest",
				Name:      "observations_total",
				Help:      "Total number of observations pushed into the buffer",
			},
			[]string{"subject"},
		),

		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replay",
				Subsystem: "ingest",
				Name:      "decode_errors_total",
				Help:      "Total number of messages that could not be decoded",
			},
			[]string{"subject"},
		),

		SampleRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replay",
				Subsystem: "sample",
				Name:      "requests_total",
				Help:      "Total number of sample requests by outcome",
			},
			[]string{"status"},
		),

		SampleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "replay",
				Subsystem: "sample",
				Name:      "duration_seconds",
				Help:      "Time spent drawing a sample from the buffer",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),

		BatchesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replay",
				Subsystem: "batch",
				Name:      "published_total",
				Help:      "Total number of sampled batches published",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "replay",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "replay",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	c.ServiceStatus.WithLabelValues(service).Set(value)
}

// RecordObservations adds n received observations for subject
func (c *Metrics) RecordObservations(subject string, n int) {
	c.ObservationsReceived.WithLabelValues(subject).Add(float64(n))
}

// RecordDecodeError increments the decode error counter
func (c *Metrics) RecordDecodeError(subject string) {
	c.DecodeErrors.WithLabelValues(subject).Inc()
}

// RecordSample records the outcome and duration of a sample request
func (c *Metrics) RecordSample(status string, duration time.Duration) {
	c.SampleRequests.WithLabelValues(status).Inc()
	c.SampleDuration.Observe(duration.Seconds())
}

// RecordBatchPublished increments the published batch counter
func (c *Metrics) RecordBatchPublished() {
	c.BatchesPublished.Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ServiceStatus,
		c.ObservationsReceived,
		c.DecodeErrors,
		c.SampleRequests,
		c.SampleDuration,
		c.BatchesPublished,
		c.NATSConnected,
		c.NATSReconnects,
	}
}
