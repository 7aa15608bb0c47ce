// Package metric provides Prometheus-based metrics collection and an HTTP
// server for replay-memory monitoring.
//
// The registry owns a private prometheus.Registry holding the core service
// metrics (Metrics) plus any component metrics registered through the
// MetricsRegistrar interface, such as the per-buffer counters of pkg/buffer.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("metrics server failed", "error", err)
//	    }
//	}()
//
//	registry.CoreMetrics().RecordServiceStatus("replay", true)
//
// Metrics are served at http://localhost:9090/metrics with a health check at /health.
//
// # Component Metrics
//
// Components register their own collectors under a service name. Keys are
// "service.metric"; registering the same key twice is an Invalid error.
//
//	err := registry.Register("replay_buffer", "buffer_pushes", counter)
package metric
