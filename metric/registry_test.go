package metric

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/health"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(metricFamilies))
	for _, mf := range metricFamilies {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_Register(t *testing.T) {
	tests := []struct {
		name      string
		collector prometheus.Collector
	}{
		{name: "test_counter", collector: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "counter"})},
		{name: "test_gauge", collector: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "gauge"})},
		{name: "test_histogram", collector: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_histogram", Help: "histogram"})},
		{name: "test_counter_vec", collector: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "vec"}, []string{"kind"})},
	}

	registry := NewMetricsRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, registry.Register("test-service", tt.name, tt.collector))
		})
	}

	tests[3].collector.(*prometheus.CounterVec).WithLabelValues("a").Inc()
	names := gatheredNames(t, registry)
	for _, tt := range tests {
		assert.True(t, names[tt.name], "%s should be gathered", tt.name)
	}
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	newCounter := func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "same help"})
	}

	require.NoError(t, registry.Register("service1", "duplicate_counter", newCounter()))

	// same key: rejected by the registry's own bookkeeping
	err := registry.Register("service1", "duplicate_counter", newCounter())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	// different key, same Prometheus name: rejected by Prometheus
	err = registry.Register("service2", "duplicate_counter", newCounter())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_CoreMetricsGathered(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordServiceStatus("replay", true)
	registry.CoreMetrics().RecordObservations("replay.ingest", 1)

	names := gatheredNames(t, registry)
	assert.True(t, names["replay_service_status"])
	assert.True(t, names["replay_ingest_observations_total"])
	assert.True(t, names["go_goroutines"])
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unregister_counter",
		Help: "A counter to unregister",
	})

	require.NoError(t, registry.Register("test-service", "unregister_counter", counter))
	assert.True(t, gatheredNames(t, registry)["unregister_counter"])

	assert.True(t, registry.Unregister("test-service", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])

	assert.False(t, registry.Unregister("test-service", "unregister_counter"), "second unregister should report false")
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", id),
				Help: "A concurrent counter",
			})

			err := registry.Register("concurrent-service",
				fmt.Sprintf("concurrent_counter_%d", id), counter)
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	counterCount := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			counterCount++
		}
	}
	assert.Equal(t, numGoroutines, counterCount, "All concurrent counters should be registered")
}

func TestCoreMetrics_Record(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordServiceStatus("replay", true)
	m.RecordObservations("replay.ingest", 3)
	m.RecordObservations("replay.ingest", 2)
	m.RecordDecodeError("replay.ingest")
	m.RecordSample("ok", 2*time.Millisecond)
	m.RecordSample("rejected", time.Millisecond)
	m.RecordBatchPublished()
	m.RecordNATSStatus(true)
	m.RecordNATSReconnect()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceStatus.WithLabelValues("replay")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ObservationsReceived.WithLabelValues("replay.ingest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("replay.ingest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SampleRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SampleRequests.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSReconnects))

	m.RecordServiceStatus("replay", false)
	m.RecordNATSStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServiceStatus.WithLabelValues("replay")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSConnected))
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordBatchPublished()

	server := NewServer(0, "", registry)
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())

	handler, err := server.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "replay_batch_published_total")

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestServer_HealthCheck(t *testing.T) {
	server := NewServer(0, "", NewMetricsRegistry())
	var current atomic.Pointer[health.Status]
	set := func(s health.Status) { current.Store(&s) }
	set(health.NewHealthy("replay", "running"))
	server.SetHealthCheck(func() health.Status { return *current.Load() })

	handler, err := server.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	get := func() (int, health.Status) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		var status health.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		return resp.StatusCode, status
	}

	code, status := get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "replay", status.Component)

	set(health.NewDegraded("replay", "empty"))
	code, _ = get()
	assert.Equal(t, http.StatusOK, code, "degraded still serves traffic")

	set(health.NewUnhealthy("replay", "stopped"))
	code, status = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, status.IsUnhealthy())
}

func TestServer_TLSAddress(t *testing.T) {
	server := NewServer(9443, "/m", NewMetricsRegistry())
	assert.Equal(t, "http://localhost:9443/m", server.Address())

	server.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	assert.Equal(t, "https://localhost:9443/m", server.Address())
}

func TestServer_NilRegistry(t *testing.T) {
	server := NewServer(9191, "/m", nil)

	_, err := server.Handler()
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	require.Error(t, server.Start())
}

func TestServer_StopBeforeStart(t *testing.T) {
	server := NewServer(19391, "/metrics", NewMetricsRegistry())
	require.NoError(t, server.Stop(context.Background()))

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept serving after Stop")
	}
}

func TestServer_StopEndsStart(t *testing.T) {
	server := NewServer(19392, "/metrics", NewMetricsRegistry())

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	// Stop may land before or after the listener is installed; both must end Start.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, server.Stop(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
