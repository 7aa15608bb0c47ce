package natsclient

import (
	"context"
	"crypto/tls"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tristan-jl/replay-memory/errors"
	"github.com/tristan-jl/replay-memory/metric"
)

// unreachableURL refuses connections immediately
const unreachableURL = "nats://127.0.0.1:1"

// Test basic client creation
func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

// Test circuit breaker opens after failures
func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		client.recordFailure()
	}
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(5), client.Failures())
}

func TestCircuitBreaker_CustomThreshold(t *testing.T) {
	client, err := NewClient(unreachableURL, WithCircuitBreaker(2, 0))
	require.NoError(t, err)

	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())
	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	for i := 0; i < 100; i++ {
		client.recordFailure()
	}
	assert.Equal(t, time.Minute, client.Backoff(), "backoff caps at max")
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	client.setStatus(StatusCircuitOpen)
	client.testCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())

	// No effect unless the circuit is open
	client.setStatus(StatusConnected)
	client.testCircuit()
	assert.Equal(t, StatusConnected, client.Status())
}

func TestConnect_Failure(t *testing.T) {
	client, err := NewClient(unreachableURL,
		WithTimeouts(Timeouts{Connect: 200 * time.Millisecond}),
		WithCircuitBreaker(2, 0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.Equal(t, StatusDisconnected, client.Status())

	// Second failure trips the breaker
	err = client.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, StatusCircuitOpen, client.Status())

	// Breaker fails fast
	err = client.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsTransient(err))
}

func TestConnect_ContextCancelled(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestConnect_AfterClose(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)
	require.NoError(t, client.Close(context.Background()))

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestOperations_NotConnected(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)
	ctx := context.Background()

	err = client.Publish(ctx, "replay.batch", []byte("{}"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsTransient(err))

	err = client.Subscribe(ctx, "replay.ingest", func(context.Context, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	err = client.HandleRequest(ctx, "replay.sample", func(context.Context, []byte) ([]byte, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Request(ctx, "replay.sample", nil)
	assert.ErrorIs(t, err, errors.ErrNoConnection)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient(unreachableURL, WithAuth(Auth{Username: "user", Password: "pass", Token: "tok"}))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))

	assert.Empty(t, client.username)
	assert.Empty(t, client.password)
	assert.Empty(t, client.token)
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		status   ConnectionStatus
		expected bool
	}{
		{"connected is healthy", StatusConnected, true},
		{"disconnected is not healthy", StatusDisconnected, false},
		{"connecting is not healthy", StatusConnecting, false},
		{"reconnecting is not healthy", StatusReconnecting, false},
		{"circuit open is not healthy", StatusCircuitOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(unreachableURL)
			require.NoError(t, err)
			client.setStatus(tt.status)
			assert.Equal(t, tt.expected, client.IsHealthy())
		})
	}
}

func TestWaitForConnection(t *testing.T) {
	t.Run("times out when not connected", func(t *testing.T) {
		client, err := NewClient(unreachableURL)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err = client.WaitForConnection(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
		assert.True(t, errors.IsTransient(err))
	})

	t.Run("returns when becomes connected", func(t *testing.T) {
		client, err := NewClient(unreachableURL)
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			client.setStatus(StatusConnected)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		assert.NoError(t, client.WaitForConnection(ctx))
	})
}

func TestConnectionOptions(t *testing.T) {
	client, err := NewClient(unreachableURL,
		WithReconnect(10, 5*time.Second),
		WithTimeouts(Timeouts{Ping: 15 * time.Second, Drain: time.Second, Handler: 3 * time.Second}),
		WithName("replay-memory"),
		WithAuth(Auth{Username: "user", Password: "pass"}),
		WithCircuitBreaker(0, 10*time.Second),
		WithLogger(nil),
	)
	require.NoError(t, err)

	assert.Equal(t, 10, client.maxReconnects)
	assert.Equal(t, 5*time.Second, client.reconnectWait)
	assert.Equal(t, 15*time.Second, client.pingInterval)
	assert.Equal(t, time.Second, client.drainTimeout)
	assert.Equal(t, 3*time.Second, client.handlerTimeout)
	assert.Equal(t, 5*time.Second, client.timeout, "unset timeouts keep defaults")
	assert.Equal(t, int32(defaultCircuitThreshold), client.breaker.threshold)
	assert.Equal(t, 10*time.Second, client.breaker.maxBackoff)
	assert.NotNil(t, client.logger)

	// base options + credentials + name
	assert.Len(t, client.ConnectionOptions(), 11)

	secure, err := NewClient(unreachableURL, WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	require.NoError(t, err)
	assert.Len(t, secure.ConnectionOptions(), 10)
}

func TestWithReconnect_KeepsDefaultWait(t *testing.T) {
	client, err := NewClient(unreachableURL, WithReconnect(-1, 0), WithCircuitBreaker(3, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, -1, client.maxReconnects)
	assert.Equal(t, 2*time.Second, client.reconnectWait)
	assert.Equal(t, int32(3), client.breaker.threshold)
	assert.Equal(t, time.Minute, client.breaker.maxBackoff)
}

func TestMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()

	client, err := NewClient(unreachableURL, WithMetrics(metrics))
	require.NoError(t, err)

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NATSConnected))

	client.handleReconnect(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NATSReconnects))

	client.setStatus(StatusReconnecting)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.NATSConnected))
}

func TestGetStatus(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		client.recordFailure()
	}

	status := client.GetStatus()
	assert.Equal(t, int32(3), status.FailureCount)
	assert.Equal(t, StatusDisconnected, status.Status)
	assert.NotZero(t, status.LastFailureTime)
	assert.Zero(t, status.RTT)

	client.resetCircuit()
	assert.Equal(t, int32(0), client.GetStatus().FailureCount)
}

func TestCallbacks(t *testing.T) {
	var (
		mu           sync.Mutex
		disconnected error
		reconnected  bool
		health       []bool
	)
	done := make(chan struct{}, 4)

	client, err := NewClient(unreachableURL, WithEventHandlers(EventHandlers{
		OnDisconnect: func(err error) {
			mu.Lock()
			disconnected = err
			mu.Unlock()
			done <- struct{}{}
		},
		OnReconnect: func() {
			mu.Lock()
			reconnected = true
			mu.Unlock()
			done <- struct{}{}
		},
		OnHealthChange: func(healthy bool) {
			mu.Lock()
			health = append(health, healthy)
			mu.Unlock()
			done <- struct{}{}
		},
	}))
	require.NoError(t, err)

	client.handleDisconnect(nil, errors.ErrConnectionLost)
	assert.Equal(t, StatusReconnecting, client.Status())
	client.handleReconnect(nil)
	assert.Equal(t, StatusConnected, client.Status())

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("callback not invoked")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, disconnected, errors.ErrConnectionLost)
	assert.True(t, reconnected)
	assert.ElementsMatch(t, []bool{false, true}, health)
}

func TestConcurrentSafety(t *testing.T) {
	client, err := NewClient(unreachableURL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	iterations := 100

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.setStatus(StatusConnecting)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = client.Status()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.recordFailure()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			client.resetCircuit()
		}
	}()
	wg.Wait()

	assert.Contains(t, []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	}, client.Status())
}
