package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryConfig_ShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.False(t, rc.ShouldRetry(nil, 0))
	assert.True(t, rc.ShouldRetry(ErrConnectionTimeout, 0))
	assert.True(t, rc.ShouldRetry(errors.New("dial: connection refused"), 2))
	assert.False(t, rc.ShouldRetry(ErrConnectionTimeout, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(ErrInvalidData, 0))
	assert.False(t, rc.ShouldRetry(ErrInvalidConfig, 0))

	rc.RetryableErrors = []error{ErrConnectionTimeout}
	assert.True(t, rc.ShouldRetry(fmt.Errorf("connect: %w", ErrConnectionTimeout), 1))
	assert.False(t, rc.ShouldRetry(ErrConnectionLost, 1))
}

func TestRetryConfig_BackoffDelay(t *testing.T) {
	rc := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, d := range want {
		assert.Equal(t, d, rc.BackoffDelay(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, rc.InitialDelay, rc.BackoffDelay(-1))
}

func TestRetryConfig_Retry(t *testing.T) {
	rc := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return ErrConnectionTimeout
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func(context.Context) error {
			calls++
			return ErrConnectionLost
		})
		assert.Equal(t, rc.MaxRetries+1, calls)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.ErrorIs(t, err, ErrConnectionLost)
		assert.True(t, IsFatal(err))
	})

	t.Run("invalid is returned as is", func(t *testing.T) {
		calls := 0
		err := rc.Retry(context.Background(), func(context.Context) error {
			calls++
			return ErrInvalidData
		})
		assert.Same(t, ErrInvalidData, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("context canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := rc
		slow.InitialDelay = time.Minute
		slow.MaxDelay = time.Minute

		err := slow.Retry(ctx, func(context.Context) error { return ErrConnectionTimeout })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
