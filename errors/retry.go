package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig drives exponential backoff for transient failures
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableErrors narrows retries to errors matching one of these.
	// Empty means any transient error.
	RetryableErrors []error
}

// DefaultRetryConfig allows three retries starting at 100ms, capped at 5s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry reports whether attempt (zero-based) may be followed by another
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if attempt >= rc.MaxRetries || !IsTransient(err) {
		return false
	}
	if len(rc.RetryableErrors) == 0 {
		return true
	}
	for _, target := range rc.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BackoffDelay is InitialDelay * BackoffFactor^attempt, capped at MaxDelay
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	delay := rc.InitialDelay
	for i := 0; i < attempt && delay < rc.MaxDelay; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
	}
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

// Retry runs op until it succeeds, fails with a non-retryable error, or ctx
// is done. Exhausting attempts on a transient error yields a fatal error that
// matches both ErrMaxRetriesExceeded and the last failure.
func (rc RetryConfig) Retry(ctx context.Context, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !rc.ShouldRetry(err, attempt) {
			if attempt >= rc.MaxRetries && IsTransient(err) {
				return WrapFatal(fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err),
					"RetryConfig", "Retry", fmt.Sprintf("attempt %d", attempt+1))
			}
			return err
		}

		timer := time.NewTimer(rc.BackoffDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
