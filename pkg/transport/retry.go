package transport

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/ring"
)

// retryableErrors contains all error types that should trigger a retry.
var retryableErrors = []error{
	ring.ErrRingFull,
}

// RetryConfig configures the retry behavior for transient failures.
type RetryConfig struct {
	// InitialDelay is the delay before the first retry. Default: 1ms
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries. Default: 20ms
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier applied after each retry. Default: 2.0
	Multiplier float64

	// MaxAttempts is the maximum number of attempts (including first try). Default: 16
	MaxAttempts int

	// Jitter is the random factor (0-1) added to delay to prevent lockstep retries. Default: 0.1
	Jitter float64

	// ShouldRetry classifies errors. If nil, IsRetryable is used.
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns a RetryConfig sized for waiting out a full message ring.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  16,
		Jitter:       0.1,
	}
}

// IsRetryable returns true if the error is a transient error that should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	for _, retryErr := range retryableErrors {
		if errors.Is(err, retryErr) {
			return true
		}
	}
	return false
}

// Retry executes fn with exponential backoff until it succeeds, returns a non-retryable error,
// or exhausts all attempts. Respects context cancellation and deadlines.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		// Check context before each attempt
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		actualDelay := delay
		if cfg.Jitter > 0 {
			jitterRange := float64(delay) * cfg.Jitter
			actualDelay = delay + time.Duration(rand.Float64()*jitterRange)
		}

		timer := time.NewTimer(actualDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return errors.Join(ErrMaxRetriesExceeded, lastErr)
}
