// Package resilience provides retry and circuit breaker primitives for the
// storefront HTTP calls.
package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first
	// try). A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BackoffFactor scales the wait between attempts: the sleep before
	// retry N (zero-based) is BackoffFactor * 2^N seconds. Default: 0.3.
	BackoffFactor float64

	// MaxBackoff caps a single backoff sleep. Default: 30s.
	MaxBackoff time.Duration

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff sleep with the attempt number
	// (1-based) and the error that triggered the retry.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used when a source
// does not override it.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BackoffFactor: 0.3,
		MaxBackoff:    30 * time.Second,
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 0.3
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return cfg
}

// Do executes fn with retry logic according to cfg. Only errors deemed
// transient (via ShouldRetry or the default IsTransient check) are
// retried. Context cancellation stops retries immediately. Do never
// panics; the final error of an exhausted retry loop is returned as-is.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value. The value from the
// successful attempt is preserved; a failed run returns the zero value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(Backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Backoff returns the sleep before retrying after the given zero-based
// attempt: BackoffFactor * 2^attempt seconds, capped at MaxBackoff.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = applyDefaults(cfg)
	secs := cfg.BackoffFactor * math.Pow(2, float64(attempt))
	d := time.Duration(secs * float64(time.Second))
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	if d < 0 {
		d = 0
	}
	return d
}

// RetryLogger returns an OnRetry callback that logs each retry attempt
// for the named source and operation.
func RetryLogger(source, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying request",
			zap.String("source", source),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
