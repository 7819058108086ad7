// Package retry provides bounded-retry execution with linearly increasing
// backoff and caller-supplied failure classification.
//
// Usage:
//
//	attempts, err := retry.Do(ctx, retry.Config{MaxAttempts: 2, BaseDelay: time.Second}, func() error {
//	    return op.Execute()
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls the retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Zero or negative values are treated as 1 (no retries).
	MaxAttempts int
	// BaseDelay is the wait before the second attempt. The wait before
	// attempt n+1 is BaseDelay × n, so inter-attempt delays are strictly
	// increasing.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration
	// ShouldRetry classifies errors as retryable. When nil, all non-nil
	// errors are retried. Returning false aborts immediately; the error
	// from the aborted attempt is returned without further attempts.
	ShouldRetry func(err error) bool
	// OnAttempt, when non-nil, is called after every attempt with the
	// attempt number (1-based) and the attempt's error (nil on success).
	// Callers use it to record per-attempt accounting.
	OnAttempt func(attempt int, err error)
}

// DefaultConfig provides the defaults used for operation dispatch.
var DefaultConfig = Config{
	MaxAttempts: 2,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
}

// Do calls fn up to cfg.MaxAttempts times, waiting cfg.BaseDelay × attempt
// between attempts. It stops early when ctx is cancelled, fn returns nil, or
// cfg.ShouldRetry rejects the error. The number of attempts actually made and
// the error from the last attempt are returned.
func Do(ctx context.Context, cfg Config, fn func() error) (int, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(err error) bool { return true }
	}

	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, errors.Join(lastErr, err)
		}

		attempts = attempt
		lastErr = fn()
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt, lastErr)
		}
		if lastErr == nil {
			return attempts, nil
		}

		if !shouldRetry(lastErr) {
			return attempts, lastErr
		}

		if attempt < cfg.MaxAttempts {
			delay := cfg.BaseDelay * time.Duration(attempt)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			slog.Debug("retry: attempt failed, retrying",
				"attempt", attempt, "max", cfg.MaxAttempts,
				"err", lastErr, "delay", delay)

			select {
			case <-ctx.Done():
				return attempts, errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return attempts, lastErr
}
