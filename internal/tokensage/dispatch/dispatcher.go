package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelnar/tokensage/common/retry"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

// Config tunes the dispatcher's retry and timeout behaviour.
type Config struct {
	// MaxAttempts is the total number of execution attempts per dispatch.
	// Defaults to 2.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; the wait before
	// attempt n+1 is BaseDelay × n. Defaults to 1s.
	BaseDelay time.Duration
	// MaxDelay caps the inter-attempt wait. Defaults to 30s.
	MaxDelay time.Duration
	// Timeout bounds a whole dispatch call (all attempts plus backoff).
	// Zero disables the bound.
	Timeout time.Duration
}

// Result is the outcome of one dispatch: terminal state, payload or error,
// attempt count, and elapsed time.
type Result struct {
	Success  bool
	Payload  any
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Dispatcher executes the operation bound to a resolved intent. Every
// execution attempt, successful or not, is recorded into the caller's
// session counters as an observable side effect.
type Dispatcher struct {
	registry *Registry
	sessions memory.Store
	cfg      Config
}

// NewDispatcher wires a dispatcher over the registry and session store.
func NewDispatcher(registry *Registry, sessions memory.Store, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = retry.DefaultConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = retry.DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = retry.DefaultConfig.MaxDelay
	}
	return &Dispatcher{registry: registry, sessions: sessions, cfg: cfg}
}

// Dispatch looks up the operation bound to operationName, checks its
// preconditions, and executes it under the retry policy:
//
//   - Validation and auth failures abort immediately: they are not
//     transient, so retrying cannot help.
//   - All other failures are retried with linearly increasing backoff until
//     MaxAttempts is exhausted; the last error is surfaced.
//
// The runtime handle is passed through to the operation untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, operationName string, runtime any, msg *Message, sessionID string) Result {
	start := time.Now()

	op, ok := d.registry.Lookup(operationName)
	if !ok {
		err := &OperationError{Kind: KindNotFound, Op: operationName, Err: ErrOperationNotFound}
		d.sessions.RecordError(sessionID, err.Error())
		return Result{Err: err, Elapsed: time.Since(start)}
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	// Precondition check runs once, before the first attempt.
	valid, err := op.Validate(ctx, runtime, msg)
	if err != nil || !valid {
		if err == nil {
			err = ErrValidationFailed
		}
		vErr := &OperationError{Kind: KindValidation, Op: operationName, Err: err}
		d.sessions.RecordError(sessionID, vErr.Error())
		slog.Warn("dispatch: precondition rejected call", "operation", operationName, "err", err)
		return Result{Err: vErr, Elapsed: time.Since(start)}
	}

	var payload any
	attempts, execErr := retry.Do(ctx, retry.Config{
		MaxAttempts: d.cfg.MaxAttempts,
		BaseDelay:   d.cfg.BaseDelay,
		MaxDelay:    d.cfg.MaxDelay,
		ShouldRetry: func(err error) bool { return retryable(Classify(err)) },
		OnAttempt: func(attempt int, err error) {
			d.sessions.RecordAPICall(sessionID)
			if err != nil {
				d.sessions.RecordError(sessionID, fmt.Sprintf("%s (attempt %d): %v", operationName, attempt, err))
			}
		},
	}, func() error {
		var err error
		payload, err = op.Execute(ctx, runtime, msg)
		return err
	})

	if execErr != nil {
		kind := Classify(execErr)
		slog.Warn("dispatch: operation failed",
			"operation", operationName, "kind", kind.String(),
			"attempts", attempts, "err", execErr)
		return Result{
			Err:      &OperationError{Kind: kind, Op: operationName, Err: execErr},
			Attempts: attempts,
			Elapsed:  time.Since(start),
		}
	}

	return Result{
		Success:  true,
		Payload:  payload,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
}
