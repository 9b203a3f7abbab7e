// Package stagerun executes pipeline stages with retry, backoff, and
// error-kind classification.
package stagerun

import (
	"context"
	"log/slog"
	"time"
)

// Policy is the data-driven retry contract consumed by Execute.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	AttemptTimeout    time.Duration
	RetryableKinds    []Kind
}

// DefaultPolicy covers the global pipeline stages.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         2 * time.Second,
		BackoffMultiplier: 2.0,
		AttemptTimeout:    10 * time.Minute,
		RetryableKinds: []Kind{
			KindDownloadFailed,
			KindToolFailure,
			KindModelError,
			KindTimeout,
			KindRateLimit,
			KindMalformedResponse,
		},
	}
}

func (p Policy) retryable(kind Kind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Delay returns the backoff before the given retry. Attempt is 1-based; the
// delay after attempt n is BaseDelay * BackoffMultiplier^(n-1).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffMultiplier
	}
	return time.Duration(d)
}

// Result is the outcome of one stage execution, successful or not.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Failed reports whether the stage exhausted its attempts without success.
func (r Result[T]) Failed() bool { return r.Err != nil }

// Executor runs stage functions under a retry policy. The sleep function is
// injectable so tests do not wait on real backoff.
type Executor struct {
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

func New(logger *slog.Logger) *Executor {
	return &Executor{logger: logger, sleep: sleepContext}
}

// WithSleep overrides the backoff sleeper. Test hook.
func (e *Executor) WithSleep(fn func(context.Context, time.Duration) error) *Executor {
	e.sleep = fn
	return e
}

// Execute invokes fn under the policy. Each attempt runs with its own timeout
// when the policy sets one; the stage as a whole may exceed that across
// retries. A failed attempt with a non-retryable kind stops immediately.
// On failure the zero Value is returned so a failed stage's partial output
// can never leak downstream.
func Execute[T any](ctx context.Context, e *Executor, stage string, pol Policy, fn func(context.Context) (T, error)) Result[T] {
	started := time.Now()
	maxAttempts := pol.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Result[T]{Err: ctx.Err(), Attempts: attempt - 1, Elapsed: time.Since(started)}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if pol.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, pol.AttemptTimeout)
		}
		value, err := fn(attemptCtx)
		cancel()

		if err == nil {
			return Result[T]{Value: value, Attempts: attempt, Elapsed: time.Since(started)}
		}
		lastErr = err

		kind := Classify(err)
		if !pol.retryable(kind) || attempt == maxAttempts {
			if e.logger != nil {
				e.logger.Error("stage failed",
					slog.String("stage", stage),
					slog.String("kind", string(kind)),
					slog.Int("attempt", attempt),
					slog.Any("error", err),
				)
			}
			var zero T
			return Result[T]{Value: zero, Err: err, Attempts: attempt, Elapsed: time.Since(started)}
		}

		delay := pol.Delay(attempt)
		if e.logger != nil {
			e.logger.Warn("stage attempt failed, retrying",
				slog.String("stage", stage),
				slog.String("kind", string(kind)),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.Any("error", err),
			)
		}
		if err := e.sleep(ctx, delay); err != nil {
			var zero T
			return Result[T]{Value: zero, Err: err, Attempts: attempt, Elapsed: time.Since(started)}
		}
	}

	var zero T
	return Result[T]{Value: zero, Err: lastErr, Attempts: maxAttempts, Elapsed: time.Since(started)}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
