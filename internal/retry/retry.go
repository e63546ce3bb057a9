// Package retry runs an operation under a bounded-attempt, fixed-delay policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds how often and how quickly an operation is retried.
// Policies are plain values; one Policy may be shared by concurrent callers.
type Policy struct {
	// MaxAttempts caps the number of attempts. Zero or negative means no cap:
	// the operation is retried until it succeeds or ctx is done.
	MaxAttempts int
	// Delay is the fixed pause between attempts. It does not grow.
	Delay time.Duration
	// OnRetry, if set, is called after each failed attempt that will be
	// followed by another one.
	OnRetry func(attempt int, err error)
}

// Named policies for the agent's call sites.
var (
	SubmitPolicy = Policy{MaxAttempts: 10, Delay: time.Second}
	HealthPolicy = Policy{MaxAttempts: 10, Delay: 5 * time.Second}
	// PollPolicy makes one attempt. The poller and monitor treat a failure as
	// "status unknown this tick" and wait for their own interval instead.
	PollPolicy = Policy{MaxAttempts: 1}
)

// Unbounded reports whether the policy retries until ctx is done.
func (p Policy) Unbounded() bool {
	return p.MaxAttempts <= 0
}

// WithOnRetry returns a copy of p that also reports failed attempts to fn.
// A hook already set on p still runs, before fn.
func (p Policy) WithOnRetry(fn func(attempt int, err error)) Policy {
	prev := p.OnRetry
	if prev == nil {
		p.OnRetry = fn
		return p
	}
	p.OnRetry = func(attempt int, err error) {
		prev(attempt, err)
		fn(attempt, err)
	}
	return p
}

// ExhaustedError is returned when every allowed attempt failed. Only the last
// failure is kept.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls op until it succeeds, the policy's attempt budget is spent, or ctx
// is done. It returns op's value, the number of attempts made and, on failure,
// either an *ExhaustedError or ctx's error wrapped with the last failure.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var last error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, interrupted(err, last)
		}

		v, err := op(ctx)
		if err == nil {
			return v, attempt, nil
		}
		last = err

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, attempt, interrupted(ctx.Err(), last)
		}
		if !p.Unbounded() && attempt >= p.MaxAttempts {
			return zero, attempt, &ExhaustedError{Attempts: attempt, Last: last}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := Sleep(ctx, p.Delay); err != nil {
			return zero, attempt, interrupted(err, last)
		}
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func interrupted(ctxErr, last error) error {
	if last == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last failure: %w)", ctxErr, last)
}
