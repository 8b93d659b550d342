// Package retry provides a bounded, fixed-delay retry combinator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped around the last error once every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns five attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Delay: time.Second}
}

// Predicate decides whether an error may be retried.
type Predicate func(err error) bool

// Hook observes a failed attempt that is about to be retried.
type Hook func(attempt int, err error)

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. Non-retryable errors are returned unchanged. After the
// final attempt the last error is returned wrapped with ErrExhausted.
// onRetry may be nil.
func Do(ctx context.Context, p Policy, retryable Predicate, onRetry Hook, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
