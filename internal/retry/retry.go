// Package retry provides the single reusable retry policy applied to
// external provider calls. Call sites inject a Policy instead of
// hand-rolling retry loops.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried: exponential backoff
// with jitter, capped attempts and capped total wait. Which errors are
// worth retrying is decided by the Retryable predicate; everything else
// fails immediately.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps a single backoff delay.
	MaxInterval time.Duration

	// MaxElapsed caps the total time spent on one operation,
	// including waits. Zero means no cap.
	MaxElapsed time.Duration

	// Retryable reports whether an error is transient. A nil
	// predicate retries every error.
	Retryable func(error) bool
}

// Do runs op, retrying transient failures per the policy. It returns
// nil on the first success, the last error once the budget is spent,
// or immediately on a non-retryable error or context cancellation.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = p.MaxElapsed
	b.Reset()

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	// MaxRetries counts retries after the first attempt.
	return backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
