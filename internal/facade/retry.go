package facade

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// Retry wraps op with capped exponential backoff, retrying only while op returns a
// retryable error (Transient or Conflict, per apperrors.IsRetryable), per spec §7's
// propagation policy. Total retry time is bounded by backoff's default max elapsed time
// (~15 minutes); the short per-phase budgets in spec §4.4 (compile:1, launch:3,
// finalize:5 attempts) use RetryN instead.
func Retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if apperrors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// RetryN retries op up to maxAttempts times (inclusive of the first), only for
// retryable errors (Transient or Conflict), matching the orchestrator's fixed per-phase
// attempt budgets.
func RetryN(ctx context.Context, maxAttempts int, op func() error) error {
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return lastErr
}
