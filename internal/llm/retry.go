package llm

import (
	"context"
	"time"

	"github.com/lectern-ai/page-reader/internal/domain"
)

// RetryPolicy is a bounded-retry policy: max attempts, a backoff function and
// a retryable-error predicate. The sleep hook exists so tests can observe
// backoff without waiting.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// ExponentialBackoff returns base * 2^attempt for a zero-based attempt index.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// TransientOnly retries only transient provider errors.
func TransientOnly(err error) bool {
	return domain.IsTransient(err)
}

// AllButRequestErrors retries anything except request-validation errors.
func AllButRequestErrors(err error) bool {
	return !domain.IsRequest(err)
}

// Do runs op until it succeeds, a non-retryable error occurs, the attempt
// ceiling is reached, or the context is cancelled. The last error is returned.
func (p *RetryPolicy) Do(ctx context.Context, op func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		// No wait after the last attempt.
		if attempt == p.MaxAttempts-1 {
			break
		}

		if err := p.sleep(ctx, p.Backoff(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
