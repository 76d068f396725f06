package validation

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	baseDelay    = 500 * time.Millisecond
	maxDelay     = 5 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// errTransient wraps failures worth retrying (timeouts, 5xx responses).
type errTransient struct {
	cause error
}

func (e errTransient) Error() string { return e.cause.Error() }
func (e errTransient) Unwrap() error { return e.cause }

// Transient marks an error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errTransient{cause: err}
}

// IsTransient reports whether the error was marked retryable.
func IsTransient(err error) bool {
	var t errTransient
	return errors.As(err, &t)
}

// Retry runs fn up to maxAttempts times, sleeping with bounded
// exponential backoff plus jitter between transient failures. A
// non-transient error aborts immediately.
func Retry(ctx context.Context, maxAttempts int, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func backoffDelay(attempt int) time.Duration {
	delay := baseDelay << (attempt - 1)
	if delay > maxDelay {
		delay = maxDelay
	}
	// Top-level rand functions are safe for the concurrent retries the
	// request-parallel handlers produce.
	return delay + time.Duration(rand.Int63n(int64(jitterWindow)))
}
