package embedding

import (
	"context"
	"errors"
	"time"
)

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// permanent wraps an error so retryWithBackoff stops immediately.
func permanent(err error) error { return &permanentError{err: err} }

// retryWithBackoff runs fn up to attempts times with exponential backoff.
// It stops early on context cancellation or a permanent error.
func retryWithBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var lastErr error

	delay := base
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
	}

	return lastErr
}
