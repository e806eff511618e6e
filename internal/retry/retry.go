// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a permanent error, or has been
// called attempts times. Between failed attempts it waits for delay. The
// attempt number passed to fn starts at 1.
//
// Do returns the number of attempts made and the last error, unwrapped
// from Permanent. A cancelled context ends the loop after the current
// attempt, and the context error is joined to the last error when it
// interrupts a wait.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context, attempt int) error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, delay); err != nil {
				return attempt - 1, errors.Join(lastErr, err)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		var p *permanentError
		if errors.As(err, &p) {
			return attempt, p.err
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, lastErr
		}
	}

	return attempts, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
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
