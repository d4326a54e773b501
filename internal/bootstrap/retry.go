package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultDialAttempts = 3
	defaultDialBackoff  = 250 * time.Millisecond
	maxDialBackoff      = 2 * time.Second
	backoffRate         = 2.0
)

// permanentError stops retryWithBackoff early.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// retryWithBackoff runs fn up to attempts times, sleeping between failures.
// The delay starts at delay and doubles, capped at maxDialBackoff. Context
// cancellation is checked before each attempt and during each sleep.
func retryWithBackoff(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * backoffRate)
				if delay > maxDialBackoff {
					delay = maxDialBackoff
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
