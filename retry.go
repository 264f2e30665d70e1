package go_bcapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryableFunc is an operation that can be handed to RetryWithBackoff.
// Its errors decide retry behavior: see isRetryable.
type RetryableFunc func() error

// MaxRetriesExceededError is returned when the retry budget is spent
// without a success. It unwraps to the last error the operation returned.
type MaxRetriesExceededError struct {
	Attempts int
	LastErr  error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("bcapi: max retries (%d) exceeded: %v", e.Attempts, e.LastErr)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.LastErr
}

// RetryWithBackoff runs fn with exponential backoff until it succeeds,
// the error is fatal, the retry budget is spent or the context ends.
//
// The session itself never retries; this helper exists for callers that
// want to re-dial a node that is rebooting or briefly unreachable:
//
//	err := RetryWithBackoff(ctx, 5, time.Second, func() error {
//	    return session.Open(ctx)
//	})
//
// maxRetries 0 means a single attempt; negative means retry forever.
// The delay starts at initialBackoff, doubles each attempt and caps at
// five minutes. Authoritative rejections (bad credentials, closed
// client, invalid arguments) return immediately: retrying a node that
// answered "no" only repeats the "no". Everything else, including plain
// connect failures while a node reboots, is retried.
func RetryWithBackoff(ctx context.Context, maxRetries int, initialBackoff time.Duration, fn RetryableFunc) error {
	const maxBackoff = 5 * time.Minute

	attempt := 0
	backoff := initialBackoff

	for {
		err := fn()
		if err == nil {
			if attempt > 0 {
				Debug("Retry succeeded after %d attempts", attempt)
			}
			return nil
		}

		attempt++

		if retryErr := shouldRetryAfterError(err, attempt, maxRetries); retryErr != nil {
			return retryErr
		}

		if waitErr := waitWithBackoff(ctx, backoff, attempt, err); waitErr != nil {
			return waitErr
		}

		backoff = calculateNextBackoff(backoff, maxBackoff)
	}
}

// shouldRetryAfterError decides whether another attempt is worthwhile.
// Returns nil to continue retrying, or the error to hand the caller.
func shouldRetryAfterError(err error, attempt, maxRetries int) error {
	if !isRetryable(err) {
		Debug("Not retrying after fatal error: %v", err)
		return fmt.Errorf("bcapi: fatal error: %w", err)
	}

	if maxRetries >= 0 && attempt > maxRetries {
		return &MaxRetriesExceededError{Attempts: maxRetries, LastErr: err}
	}
	return nil
}

// isRetryable reports whether another attempt can change the outcome.
// Authoritative rejections cannot: a node that answered "bad
// credentials" gives the same answer on the next dial.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrAlreadyAuthenticated),
		errors.Is(err, ErrAlreadyConnected),
		errors.Is(err, ErrClientClosed),
		errors.Is(err, ErrClientNotInitialized),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrProtocolVersion):
		return false
	}

	type temporary interface {
		Temporary() bool
	}
	if temp, ok := err.(temporary); ok {
		return temp.Temporary()
	}

	// No signal either way: retry by default.
	return true
}

// waitWithBackoff sleeps for the backoff duration, aborting early if the
// context ends.
func waitWithBackoff(ctx context.Context, backoff time.Duration, attempt int, err error) error {
	Debug("Retry attempt %d failed: %v (waiting %v before retry)", attempt, err, backoff)

	select {
	case <-ctx.Done():
		return fmt.Errorf("bcapi: retry cancelled during backoff after %d attempts: %w", attempt, ctx.Err())
	case <-time.After(backoff):
		return nil
	}
}

// calculateNextBackoff doubles the delay up to the cap.
func calculateNextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
