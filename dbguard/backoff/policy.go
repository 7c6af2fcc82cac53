package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxAttempts is the attempt budget used when Policy.MaxAttempts is unset.
const DefaultMaxAttempts = 3

// DefaultBase makes Exponential yield 2s after the first failure and 4s after the second.
const DefaultBase = time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy is a stateless retry configuration. The zero value retries three
// times with base-one-second exponential delays.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay returns the wait after the given failed attempt (1-based).
	Delay func(attempt int) time.Duration
	// Sleep performs the wait. Defaults to SleepWithContext.
	Sleep SleepFunc
	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewExponentialPolicy returns a Policy with base * 2^attempt delays.
func NewExponentialPolicy(maxAttempts int, base time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay: func(attempt int) time.Duration {
			return Exponential(base, attempt)
		},
	}
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}

	return p.MaxAttempts
}

// DelayFor returns the wait that follows the given failed attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	if p.Delay == nil {
		return Exponential(DefaultBase, attempt)
	}

	return p.Delay(attempt)
}

// Do runs fn until it succeeds, returns a Permanent error, ctx ends, or the
// attempt budget is spent. Attempts are strictly sequential. On exhaustion the
// returned error is an *ExhaustedError wrapping the last failure.
//
// The attempt count is always returned, so callers can report it even on success.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	maxAttempts := p.maxAttempts()

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return attempt, perm.err
		}

		lastErr = err

		if attempt == maxAttempts {
			break
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, fmt.Errorf("%w: %w", ctxErr, lastErr)
		}

		delay := p.DelayFor(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return attempt, fmt.Errorf("%w: %w", sleepErr, lastErr)
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// ExhaustedError reports that every attempt failed. It unwraps to the last failure.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error
// immediately. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError

	return errors.As(err, &perm)
}
