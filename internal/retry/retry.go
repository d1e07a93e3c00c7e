// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded exponential backoff shared by every remote boundary.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the randomization factor applied to each delay, in [0, 1].
	Jitter float64
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

type delayHint struct {
	err   error
	delay time.Duration
}

func (d *delayHint) Error() string { return d.err.Error() }
func (d *delayHint) Unwrap() error { return d.err }

// After wraps a retryable error with the server's own estimate of when to try again.
// The hint lengthens the next wait but never beyond the policy's MaxDelay.
func After(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &delayHint{err: err, delay: delay}
}

// Notify is called before each wait with the failed attempt number and the chosen delay.
type Notify func(err error, attempt int, wait time.Duration)

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a permanent error, or runs out of attempts.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	b := p.newBackOff(ctx)

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		var hint *delayHint
		if errors.As(err, &hint) && hint.delay > wait {
			wait = min(hint.delay, p.MaxDelay)
		}

		if notify != nil {
			notify(err, attempt, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
