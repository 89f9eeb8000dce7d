package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"
)

// ErrAborted is returned when the operator interrupted the run. It is a clean
// early exit, not a failure of the remote call.
var ErrAborted = errors.New("aborted by operator")

// ErrInterrupted can be returned by an operation to signal an operator interrupt.
var ErrInterrupted = errors.New("interrupted")

// Operation is a single remote call.
type Operation[T any] func(ctx context.Context) (T, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor is a reusable, stateless retry policy.
type Executor struct {
	MaxAttempts int
	Backoff     BackoffFunc
	// Sleep defaults to a context-aware timer; tests swap it out.
	Sleep SleepFunc
}

// New returns an Executor with the given attempts and backoff.
func New(maxAttempts int, backoff BackoffFunc) *Executor {
	return &Executor{MaxAttempts: maxAttempts, Backoff: backoff}
}

// Run executes op under the executor's policy. An error-only operation.
func (e *Executor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do calls op up to e.MaxAttempts times. On failure it sleeps
// e.Backoff(attempt) before the next attempt, except after the final one,
// where the last error is returned unchanged. An error marked with Fatal
// ends the loop at once.
func Do[T any](ctx context.Context, e *Executor, op Operation[T]) (T, error) {
	var zero T

	maxAttempts := 1
	backoff := NoBackoff
	sleep := Sleep
	if e != nil {
		if e.MaxAttempts > 1 {
			maxAttempts = e.MaxAttempts
		}
		if e.Backoff != nil {
			backoff = e.Backoff
		}
		if e.Sleep != nil {
			sleep = e.Sleep
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if IsBenign(ctx.Err()) {
			return zero, Abort(ctx.Err())
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if IsBenign(err) || IsBenign(ctx.Err()) {
			return zero, Abort(err)
		}

		lastErr = err
		if IsFatal(err) || attempt == maxAttempts {
			break
		}

		if sleepErr := sleep(ctx, backoff(attempt)); sleepErr != nil {
			if IsBenign(sleepErr) {
				return zero, Abort(sleepErr)
			}
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// IsBenign reports whether err is an operator interrupt or broken pipe.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, ErrAborted) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EINTR)
}

// IsAborted reports whether err is the executor's abort signal.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// Abort wraps cause as ErrAborted. Components use it to report an operator
// interrupt that surfaced outside the executor, e.g. from a prompt.
func Abort(cause error) error {
	if errors.Is(cause, ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// FatalError marks an error that must not be retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks err as non-retryable. Do returns it after the current attempt.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
