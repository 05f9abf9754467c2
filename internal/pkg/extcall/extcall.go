// Package extcall runs calls against external services with a bounded number of
// immediate retries and reports the outcome as a typed result instead of an error.
package extcall

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultAttempts = 2

// Policy bounds a single external call.
type Policy struct {
	Name     string
	Attempts int
	// Timeout applies to every attempt separately; exceeding it fails that attempt.
	Timeout time.Duration
}

// Result is either a success carrying Value or a degraded outcome carrying the last error.
type Result[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) Degraded() bool {
	return r.Err != nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Degrade builds a degraded result without calling anything, for calls that are
// known to be unusable up front (missing credentials, empty input).
func Degrade[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Err: err}
}

// Do runs fn until it succeeds, returns a permanent error, or the attempts are used up.
// Cancellation of ctx does not abort a started call: each attempt runs on a context
// that only carries ctx's values and its own timeout.
func Do[T any](ctx context.Context, p Policy, fallback T, fn func(ctx context.Context) (T, error)) Result[T] {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	base := context.WithoutCancel(ctx)
	logger := logutil.GetLogger(ctx).With(zap.String("call", p.Name))

	res := Result[T]{Value: fallback}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	}))
	err := retry.Do(base, backoff, func(_ context.Context) error {
		res.Attempts++
		attemptCtx := base
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(base, p.Timeout)
			defer cancel()
		}
		value, err := fn(attemptCtx)
		if err == nil {
			res.Value = value
			return nil
		}
		logger.Warn("external call attempt failed", zap.Int("attempt", res.Attempts), zap.Error(err))
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		res.Value = fallback
		res.Err = err
	}
	return res
}
