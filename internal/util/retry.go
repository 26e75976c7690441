package util

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Retry calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func Retry[T any](maxTries int, fn func() (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// RetryErr calls fn up to maxTries times until it returns nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func RetryErr(maxTries int, fn func() error) error {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	for i := 0; i < maxTries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// RetryWithContext calls fn up to maxTries times until it returns a result and
// nil error, or until ctx is done. If maxTries <= 0, it defaults to 1.
// Returns ctx.Err() if the context is canceled, otherwise the last error.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// BackoffParams configures RetryBackoff. Zero values fall back to the
// defaults used at the store/adapter boundary.
type BackoffParams struct {
	MaxTries int
	Initial  time.Duration
	Max      time.Duration
}

const (
	defaultBackoffTries   = 3
	defaultBackoffInitial = 100 * time.Millisecond
	defaultBackoffMax     = 5 * time.Second
)

// RetryBackoff calls fn until it returns nil error, sleeping between
// attempts with exponential backoff and jitter. A timeout inside fn counts
// as a transient failure as long as the outer ctx is still alive; outer
// cancellation aborts immediately with ctx.Err().
func RetryBackoff(ctx context.Context, params BackoffParams, fn func(context.Context) error) error {
	maxTries := params.MaxTries
	if maxTries <= 0 {
		maxTries = defaultBackoffTries
	}
	initial := params.Initial
	if initial <= 0 {
		initial = defaultBackoffInitial
	}
	maxDelay := params.Max
	if maxDelay <= 0 {
		maxDelay = defaultBackoffMax
	}

	var lastErr error
	delay := initial
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}

		// full jitter on the current exponential step
		sleep := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return lastErr
}
