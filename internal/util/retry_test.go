package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsWithinBudget(t *testing.T) {
	calls := 0
	got, err := Retry(3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	want := errors.New("still broken")
	calls := 0
	_, err := Retry(3, func() (int, error) {
		calls++
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want last error", err)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestRetryDefaultsToSingleTry(t *testing.T) {
	calls := 0
	RetryErr(0, func() error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestRetryWithContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithContext(ctx, 5, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1, canceled retries must not continue", calls)
	}
}

func TestRetryBackoffStopsOnSuccess(t *testing.T) {
	params := BackoffParams{MaxTries: 5, Initial: time.Millisecond, Max: time.Millisecond}
	calls := 0
	err := RetryBackoff(context.Background(), params, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("got %d calls, want 2", calls)
	}
}

func TestRetryBackoffReturnsLastError(t *testing.T) {
	params := BackoffParams{MaxTries: 3, Initial: time.Millisecond, Max: time.Millisecond}
	want := errors.New("attempt 3")
	calls := 0
	errs := []error{errors.New("attempt 1"), errors.New("attempt 2"), want}
	err := RetryBackoff(context.Background(), params, func(ctx context.Context) error {
		calls++
		return errs[calls-1]
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want the final attempt's error", err)
	}
	if calls != 3 {
		t.Fatalf("got %d calls, want 3", calls)
	}
}

func TestRetryBackoffHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	params := BackoffParams{MaxTries: 10, Initial: time.Hour, Max: time.Hour}
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- RetryBackoff(ctx, params, func(ctx context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	// cancel while the retry loop sleeps on its first backoff
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry loop failed to wake on cancellation")
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestRetryBackoffDelayCapped(t *testing.T) {
	params := BackoffParams{MaxTries: 6, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	start := time.Now()
	err := RetryBackoff(context.Background(), params, func(ctx context.Context) error {
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected failure after budget")
	}
	// 5 sleeps jittered within [0, 2ms] each: well under a second even on a
	// slow runner.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("backoff slept too long: %v", elapsed)
	}
}
