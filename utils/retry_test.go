package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewNopLogger()}

	calls := 0
	err := r.Do("flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryWrapsLastError(t *testing.T) {
	sentinel := errors.New("still broken")
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Fixed: true}

	err := r.Do("broken", func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("error should wrap the last failure, got %v", err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := r.DoContext(ctx, "cancelled", func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("bad input")
	r := &RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}

	calls := 0
	err := r.Do("validate", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("error: got %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}
