package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	attempts := 0
	err := policy.Retry(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryStopsOnNonTransientError(t *testing.T) {
	policy := DefaultBackoff
	attempts := 0
	wantErr := errors.New("rejected")
	err := policy.Retry(context.Background(), func(error) bool { return false }, func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on non-transient error)", attempts)
	}
}

func TestRetryExhaustsMaxAttempts(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	attempts := 0
	err := policy.Retry(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := DefaultBackoff
	attempts := 0
	err := policy.Retry(ctx, func(error) bool { return true }, func(ctx context.Context) error {
		attempts++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d, want 0 (context already cancelled)", attempts)
	}
}
