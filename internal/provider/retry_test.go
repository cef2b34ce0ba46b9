package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2, Jitter: false}

	err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		attempts++
		if attempts < 3 {
			return NewNetworkError(errors.New("connection reset"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()

	err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		attempts++
		return NewAuthenticationError("digitalocean", "bad token")
	})

	if err == nil {
		t.Fatal("expected authentication error to propagate")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryHonorsRetryAfterOverride(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2, Jitter: false}
	retryAfter := 0 // seconds; zero keeps the test fast while still exercising the override path

	start := time.Now()
	err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		attempts++
		if attempts < 2 {
			return NewRateLimitError(&retryAfter)
		}
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed >= time.Hour {
		t.Fatalf("expected RetryAfter override to bypass the hour-long base delay, elapsed %v", elapsed)
	}
}

func TestRetryExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, Jitter: false}

	err := Retry(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		attempts++
		return NewTimeoutError("wait_ready", "5s")
	})

	if err == nil {
		t.Fatal("expected the last timeout error to propagate once attempts are exhausted")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly MaxAttempts=3 calls, got %d", attempts)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1, Jitter: false}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, func(ctx context.Context, attempt int) error {
			attempts++
			return NewNetworkError(errors.New("down"))
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return promptly after context cancellation")
	}
}
