package provider

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig is exponential backoff with jitter.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
}

// DefaultRetryConfig fits the retryable error classes: Timeout wants a
// few seconds of backoff, Network 1-2s, both growing toward MaxDelay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// RetryFunc is one attempt; it receives the zero-based attempt number.
type RetryFunc func(ctx context.Context, attempt int) error

// Retry runs fn until it succeeds, returns a non-retryable error, or
// exhausts MaxAttempts. A RateLimit error's RetryAfter, if present,
// overrides the computed backoff delay for that attempt so the vendor's
// own hint wins.
func Retry(ctx context.Context, cfg RetryConfig, fn RetryFunc) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := calculateDelay(cfg, attempt)
		var pe *Error
		if errors.As(err, &pe) && pe.Type == ErrRateLimit && pe.RetryAfter != nil {
			delay = time.Duration(*pe.RetryAfter) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func calculateDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if time.Duration(delay) > cfg.MaxDelay {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		delay += delay * 0.1 * rand.Float64()
	}
	return time.Duration(delay)
}
