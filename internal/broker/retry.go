package broker

import (
	"context"
	"math/rand"
	"time"
)

// BackoffPolicy implements the exponential-backoff-with-jitter retry shape
// required by spec §4.3/§7: up to 5 attempts, doubling delay, full jitter.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff matches the spec's "max 5 attempts, exponential backoff,
// jitter" for transient broker errors.
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 5,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// Retry runs fn up to MaxAttempts times, sleeping with full jitter between
// attempts, and stops immediately if ctx is cancelled or fn reports the
// error as non-retryable via isTransient returning false.
func (b BackoffPolicy) Retry(ctx context.Context, isTransient func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if isTransient != nil && !isTransient(lastErr) {
			return lastErr
		}
		if attempt == b.MaxAttempts-1 {
			break
		}
		delay := b.delayFor(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (b BackoffPolicy) delayFor(attempt int) time.Duration {
	d := b.BaseDelay << attempt
	if d > b.MaxDelay || d <= 0 {
		d = b.MaxDelay
	}
	// Full jitter: uniform random in [0, d].
	return time.Duration(rand.Int63n(int64(d) + 1))
}
