package fetcher

import (
	"context"
	"time"
)

// Backoff bounds the attempts of one fetch and spaces them linearly:
// the wait after attempt n is n * BaseDelay.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultBackoff is three attempts, two seconds apart per attempt.
func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Delay returns the wait after the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * b.BaseDelay
}

// Attempts returns MaxAttempts, never less than one.
func (b Backoff) Attempts() int {
	if b.MaxAttempts < 1 {
		return 1
	}
	return b.MaxAttempts
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-time Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
