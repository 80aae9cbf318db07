package ai

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds the translate retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, the first one included.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. Each further retry
	// doubles it, and a uniform jitter in [0, BaseDelay) is added.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns three attempts with a one second base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Backoff returns the wait after the failed attempt with the given 0-based
// index: base·2^attempt + jitter, where jitter is in [0, base). Waits are
// strictly increasing in attempt for any jitter.
func (r RetryConfig) Backoff(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	d := r.BaseDelay << attempt
	if r.BaseDelay > 0 && jitter != nil {
		j := jitter(r.BaseDelay)
		if j < 0 {
			j = 0
		}
		if j >= r.BaseDelay {
			j = r.BaseDelay - 1
		}
		d += j
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
