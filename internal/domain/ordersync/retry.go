package ordersync

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the exponential backoff used for ERP calls:
// delay(attempt) = 2^attempt * Base + Jitter().
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	// Jitter returns the random component; defaults to rand(0, 1s)
	Jitter func() time.Duration
	// Sleep waits for d or until ctx is done; defaults to SleepOrDone
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy with maxRetries retries, 1s base
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, Base: time.Second}
}

// Delay returns the backoff before retry number attempt+1
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}
	return base*time.Duration(1<<attempt) + jitter()
}

// Wait sleeps for Delay(attempt)
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepOrDone
	}
	return sleep(ctx, p.Delay(attempt))
}

func defaultJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(time.Second)))
}

// SleepOrDone waits for the duration or returns early on context cancellation.
func SleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
