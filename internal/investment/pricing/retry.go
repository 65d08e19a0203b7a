package pricing

import (
	"context"
	"time"
)

// RetryPolicy bounds and paces external price lookups.
type RetryPolicy struct {
	// MaxRetries is the default number of retries for a single lookup.
	MaxRetries int
	// BatchRetries is used for every symbol of a batch resolution.
	BatchRetries int
	// Backoff returns the wait before the given retry (attempt >= 1).
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// LinearBackoff waits attempt × step before each retry.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   1,
		BatchRetries: 0,
		Backoff:      LinearBackoff(2 * time.Second),
		Sleep:        SleepContext,
	}
}

// NoWait keeps the retry bounds of p but never sleeps.
func (p RetryPolicy) NoWait() RetryPolicy {
	p.Backoff = func(int) time.Duration { return 0 }
	p.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BatchRetries < 0 {
		p.BatchRetries = 0
	}
	if p.Backoff == nil {
		p.Backoff = LinearBackoff(2 * time.Second)
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}
