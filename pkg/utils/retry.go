package utils

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with backoff, shared by downloads
// and uploads. A zero BackoffFactor means fixed delay.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64

	// Sleep is swapped out by tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetry mirrors the archive's tolerance: three attempts with a
// fixed two second pause between them.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffFactor: 1}
}

// Do runs op until it succeeds or the attempt budget is exhausted.
// It returns the number of attempts made and the last error. Between
// attempts it sleeps BaseDelay * BackoffFactor^(attempt-1); the final
// failed attempt does not sleep.
func (p RetryPolicy) Do(ctx context.Context, op func() error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return attempt - 1, ctx.Err()
		}
		if err = op(); err == nil {
			return attempt, nil
		}
		if attempt < attempts {
			sleep(p.delay(attempt))
		}
	}
	return attempts, err
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
	}
	return d
}
