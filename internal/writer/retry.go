package writer

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes the retry schedule for a failed flush.
//
// Delays grow geometrically from InitialDelay by Multiplier, capped at
// MaxDelay, with ±Jitter fraction of randomization so concurrent
// processors don't hammer a recovering store in lockstep.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// Delay returns the backoff delay before the given attempt (1-based).
// Attempt 1 has no delay; attempt 2 waits InitialDelay, and so on.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	d := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); d > max {
		d = max
	}

	if p.Jitter > 0 {
		// Spread in [d*(1-jitter), d*(1+jitter)].
		d *= 1 + p.Jitter*(2*rand.Float64()-1) //nolint:gosec // Jitter, not cryptography
	}

	return time.Duration(d)
}

// Do runs fn up to MaxAttempts times, sleeping per the schedule between
// attempts. It returns nil on the first success, the last error once
// the budget is exhausted, or the context error if cancelled while
// waiting.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
