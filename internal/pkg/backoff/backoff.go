// Package backoff provides bounded exponential backoff with full jitter
// for retrying transient store failures.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy computes per-attempt delays. The zero value is not usable; use
// Default or fill in all fields.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts is the number of tries including the first one.
	MaxAttempts int
}

// Default returns the retry policy used when configuration is silent:
// three attempts, 250ms base, 5s cap.
func Default() Policy {
	return Policy{BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second, MaxAttempts: 3}
}

// Delay returns the backoff duration before retry attempt n (n >= 1).
// Uses exponential backoff with full jitter:
// random(0, min(maxDelay, baseDelay * 2^(n-1))), floored at 50ms to
// avoid busy-looping.
func (p Policy) Delay(attempt int) time.Duration {
	expDelay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if expDelay > float64(p.MaxDelay) {
		expDelay = float64(p.MaxDelay)
	}
	jittered := time.Duration(rand.Float64() * expDelay)
	if jittered < 50*time.Millisecond {
		jittered = 50 * time.Millisecond
	}
	return jittered
}

// Sleep waits out the delay for the given attempt, returning early with
// the context's error if it is cancelled first.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
