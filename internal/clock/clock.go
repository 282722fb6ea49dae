// Package clock collects the small timing helpers shared by the state
// machine, the scheduler and the dispatcher: jittered delays and a
// cancellable sleep.
package clock

import (
	"context"
	"math/rand"
	"time"
)

// RandDuration returns a random duration in [0, d), or 0 if d <= 0.
func RandDuration(d time.Duration) time.Duration {
	return RandBetween(0, d)
}

// RandBetween returns a random duration in [min, max), or min if max <= min.
func RandBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Sleep blocks for d, or until ctx is canceled, whichever comes first. It
// returns ctx.Err() in the latter case and nil in the former.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
