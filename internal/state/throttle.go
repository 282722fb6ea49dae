package state

import "time"

// throttleWindow is the length of the window over which probes are counted.
const throttleWindow = 1000 * time.Millisecond

// throttleLimit is the number of probes allowed within throttleWindow
// before the next one is delayed.
const throttleLimit = 10

// throttleDelay is the delay imposed on a probe once the limit has been
// reached within the current window.
const throttleDelay = 5000 * time.Millisecond

// Throttle counts probes within a fixed window, which restarts at the first
// probe after throttleWindow has elapsed since the window began, and
// reports the delay the next probe must observe, per §4.E "Throttling".
//
// Throttle is not safe for concurrent use; callers serialize access to it
// the same way they serialize access to the rest of a Machine.
type Throttle struct {
	windowStart time.Time
	count       int
}

// Delay registers a probe occurring at now and returns the delay it must
// wait before being sent.
func (t *Throttle) Delay(now time.Time) time.Duration {
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= throttleWindow {
		t.windowStart = now
		t.count = 0
	}

	t.count++

	if t.count >= throttleLimit {
		return throttleDelay
	}
	return 0
}
