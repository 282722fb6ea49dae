package state

import (
	"context"
	"sync"

	"github.com/jmalloc/rendezvous/internal/record"
)

// Machine tracks the lifecycle of a single owned host or service entry: its
// current State, its claimed name (subject to renaming on conflict), and
// the records it is defending. A Machine is shared between the goroutines
// that drive advancement and report conflicts, cancel it, and wait on it;
// §5 requires them to serialize through a single lock, which here is
// Machine's own mutex.
type Machine struct {
	mu       sync.Mutex
	state    State
	name     string
	throttle Throttle
	records  []*record.Record
	reached  chan struct{}
}

// New returns a Machine starting in PROBING_1 for the given initial name
// and the records it will claim under that name.
func New(name string, records []*record.Record) *Machine {
	return &Machine{
		state:   Probing1,
		name:    name,
		records: records,
		reached: make(chan struct{}),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Name returns the currently-claimed name, which may have been
// renamed since New if a conflict occurred during probing.
func (m *Machine) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Records returns a snapshot of the records this machine owns.
func (m *Machine) Records() []*record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*record.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Advance moves the machine to its next state in the normal lifecycle,
// per the monotonic-advance-only invariant (§8 invariant 4). It panics if
// called on Announced or Canceled, mirroring State.Next.
func (m *Machine) Advance() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = m.state.Next()
	if m.state == Announced {
		m.signalReached()
	}
	return m.state
}

// Conflict handles an incoming record with the unique bit set that matches
// this machine's name but carries different rdata: the state reverts one
// step and the name is incremented so the next Prober claims a fresh name
// (§4.E "Conflict detection").
//
// Conflict is a no-op once the machine has reached Canceled.
func (m *Machine) Conflict() (newState State, renamed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Canceled {
		return Canceled, false
	}

	wasPastProbing1 := m.state != Probing1
	m.state = m.state.Revert()

	if wasPastProbing1 || m.state == Probing1 {
		m.name = RenameQualified(m.name)
		return m.state, true
	}
	return m.state, false
}

// Cancel moves the machine directly to Canceled, as happens when a
// goodbye has been sent. It is idempotent: calling Cancel on an
// already-canceled machine has no effect, mirroring §5 "close() is
// idempotent".
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Canceled {
		return
	}
	m.state = Canceled
	m.signalReached()
}

// signalReached closes the "reached" channel exactly once; callers must
// hold m.mu.
func (m *Machine) signalReached() {
	select {
	case <-m.reached:
	default:
		close(m.reached)
	}
}

// ThrottleCounter exposes the machine's Throttle so the scheduler can
// query the delay a probe at a given time must observe (§4.E
// "Throttling"). The returned Throttle is not guarded by m.mu; the caller
// serializes its use.
func (m *Machine) ThrottleCounter() *Throttle {
	return &m.throttle
}

// WaitUntilAnnouncedOrCanceled blocks until the machine reaches ANNOUNCED
// or CANCELED, or until ctx is done, implementing the register/unregister
// suspension point described in §5.
func (m *Machine) WaitUntilAnnouncedOrCanceled(ctx context.Context) (State, error) {
	select {
	case <-m.reached:
		return m.State(), nil
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}
