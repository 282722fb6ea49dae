// Package state implements the per-host and per-service responder state
// machine (probing, announcing, steady state, cancellation), its conflict
// handling and probe throttling.
package state

// State is one step of the responder lifecycle for a single host or
// service entry.
type State int

const (
	Probing1 State = iota
	Probing2
	Probing3
	Announcing1
	Announcing2
	Announced
	Canceled
)

func (s State) String() string {
	switch s {
	case Probing1:
		return "PROBING_1"
	case Probing2:
		return "PROBING_2"
	case Probing3:
		return "PROBING_3"
	case Announcing1:
		return "ANNOUNCING_1"
	case Announcing2:
		return "ANNOUNCING_2"
	case Announced:
		return "ANNOUNCED"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// IsProbing reports whether s is one of the three probing states.
func (s State) IsProbing() bool {
	return s == Probing1 || s == Probing2 || s == Probing3
}

// IsAnnouncing reports whether s is one of the two announcing states.
func (s State) IsAnnouncing() bool {
	return s == Announcing1 || s == Announcing2
}

// Next returns the state that follows s in the normal, conflict-free
// lifecycle. Calling Next on Announced or Canceled is a programmer error:
// Announced only advances via an explicit Cancel, and nothing follows
// Canceled.
func (s State) Next() State {
	switch s {
	case Probing1:
		return Probing2
	case Probing2:
		return Probing3
	case Probing3:
		return Announcing1
	case Announcing1:
		return Announcing2
	case Announcing2:
		return Announced
	default:
		panic("state: Next called on a terminal or steady state")
	}
}

// Revert returns the state one step before s, used when a name conflict is
// detected against a record already past PROBING_1 (§4.E "the state is
// reverted one step and a new Prober is scheduled").
func (s State) Revert() State {
	switch s {
	case Probing2:
		return Probing1
	case Probing3:
		return Probing2
	case Announcing1:
		return Probing3
	case Announcing2:
		return Announcing1
	case Announced:
		return Announcing2
	default:
		return Probing1
	}
}
