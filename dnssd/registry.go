package dnssd

import (
	"strings"
	"sync"

	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/state"
)

// Registration is the opaque handle returned by Responder.Register,
// passed back to Responder.Unregister. It carries the state machine, the
// currently-claimed records, and the scheduler slot driving the
// registration's probe/announce/renew lifecycle.
type Registration struct {
	info    *ServiceInfo
	machine *state.Machine
	slot    scheduler.Slot

	// owned and shared mirror ServiceInfo.ownedRecords/sharedRecords for
	// the instance name currently claimed; they are rebuilt whenever a
	// conflict renames the instance.
	owned  []*record.Record
	shared []*record.Record
}

func newRegistration(info *ServiceInfo) *Registration {
	reg := &Registration{info: info}
	reg.owned = reg.info.ownedRecords()
	reg.shared = reg.info.sharedRecords()
	reg.machine = state.New(reg.info.InstanceName(), reg.owned)
	return reg
}

// rename applies a conflict-driven rename reported by reg.machine.Name()
// back onto reg.info.Instance and regenerates owned/shared records under
// the new name. It deliberately leaves reg.machine untouched: Conflict()
// has already reverted its state and renamed it, and replacing it here
// would discard that reverted state (see Responder.HandleConflict).
func (reg *Registration) rename(qualified string) {
	label, _ := splitLeadingLabel(qualified)
	reg.info.Instance = unescapeLabel(label)
	reg.owned = reg.info.ownedRecords()
	reg.shared = reg.info.sharedRecords()
}

// Info returns a snapshot of the ServiceInfo currently claimed by reg,
// reflecting any conflict-driven rename applied since Register.
func (reg *Registration) Info() *ServiceInfo {
	return reg.info.clone()
}

// splitLeadingLabel splits a fully-qualified, escaped name into its first
// label and the remaining (still dotted) suffix.
func splitLeadingLabel(qualified string) (label, rest string) {
	for i := 0; i < len(qualified); i++ {
		if qualified[i] == '\\' {
			i++
			continue
		}
		if qualified[i] == '.' {
			return qualified[:i], qualified[i:]
		}
	}
	return qualified, ""
}

func unescapeLabel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// registry is the responder's table of currently-registered services. It
// serializes access with its own mutex since it is read by dispatch jobs on
// the scheduler goroutine (via Owned/AnswersFor) and written by Register
// and by Unregister's Canceler on the canceler scheduler.
type registry struct {
	mu   sync.Mutex
	regs map[*Registration]struct{}
}

func newRegistry() *registry {
	return &registry{regs: map[*Registration]struct{}{}}
}

func (r *registry) add(reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg] = struct{}{}
}

func (r *registry) remove(reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regs, reg)
}

func (r *registry) snapshot() []*Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Registration, 0, len(r.regs))
	for reg := range r.regs {
		out = append(out, reg)
	}
	return out
}

// AnswersFor implements dispatcher.RecordSource: every owned or shared
// record, across every registration that has survived probing (at or past
// ANNOUNCING_1), that answers q.
func (r *registry) AnswersFor(q record.Question) []*record.Record {
	var out []*record.Record
	for _, reg := range r.snapshot() {
		st := reg.machine.State()
		if st.IsProbing() || st == state.Canceled {
			continue
		}
		for _, rec := range reg.owned {
			if q.AnsweredBy(rec) {
				out = append(out, rec)
			}
		}
		for _, rec := range reg.shared {
			if q.AnsweredBy(rec) {
				out = append(out, rec)
			}
		}
	}
	return out
}

// Owned implements dispatcher.RecordSource: the owned (unique) record
// matching entry, searched across every registration regardless of state
// so that a conflict can be detected even mid-probe (§4.E "Probing").
func (r *registry) Owned(entry record.Entry) *record.Record {
	for _, reg := range r.snapshot() {
		for _, rec := range reg.owned {
			if rec.Entry.Equal(entry) {
				return rec
			}
		}
	}
	return nil
}

// findByOwned returns the registration that currently owns rec, or nil.
func (r *registry) findByOwned(rec *record.Record) *Registration {
	for _, reg := range r.snapshot() {
		for _, owned := range reg.owned {
			if owned == rec {
				return reg
			}
		}
	}
	return nil
}
