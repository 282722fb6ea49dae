package dnssd

import (
	"context"
	"time"

	"github.com/jmalloc/rendezvous/internal/clock"
	"github.com/jmalloc/rendezvous/internal/dnsmsg"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/state"
	"github.com/jmalloc/rendezvous/internal/transport"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// installLifecycle installs a fresh Prober→Announcer chain for reg,
// superseding whatever chain was previously installed on its Slot (§4.F
// "a per-entity currentTask slot"). It is used both for a new registration
// and to resume after a conflict-driven rename: tick's own state guard
// (below) makes an over-long chain harmless when only part of it is
// actually needed.
func (r *Responder) installLifecycle(reg *Registration) {
	announcer := scheduler.NewAnnouncer(func(ctx context.Context) error {
		return r.tick(ctx, reg)
	}, nil)
	prober := scheduler.NewProber(func(ctx context.Context) error {
		return r.tick(ctx, reg)
	}, announcer)

	reg.slot.Install(r.sched, prober, clock.RandDuration(250*time.Millisecond))
}

// tick performs one probe-or-announce send for reg and advances its state
// machine, installing the Renewer once ANNOUNCED is reached. It is a no-op
// once the machine has reached ANNOUNCED or CANCELED, which makes it safe
// to drive from a chain sized for the worst case (a full 3-probe/
// 2-announce cycle) even when a conflict only reverted the machine a
// single step (§4.E "the state is reverted one step").
func (r *Responder) tick(ctx context.Context, reg *Registration) error {
	st := reg.machine.State()
	if st == state.Announced || st == state.Canceled {
		return nil
	}

	var err error
	if st.IsProbing() {
		if d := reg.machine.ThrottleCounter().Delay(time.Now()); d > 0 {
			if serr := clock.Sleep(ctx, d); serr != nil {
				return serr
			}
		}
		err = r.sendProbe(reg)
	} else {
		err = r.sendAnnounce(reg)
	}
	if err != nil {
		return err
	}

	if reg.machine.Advance() == state.Announced {
		r.installRenewer(reg)
	}
	return nil
}

// installRenewer schedules reg's Renewer to first fire at 80% of its TTL,
// rather than chaining it as the Announcer's immediate (zero-delay)
// successor — see DESIGN.md for why this is done here instead of inside
// the scheduler's Announcer→Renewer handoff.
func (r *Responder) installRenewer(reg *Registration) {
	renewer := scheduler.NewRenewer(func(ctx context.Context) error {
		return r.sendAnnounce(reg)
	}, reg.info.ttl())

	reg.slot.Install(r.sched, renewer, renewer.FirstDelay())
}

// sendProbe emits a probe query: one question per distinct owned entry,
// and the full tentative owned rrset in the authority section, so a peer
// that already holds one of these records can dispute it (§4.E "Probing").
func (r *Responder) sendProbe(reg *Registration) error {
	enc := dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
	enc.SetHeader(dnsmsg.Header{})

	var asked []record.Entry
	for _, rec := range reg.owned {
		q := record.Entry{Name: rec.Name, Type: rec.Type, Class: rec.Class}
		if entryListContains(asked, q) {
			continue
		}
		asked = append(asked, q)
		if err := enc.AppendQuestion(record.Question{Entry: q}); err != nil {
			return err
		}
	}

	for _, rec := range reg.owned {
		if err := enc.AppendAuthority(rec); err != nil {
			return err
		}
	}

	return r.sendMulticastAll(enc.Bytes())
}

// sendAnnounce emits an unsolicited response carrying every owned and
// shared record reg currently claims (§4.E "Announcing").
func (r *Responder) sendAnnounce(reg *Registration) error {
	all := append(append([]*record.Record{}, reg.owned...), reg.shared...)
	return r.sendRecords(all)
}

// sendGoodbye emits a response carrying reg's records with TTL forced to
// zero, signalling immediate removal (§4.E "Canceled", glossary "Goodbye").
func (r *Responder) sendGoodbye(reg *Registration) error {
	all := append(append([]*record.Record{}, reg.owned...), reg.shared...)

	goodbye := make([]*record.Record, len(all))
	for i, rec := range all {
		g := *rec
		g.TTLSeconds = 0
		goodbye[i] = &g
	}

	return r.sendRecords(goodbye)
}

// sendRecords packs records into one or more authoritative response
// frames, splitting into a new frame on wire.ErrBufferFull exactly as
// dispatcher.sendAnswers does for query responses (§4.C "BufferFull").
func (r *Responder) sendRecords(records []*record.Record) error {
	enc := dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
	enc.SetHeader(dnsmsg.Header{Response: true, Authoritative: true})

	flush := func() error {
		if enc.Empty() {
			return nil
		}
		return r.sendMulticastAll(enc.Bytes())
	}

	for _, rec := range records {
		if err := enc.AppendAnswer(rec); err != nil {
			enc.MarkTruncated()
			if err := flush(); err != nil {
				return err
			}
			enc = dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
			enc.SetHeader(dnsmsg.Header{Response: true, Authoritative: true})
			if err := enc.AppendAnswer(rec); err != nil {
				return err
			}
		}
	}

	return flush()
}

// sendBrowseQuery emits a single PTR question for name, used by List and
// the service-type/service browsing listeners.
func (r *Responder) sendBrowseQuery(name wire.Name) error {
	enc := dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
	enc.SetHeader(dnsmsg.Header{})
	if err := enc.AppendQuestion(record.Question{
		Entry: record.Entry{Name: name, Type: record.TypePTR, Class: record.ClassIN},
	}); err != nil {
		return err
	}
	return r.sendMulticastAll(enc.Bytes())
}

// sendResolveQuery emits SRV and TXT questions for name, used by
// GetServiceInfo's ServiceInfoResolver-style polling (§4.F).
func (r *Responder) sendResolveQuery(name wire.Name) error {
	enc := dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
	enc.SetHeader(dnsmsg.Header{})
	for _, t := range []record.Type{record.TypeSRV, record.TypeTXT} {
		if err := enc.AppendQuestion(record.Question{
			Entry: record.Entry{Name: name, Type: t, Class: record.ClassIN},
		}); err != nil {
			return err
		}
	}
	return r.sendMulticastAll(enc.Bytes())
}

// sendMulticastAll sends frame via every transport on every interface in
// r.ifaces. It is deliberately best-effort: a write failure on one
// interface is logged (by the transport itself) and does not prevent
// delivery on the others, nor does it abort the caller's announce/probe
// sequence.
func (r *Responder) sendMulticastAll(frame []byte) error {
	for _, t := range r.transports {
		for _, iface := range r.ifaces {
			_ = transport.SendMulticast(t, iface.Index, frame)
		}
	}
	return nil
}

// entryListContains reports whether entries already contains an entry
// equal to e.
func entryListContains(entries []record.Entry, e record.Entry) bool {
	for _, existing := range entries {
		if existing.Equal(e) {
			return true
		}
	}
	return false
}
