package dispatcher

import (
	"context"
	"time"

	"github.com/jmalloc/rendezvous/internal/clock"
	"github.com/jmalloc/rendezvous/internal/dnsmsg"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/transport"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// responderMinDelay and responderMaxDelay are the random delay a Responder
// job observes before answering, to reduce collisions with other
// responders answering the same query (§4.F "Responder").
const (
	responderMinDelay = 20 * time.Millisecond
	responderMaxDelay = 120 * time.Millisecond
)

// handleQuery implements §4.G "Queries": known-answers are checked for
// conflicts, truncated queries are coalesced with any pending continuation
// for the same peer, and a non-truncated (or fully assembled) query is
// handed to a Responder job.
func (d *Dispatcher) handleQuery(ctx context.Context, in *transport.InboundPacket, msg *dnsmsg.Message) {
	for _, section := range [][]*record.Record{msg.Answer, msg.Ns, msg.Extra} {
		for _, r := range section {
			if owned := d.Source.Owned(r.Entry); owned != nil && r.HandleQuery(owned) {
				d.Source.HandleConflict(owned)
			}
		}
	}

	peer := in.Source.Address.String()

	if msg.Truncated {
		d.pending.extend(peer, msg)
		return
	}

	full := d.pending.takeAndAppend(peer, msg)

	job := &scheduler.Responder{
		Send: func(ctx context.Context) error {
			return d.respond(in, full)
		},
	}

	d.Scheduler.Schedule(ctx, job, clock.RandBetween(responderMinDelay, responderMaxDelay))
}

// respond selects local records answering each question in msg, suppresses
// any satisfied by the query's known-answers, adds the RFC 6763 §12
// additional-section records the answers imply, and packs the result into
// one or more outgoing frames, splitting on BufferFull (§4.C, §4.G).
func (d *Dispatcher) respond(in *transport.InboundPacket, msg *dnsmsg.Message) error {
	known := append(append([]*record.Record{}, msg.Answer...), msg.Ns...)
	known = append(known, msg.Extra...)

	var answers []*record.Record
	for _, q := range msg.Questions {
		for _, r := range d.Source.AnswersFor(q) {
			if !r.SuppressedBy(known) {
				answers = append(answers, r)
			}
		}
	}

	if len(answers) == 0 {
		return nil
	}

	return d.sendAnswers(in, answers, d.additionalFor(answers, known))
}

// additionalFor returns the DNS-SD additional-section records (RFC 6763
// §12) implied by answers: a PTR answering a service-type question pulls in
// its instance's SRV and TXT plus, in turn, the SRV target's address
// records; an SRV answer on its own pulls in just its target's address
// records. Records already present in answers, or suppressed by the
// query's known-answers, are omitted.
func (d *Dispatcher) additionalFor(answers, known []*record.Record) []*record.Record {
	seen := map[string]bool{}
	for _, a := range answers {
		seen[additionalKey(a.Entry)] = true
	}

	var extra []*record.Record
	add := func(recs []*record.Record) {
		for _, r := range recs {
			key := additionalKey(r.Entry)
			if seen[key] || r.SuppressedBy(known) {
				continue
			}
			seen[key] = true
			extra = append(extra, r)
		}
	}

	addressesFor := func(host wire.Name) {
		add(d.Source.AnswersFor(record.Question{Entry: record.Entry{Name: host, Type: record.TypeA, Class: record.ClassIN}}))
		add(d.Source.AnswersFor(record.Question{Entry: record.Entry{Name: host, Type: record.TypeAAAA, Class: record.ClassIN}}))
	}

	for _, a := range answers {
		switch rdata := a.RData.(type) {
		case *record.Pointer:
			srv := d.Source.AnswersFor(record.Question{Entry: record.Entry{Name: rdata.Target, Type: record.TypeSRV, Class: record.ClassIN}})
			add(srv)
			add(d.Source.AnswersFor(record.Question{Entry: record.Entry{Name: rdata.Target, Type: record.TypeTXT, Class: record.ClassIN}}))
			for _, s := range srv {
				if svc, ok := s.RData.(*record.Service); ok {
					addressesFor(svc.Target)
				}
			}
		case *record.Service:
			addressesFor(rdata.Target)
		}
	}

	return extra
}

func additionalKey(e record.Entry) string {
	return e.Key() + "|" + e.Type.String()
}

func (d *Dispatcher) sendAnswers(in *transport.InboundPacket, answers, additional []*record.Record) error {
	enc := dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
	enc.SetHeader(dnsmsg.Header{Response: true, Authoritative: true})

	flush := func() error {
		if enc.Empty() {
			return nil
		}
		return transport.SendMulticast(in.Transport, in.Source.InterfaceIndex, enc.Bytes())
	}

	for _, r := range answers {
		if err := enc.AppendAnswer(r); err != nil {
			enc.MarkTruncated()
			if err := flush(); err != nil {
				return err
			}
			enc = dnsmsg.NewEncoder(wire.DefaultBufferSize, true)
			enc.SetHeader(dnsmsg.Header{Response: true, Authoritative: true})
			if err := enc.AppendAnswer(r); err != nil {
				return err
			}
		}
	}

	// Additional records are stuffed in on a best-effort basis: unlike
	// answers, dropping one doesn't affect correctness (a resolver that
	// needs it can always ask directly), so one that would overflow the
	// final frame is simply omitted rather than forcing another split.
	for _, r := range additional {
		if err := enc.AppendAdditional(r); err != nil {
			break
		}
	}

	return flush()
}
