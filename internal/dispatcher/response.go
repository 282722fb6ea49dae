package dispatcher

import (
	"time"

	"github.com/jmalloc/rendezvous/internal/dnsmsg"
	"github.com/jmalloc/rendezvous/internal/record"
)

// handleResponse implements §4.G "Responses": every record is reconciled
// against the cache, checked for conflicts against locally-owned records,
// and — if the reconciliation produced new information — delivered to any
// listener whose question it answers.
func (d *Dispatcher) handleResponse(msg *dnsmsg.Message) {
	for _, section := range [][]*record.Record{msg.Answer, msg.Ns, msg.Extra} {
		for _, r := range section {
			d.reconcileResponse(r)
		}
	}
}

func (d *Dispatcher) reconcileResponse(r *record.Record) {
	informative := false

	// Only a cached record with identical rdata is refreshed; a record for
	// the same name and type with different rdata (another instance's PTR,
	// say) is cached alongside it.
	var existing *record.Record
	for _, cached := range d.Cache.GetByName(r.Key()) {
		if cached.Entry.Equal(r.Entry) && cached.SameRData(r) {
			existing = cached
			break
		}
	}

	if existing != nil {
		if r.IsExpired(time.Now()) {
			d.Cache.Remove(existing)
			informative = true
		} else {
			d.Cache.Refresh(existing, r)
		}
	} else if !r.IsExpired(time.Now()) {
		d.Cache.Put(r)
		informative = true
	}

	if owned := d.Source.Owned(r.Entry); owned != nil && r.HandleResponse(owned) {
		d.Source.HandleConflict(owned)
	}

	if informative {
		d.notify(r, r.IsExpired(time.Now()))
	}
}

func (d *Dispatcher) notify(r *record.Record, removed bool) {
	for _, l := range d.snapshotListeners() {
		q := l.Question()
		if q.AnsweredBy(r) {
			l.Notify(r, removed)
		}
	}
}
