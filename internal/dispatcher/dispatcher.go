// Package dispatcher implements the single decode-and-route loop described
// in §4.G: one blocking read per transport, known-answer suppression,
// conflict detection against locally-owned records, and truncation-chain
// coalescing of queries that arrive split across several datagrams.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/sync/errgroup"

	"github.com/jmalloc/rendezvous/internal/cache"
	"github.com/jmalloc/rendezvous/internal/dnsmsg"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/transport"
)

// RecordSource is the seam between the dispatcher and whatever owns the
// locally-published records: the dnssd registry of host and service state
// machines. Implementations must tolerate concurrent calls.
type RecordSource interface {
	// AnswersFor returns every locally-owned record that answers q.
	AnswersFor(q record.Question) []*record.Record

	// Owned returns the locally-owned record identified by entry, or nil
	// if entry is not something this responder claims.
	Owned(entry record.Entry) *record.Record

	// HandleConflict is invoked when an incoming unique record disputes a
	// locally-owned record of the same name; the implementation reverts
	// the corresponding state machine and reschedules a Prober.
	HandleConflict(owned *record.Record)
}

// Listener is notified of informative records observed in responses: one
// whose arrival, change, or removal is new information relative to what
// the cache already held (§4.G "Responses").
type Listener interface {
	// Question is the question this listener is watching for.
	Question() record.Question

	// Notify is called with a record that answers Question and was new,
	// changed, or removed.
	Notify(r *record.Record, removed bool)
}

// Dispatcher owns the receive loop for every transport and the pending
// truncation-chain continuations keyed by peer.
type Dispatcher struct {
	Cache     *cache.Cache
	Scheduler *scheduler.Scheduler
	Source    RecordSource
	Logger    logging.Logger

	transports []transport.Transport

	pending *pendingQueries

	mu        sync.RWMutex
	listeners []Listener
}

// New returns a Dispatcher reading from the given transports.
func New(transports []transport.Transport, c *cache.Cache, s *scheduler.Scheduler, source RecordSource) *Dispatcher {
	return &Dispatcher{
		Cache:      c,
		Scheduler:  s,
		Source:     source,
		transports: transports,
		pending:    newPendingQueries(),
	}
}

// AddListener registers l to receive informative records for its question.
func (d *Dispatcher) AddListener(l Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

func (d *Dispatcher) snapshotListeners() []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

// Run reads every transport until ctx is canceled or a transport fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, t := range d.transports {
		t := t
		g.Go(func() error {
			return d.receive(ctx, t)
		})
	}

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (d *Dispatcher) receive(ctx context.Context, t transport.Transport) error {
	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	for {
		in, err := t.Read()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return err
		}

		msg, err := dnsmsg.Decode(in.Data)
		in.Close()
		if err != nil {
			logging.Log(d.Logger, "dispatcher: dropping malformed datagram from %s: %s", in.Source.Address, err)
			continue
		}

		job := &dispatchJob{d: d, msg: msg, in: in}
		if err := d.Scheduler.RunNow(ctx, job); err != nil {
			return err
		}
	}
}

// dispatchJob adapts a decoded message into a scheduler.Job so that all
// processing — cache updates, conflict detection, responder dispatch —
// executes serialized on the scheduler goroutine, matching §5's "receiver
// thread and timer thread" model: the receiver only decodes and hands off.
type dispatchJob struct {
	d   *Dispatcher
	msg *dnsmsg.Message
	in  *transport.InboundPacket
}

func (j *dispatchJob) Run(ctx context.Context) error {
	if j.msg.Response {
		j.d.handleResponse(j.msg)
	} else {
		j.d.handleQuery(ctx, j.in, j.msg)
	}
	return nil
}

func (j *dispatchJob) Next() (scheduler.Job, time.Duration) {
	return nil, 0
}
