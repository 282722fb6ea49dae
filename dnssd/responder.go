package dnssd

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"golang.org/x/sync/errgroup"

	"github.com/jmalloc/rendezvous/internal/cache"
	"github.com/jmalloc/rendezvous/internal/dispatcher"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/transport"
)

// Responder is the public mDNS/DNS-SD facade of §6: it owns the
// transports, cache, scheduler and dispatcher, and exposes Register,
// Unregister, the browsing methods, and Close.
type Responder struct {
	logger      logging.Logger
	ifaces      []net.Interface
	disableIPv4 bool
	disableIPv6 bool

	cache *cache.Cache

	// sched drives every per-registration probe/announce/renew chain and
	// every received packet's processing (the dispatcher hands each
	// decoded packet to it via Scheduler.RunNow).
	sched *scheduler.Scheduler

	// cancelerSched is a second, independent Scheduler dedicated to
	// Canceler chains, so that Unregister/Close can wait on a goodbye
	// sequence without deadlocking against the same loop that would have
	// to process that wait (§5 "close()-vs-Canceler deadlock").
	cancelerSched *scheduler.Scheduler

	disp       *dispatcher.Dispatcher
	transports []transport.Transport
	reg        *registry

	mu        sync.Mutex
	runCancel context.CancelFunc
	closeOnce sync.Once
}

// New constructs a Responder. It does not join any multicast group or send
// any traffic until Run is called.
func New(opts ...Option) (*Responder, error) {
	r := &Responder{
		cache:         cache.New(),
		sched:         scheduler.New(),
		cancelerSched: scheduler.New(),
		reg:           newRegistry(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.ifaces == nil {
		ifaces, err := multicastInterfaces()
		if err != nil {
			return nil, err
		}
		r.ifaces = ifaces
	}

	r.cache.Logger = r.logger
	r.sched.Logger = r.logger
	r.cancelerSched.Logger = r.logger

	if !r.disableIPv4 {
		r.transports = append(r.transports, &transport.IPv4Transport{Logger: r.logger})
	}
	if !r.disableIPv6 {
		r.transports = append(r.transports, &transport.IPv6Transport{Logger: r.logger})
	}

	r.disp = dispatcher.New(r.transports, r.cache, r.sched, r)
	r.disp.Logger = r.logger
	return r, nil
}

// Run joins the responder's multicast groups and drives its receive loop,
// scheduler and cache reaper until ctx is canceled or a fatal transport
// error occurs (§4.G, §4.F).
func (r *Responder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.runCancel = cancel
	r.mu.Unlock()
	defer cancel()

	for _, t := range r.transports {
		if err := t.Listen(r.ifaces); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.sched.Run(ctx) })
	g.Go(func() error { return r.cancelerSched.Run(ctx) })
	g.Go(func() error { return r.disp.Run(ctx) })
	g.Go(func() error {
		r.sched.Schedule(ctx, scheduler.NewReaper(r.cache.Reap), 10*time.Second)
		<-ctx.Done()
		return ctx.Err()
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Register publishes info's records, blocking until the resulting
// registration reaches ANNOUNCED or ctx is done (§6 "register(serviceInfo)
// — blocks until ANNOUNCED"). The returned *Registration is the handle
// passed to Unregister.
func (r *Responder) Register(ctx context.Context, info *ServiceInfo) (*Registration, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	reg := newRegistration(info.clone())
	r.reg.add(reg)
	r.installLifecycle(reg)

	if _, err := reg.machine.WaitUntilAnnouncedOrCanceled(ctx); err != nil {
		return reg, err
	}
	return reg, nil
}

// Unregister withdraws reg, sending three goodbye packets and blocking
// until they have all been sent or ctx is done (§6 "unregister(serviceInfo)
// — blocks until goodbye sent").
func (r *Responder) Unregister(ctx context.Context, reg *Registration) error {
	reg.slot.Cancel()

	done := make(chan struct{})
	canceler := scheduler.NewCanceler(
		func(ctx context.Context) error { return r.sendGoodbye(reg) },
		func() {
			reg.machine.Cancel()
			r.reg.remove(reg)
			close(done)
		},
	)

	if err := r.cancelerSched.RunNow(ctx, canceler); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnregisterAll withdraws every currently-registered service.
func (r *Responder) UnregisterAll(ctx context.Context) error {
	for _, reg := range r.reg.snapshot() {
		if err := r.Unregister(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}

// Close idempotently unregisters every service (best-effort, bounded by a
// short timeout) and stops Run's goroutines, mirroring §5 "close() is
// idempotent".
func (r *Responder) Close() error {
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = r.UnregisterAll(ctx)

		r.mu.Lock()
		runCancel := r.runCancel
		r.mu.Unlock()
		if runCancel != nil {
			runCancel()
		}
	})
	return nil
}

// AnswersFor implements dispatcher.RecordSource.
func (r *Responder) AnswersFor(q record.Question) []*record.Record {
	return r.reg.AnswersFor(q)
}

// Owned implements dispatcher.RecordSource.
func (r *Responder) Owned(entry record.Entry) *record.Record {
	return r.reg.Owned(entry)
}

// HandleConflict implements dispatcher.RecordSource: it reverts and
// (always, per Machine.Conflict) renames the owning registration, then
// reinstalls a fresh Prober→Announcer chain. The chain is sized for a full
// cycle regardless of how far the revert actually went; tick's own
// Announced/Canceled guard (probe.go) makes the extra ticks harmless. See
// DESIGN.md for why a full restart was chosen over resuming mid-chain.
func (r *Responder) HandleConflict(owned *record.Record) {
	reg := r.reg.findByOwned(owned)
	if reg == nil {
		return
	}

	_, renamed := reg.machine.Conflict()
	if renamed {
		reg.rename(reg.machine.Name())
	}
	r.installLifecycle(reg)
}
