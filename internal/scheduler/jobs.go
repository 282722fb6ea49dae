package scheduler

import (
	"context"
	"time"
)

// Send is the action a job performs on each tick: emit a frame, issue a
// query, and so on. Jobs are deliberately ignorant of transport and
// dnsmsg; the dispatcher supplies these as closures over its own state.
type Send func(ctx context.Context) error

// Prober sends three probe queries 250ms apart, then hands off to an
// Announcer (§4.F "Prober").
type Prober struct {
	Send       Send
	ticksLeft  int
	nextOnDone Job
}

// NewProber returns a Prober that will send 3 probes before handing off
// to announce, which typically wraps a fresh *Announcer.
func NewProber(send Send, announce Job) *Prober {
	return &Prober{Send: send, ticksLeft: 3, nextOnDone: announce}
}

func (p *Prober) Run(ctx context.Context) error {
	if err := p.Send(ctx); err != nil {
		return err
	}
	p.ticksLeft--
	return nil
}

func (p *Prober) Next() (Job, time.Duration) {
	if p.ticksLeft <= 0 {
		return p.nextOnDone, 0
	}
	return p, 250 * time.Millisecond
}

// Announcer sends two unsolicited announcements 250ms apart, then hands
// off to a Renewer (§4.F "Announcer").
type Announcer struct {
	Send       Send
	ticksLeft  int
	nextOnDone Job
}

// NewAnnouncer returns an Announcer that will send 2 announcements before
// handing off to renew, which typically wraps a fresh *Renewer.
func NewAnnouncer(send Send, renew Job) *Announcer {
	return &Announcer{Send: send, ticksLeft: 2, nextOnDone: renew}
}

func (a *Announcer) Run(ctx context.Context) error {
	if err := a.Send(ctx); err != nil {
		return err
	}
	a.ticksLeft--
	return nil
}

func (a *Announcer) Next() (Job, time.Duration) {
	if a.ticksLeft <= 0 {
		return a.nextOnDone, 0
	}
	return a, 250 * time.Millisecond
}

// renewFractions are the TTL fractions at which an ANNOUNCED record is
// re-announced to keep peer caches warm (§4.E "Announced").
var renewFractions = [...]float64{0.80, 0.85, 0.90, 0.95}

// Renewer re-announces a record's data at 80%, 85%, 90% and 95% of its TTL,
// then stops (§4.F "Renewer").
type Renewer struct {
	Send Send
	TTL  time.Duration

	step int
}

// NewRenewer returns a Renewer for a record with the given TTL.
func NewRenewer(send Send, ttl time.Duration) *Renewer {
	return &Renewer{Send: send, TTL: ttl}
}

func (r *Renewer) Run(ctx context.Context) error {
	return r.Send(ctx)
}

func (r *Renewer) Next() (Job, time.Duration) {
	r.step++
	if r.step >= len(renewFractions) {
		return nil, 0
	}

	prevFraction := 0.0
	if r.step > 0 {
		prevFraction = renewFractions[r.step-1]
	}
	delay := time.Duration(float64(r.TTL) * (renewFractions[r.step] - prevFraction))
	return r, delay
}

// FirstDelay returns the delay before the first renewal, measured from
// record creation (80% of TTL).
func (r *Renewer) FirstDelay() time.Duration {
	return time.Duration(float64(r.TTL) * renewFractions[0])
}

// Reaper periodically expires cache entries (§4.F "Reaper").
type Reaper struct {
	Reap   func(now time.Time)
	Period time.Duration
}

// NewReaper returns a Reaper that calls reap every 10 seconds.
func NewReaper(reap func(now time.Time)) *Reaper {
	return &Reaper{Reap: reap, Period: 10 * time.Second}
}

func (r *Reaper) Run(ctx context.Context) error {
	r.Reap(time.Now())
	return nil
}

func (r *Reaper) Next() (Job, time.Duration) {
	return r, r.Period
}

// Responder answers a single received query after a small random delay to
// reduce collisions with other responders (§4.F "Responder"). It never
// reschedules itself.
type Responder struct {
	Send Send
}

func (r *Responder) Run(ctx context.Context) error {
	return r.Send(ctx)
}

func (r *Responder) Next() (Job, time.Duration) {
	return nil, 0
}

// Canceler sends three goodbye packets 125ms apart and then invokes Done,
// on a timer separate from the rest of the scheduler to avoid the
// close()-vs-Canceler deadlock described in §5.
type Canceler struct {
	Send      Send
	Done      func()
	ticksLeft int
}

// NewCanceler returns a Canceler that sends 3 goodbyes before calling done.
func NewCanceler(send Send, done func()) *Canceler {
	return &Canceler{Send: send, Done: done, ticksLeft: 3}
}

func (c *Canceler) Run(ctx context.Context) error {
	if err := c.Send(ctx); err != nil {
		return err
	}
	c.ticksLeft--
	if c.ticksLeft <= 0 && c.Done != nil {
		c.Done()
	}
	return nil
}

func (c *Canceler) Next() (Job, time.Duration) {
	if c.ticksLeft <= 0 {
		return nil, 0
	}
	return c, 125 * time.Millisecond
}

// Backoff is the shared 225ms-doubling-to-20s schedule used by the three
// resolver jobs (§4.F).
type Backoff struct {
	delay time.Duration
}

const (
	backoffInitial = 225 * time.Millisecond
	backoffMax     = 20 * time.Second
)

func (b *Backoff) next() time.Duration {
	if b.delay == 0 {
		b.delay = backoffInitial
	} else {
		b.delay *= 2
		if b.delay > backoffMax {
			b.delay = backoffMax
		}
	}
	return b.delay
}

// TypeResolver periodically browses _services._dns-sd._udp.local, backing
// off geometrically, until Satisfied reports true (§4.F "TypeResolver").
type TypeResolver struct {
	Send      Send
	Satisfied func() bool
	backoff   Backoff
}

func (t *TypeResolver) Run(ctx context.Context) error {
	return t.Send(ctx)
}

func (t *TypeResolver) Next() (Job, time.Duration) {
	if t.Satisfied != nil && t.Satisfied() {
		return nil, 0
	}
	return t, t.backoff.next()
}

// ServiceResolver periodically issues PTR queries for a single service
// type, backing off geometrically, until Satisfied reports true (§4.F
// "ServiceResolver(type)").
type ServiceResolver struct {
	Send      Send
	Satisfied func() bool
	backoff   Backoff
}

func (s *ServiceResolver) Run(ctx context.Context) error {
	return s.Send(ctx)
}

func (s *ServiceResolver) Next() (Job, time.Duration) {
	if s.Satisfied != nil && s.Satisfied() {
		return nil, 0
	}
	return s, s.backoff.next()
}

// ServiceInfoResolver periodically runs Send for a single service instance,
// backing off geometrically, until Satisfied reports true (§4.F
// "ServiceInfoResolver(info)"). dnssd's GetServiceInfo uses it to ask for
// the instance's SRV and TXT records; no address query is issued.
type ServiceInfoResolver struct {
	Send      Send
	Satisfied func() bool
	backoff   Backoff
}

func (s *ServiceInfoResolver) Run(ctx context.Context) error {
	return s.Send(ctx)
}

func (s *ServiceInfoResolver) Next() (Job, time.Duration) {
	if s.Satisfied != nil && s.Satisfied() {
		return nil, 0
	}
	return s, s.backoff.next()
}
