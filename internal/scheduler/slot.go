package scheduler

import (
	"context"
	"sync"
	"time"
)

// Slot ensures at most one Job chain is alive for a single host or service
// entity at a time: installing a new job first invalidates whatever chain
// was previously installed (§4.F "a per-entity currentTask slot ensures
// there is at most one task per host or service info alive at any time;
// installing a new task first cancels the previous").
//
// A Slot is safe for concurrent use.
type Slot struct {
	mu  sync.Mutex
	gen uint64
}

// Install schedules job to run after delay on sched, invalidating any
// chain installed previously on this Slot. Once superseded, a chain's
// remaining links (including anything already queued via a timer) become
// no-ops rather than executing.
func (s *Slot) Install(sched *Scheduler, job Job, delay time.Duration) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sched.Schedule(context.Background(), &guardedJob{slot: s, gen: gen, job: job}, delay)
}

// Cancel invalidates the currently installed chain without replacing it.
func (s *Slot) Cancel() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

func (s *Slot) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// guardedJob wraps a Job so that it (and its Next chain) silently stop
// running once the owning Slot has moved on to a different generation.
type guardedJob struct {
	slot *Slot
	gen  uint64
	job  Job
}

func (g *guardedJob) Run(ctx context.Context) error {
	if !g.slot.current(g.gen) {
		return nil
	}
	return g.job.Run(ctx)
}

func (g *guardedJob) Next() (Job, time.Duration) {
	if !g.slot.current(g.gen) {
		return nil, 0
	}
	next, delay := g.job.Next()
	if next == nil {
		return nil, 0
	}
	return &guardedJob{slot: g.slot, gen: g.gen, job: next}, delay
}
