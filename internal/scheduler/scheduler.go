// Package scheduler implements the single timer wheel that drives every
// periodic and one-shot job in the responder: probing, announcing,
// renewal, reaping, query responses and resolver browsing/backoff.
//
// Every job runs on the scheduler's own goroutine, one at a time, mirroring
// the single cooperative timer thread described for the responder (§5):
// jobs never run concurrently with each other, so they may freely touch
// shared state such as the cache or a state.Machine without their own
// locking, provided nothing outside the scheduler touches that state
// unsynchronized.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
)

// Job is a unit of scheduled work. Run executes the job's action; Next then
// returns the job that should run after it (e.g. a Prober returning an
// Announcer once its probes are sent) along with the delay before that
// next job runs. Returning a nil next job ends the chain.
type Job interface {
	// Run performs the job's action once.
	Run(ctx context.Context) error

	// Next returns the job to schedule after this one completes
	// successfully, and the delay before it should run. A nil Job ends
	// the chain.
	Next() (job Job, delay time.Duration)
}

// command adapts a Job into the same command-channel execution model the
// rest of the responder uses: scheduling is just another command posted to
// a single serializing loop.
type command struct {
	ctx  context.Context
	job  Job
	done chan<- error
}

// Scheduler is the single-goroutine timer wheel. All Jobs installed on it
// execute one at a time, in the order their delays elapse.
type Scheduler struct {
	Logger logging.Logger

	commands chan command
	done     chan struct{}
}

// New returns a Scheduler. Run must be called to start its loop.
func New() *Scheduler {
	return &Scheduler{
		commands: make(chan command),
		done:     make(chan struct{}),
	}
}

// Run drives the scheduler's loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.commands:
			err := c.job.Run(ctx)
			if c.done != nil {
				c.done <- err
			}
			if err != nil {
				logging.Log(s.Logger, "scheduler: job failed: %s", err)
				continue
			}
			if next, delay := c.job.Next(); next != nil {
				chainCtx := ctx
				if c.ctx != nil {
					chainCtx = c.ctx
				}
				s.after(chainCtx, delay, next)
			}
		}
	}
}

// Schedule installs job to run once after delay elapses. ctx additionally
// bounds the lifetime of job and of every link its Next chain schedules:
// once ctx is canceled, no further link of the chain runs. (A Slot
// supersedes chains by generation instead, and schedules them under
// context.Background.)
func (s *Scheduler) Schedule(ctx context.Context, job Job, delay time.Duration) {
	s.after(ctx, delay, job)
}

// RunNow executes job immediately on the scheduler goroutine and blocks
// until its Run has returned, returning Run's error; any chain its Next
// returns is scheduled afterwards under the ctx passed to the scheduler's
// own Run. It is used for jobs, such as a decoded packet's processing or a
// Canceler, that must not wait out a delay before being considered
// "installed".
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	done := make(chan error, 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.New("scheduler: no longer running")
	case s.commands <- command{job: job, done: done}:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *Scheduler) after(ctx context.Context, delay time.Duration, job Job) {
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-t.C:
		}

		select {
		case <-ctx.Done():
		case <-s.done:
		case s.commands <- command{ctx: ctx, job: job}:
		}
	}()
}
