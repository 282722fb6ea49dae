package scheduler_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/scheduler"
)

// countingJob runs n times, waiting delay between runs, then stops.
type countingJob struct {
	count *int32
	n     int
	delay time.Duration
}

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(j.count, 1)
	j.n--
	return nil
}

func (j *countingJob) Next() (scheduler.Job, time.Duration) {
	if j.n <= 0 {
		return nil, 0
	}
	return j, j.delay
}

var _ = Describe("Scheduler", func() {
	It("runs a self-rescheduling chain to completion", func() {
		s := scheduler.New()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.Run(ctx)

		var count int32
		job := &countingJob{count: &count, n: 3, delay: 10 * time.Millisecond}
		s.Schedule(ctx, job, time.Millisecond)

		Eventually(func() int32 {
			return atomic.LoadInt32(&count)
		}, time.Second).Should(Equal(int32(3)))
	})
})

var _ = Describe("Slot", func() {
	It("supersedes a previously installed chain", func() {
		s := scheduler.New()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.Run(ctx)

		var slot scheduler.Slot

		var firstCount int32
		first := &countingJob{count: &firstCount, n: 100, delay: time.Millisecond}
		slot.Install(s, first, time.Millisecond)

		time.Sleep(20 * time.Millisecond)

		var secondCount int32
		second := &countingJob{count: &secondCount, n: 1, delay: time.Millisecond}
		slot.Install(s, second, time.Millisecond)

		Eventually(func() int32 {
			return atomic.LoadInt32(&secondCount)
		}, time.Second).Should(Equal(int32(1)))

		stalled := atomic.LoadInt32(&firstCount)
		time.Sleep(50 * time.Millisecond)
		Expect(atomic.LoadInt32(&firstCount)).To(Equal(stalled))
	})
})

var _ = Describe("Prober/Announcer handoff", func() {
	It("sends 3 probes then 2 announcements", func() {
		var probes, announces int32

		announcer := scheduler.NewAnnouncer(func(ctx context.Context) error {
			atomic.AddInt32(&announces, 1)
			return nil
		}, nil)

		prober := scheduler.NewProber(func(ctx context.Context) error {
			atomic.AddInt32(&probes, 1)
			return nil
		}, announcer)

		s := scheduler.New()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.Run(ctx)

		s.Schedule(ctx, prober, time.Millisecond)

		Eventually(func() int32 {
			return atomic.LoadInt32(&announces)
		}, time.Second).Should(Equal(int32(2)))
		Expect(atomic.LoadInt32(&probes)).To(Equal(int32(3)))
	})
})
