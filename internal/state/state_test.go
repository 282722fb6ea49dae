package state_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/state"
)

var _ = Describe("IncrementName", func() {
	DescribeTable("applies the conflict renaming rule",
		func(in, want string) {
			Expect(state.IncrementName(in)).To(Equal(want))
		},
		Entry("no existing suffix", "MyPrinter", "MyPrinter (2)"),
		Entry("existing suffix increments", "MyPrinter (2)", "MyPrinter (3)"),
		Entry("double digit suffix increments", "MyPrinter (9)", "MyPrinter (10)"),
	)
})

var _ = Describe("Machine", func() {
	It("advances through the prefix of states a successful register observes", func() {
		m := state.New("MyPrinter._ipp._tcp.local.", nil)

		seen := []state.State{m.State()}
		for m.State() != state.Announced {
			seen = append(seen, m.Advance())
		}

		Expect(seen).To(Equal([]state.State{
			state.Probing1,
			state.Probing2,
			state.Probing3,
			state.Announcing1,
			state.Announcing2,
			state.Announced,
		}))
	})

	It("reverts one step and renames on conflict during announcing", func() {
		m := state.New("MyPrinter._ipp._tcp.local.", nil)
		m.Advance() // Probing2
		m.Advance() // Probing3
		m.Advance() // Announcing1

		next, renamed := m.Conflict()

		Expect(next).To(Equal(state.Probing3))
		Expect(renamed).To(BeTrue())
		Expect(m.Name()).To(Equal("MyPrinter (2)._ipp._tcp.local."))
	})

	It("unblocks WaitUntilAnnouncedOrCanceled once ANNOUNCED is reached", func() {
		m := state.New("MyPrinter._ipp._tcp.local.", nil)

		done := make(chan state.State, 1)
		go func() {
			s, err := m.WaitUntilAnnouncedOrCanceled(context.Background())
			Expect(err).NotTo(HaveOccurred())
			done <- s
		}()

		for m.State() != state.Announced {
			m.Advance()
		}

		Eventually(done).Should(Receive(Equal(state.Announced)))
	})

	It("is idempotent when Cancel is called twice", func() {
		m := state.New("MyPrinter._ipp._tcp.local.", nil)
		m.Cancel()
		m.Cancel()
		Expect(m.State()).To(Equal(state.Canceled))
	})
})

var _ = Describe("Throttle", func() {
	It("delays once the per-window probe limit is reached", func() {
		var th state.Throttle
		now := time.Unix(0, 0)

		var last time.Duration
		for i := 0; i < 10; i++ {
			last = th.Delay(now)
		}

		Expect(last).To(Equal(5000 * time.Millisecond))
	})

	It("resets the counter once the window rolls over", func() {
		var th state.Throttle
		now := time.Unix(0, 0)

		for i := 0; i < 10; i++ {
			th.Delay(now)
		}

		Expect(th.Delay(now.Add(2 * time.Second))).To(Equal(time.Duration(0)))
	})
})
