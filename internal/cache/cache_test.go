package cache_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/cache"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

func ptrRecord(created time.Time, ttl uint32) *record.Record {
	return &record.Record{
		Entry: record.Entry{
			Name:  wire.ParseName("_http._tcp.local."),
			Type:  record.TypePTR,
			Class: record.ClassIN,
		},
		TTLSeconds: ttl,
		Created:    created,
		RData:      &record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
	}
}

var _ = Describe("Cache", func() {
	It("returns an inserted entry by equality, and nil for an absent one", func() {
		c := cache.New()
		r := ptrRecord(time.Unix(0, 0), 120)
		c.Put(r)

		found := c.Get(&record.Record{Entry: r.Entry})
		Expect(found).To(BeIdenticalTo(r))

		other := &record.Record{Entry: record.Entry{
			Name: wire.ParseName("other.local."), Type: record.TypePTR, Class: record.ClassIN,
		}}
		Expect(c.Get(other)).To(BeNil())
	})

	It("lists every entry under a name via GetByName", func() {
		c := cache.New()
		r1 := ptrRecord(time.Unix(0, 0), 120)
		r2 := &record.Record{
			Entry:      record.Entry{Name: r1.Name, Type: record.TypePTR, Class: record.ClassIN},
			TTLSeconds: 120,
			RData:      &record.Pointer{Target: wire.ParseName("OtherServer._http._tcp.local.")},
		}
		c.Put(r1)
		c.Put(r2)

		Expect(c.GetByName(r1.Key())).To(ConsistOf(r1, r2))
	})

	It("removes the exact entry identified by Remove", func() {
		c := cache.New()
		r := ptrRecord(time.Unix(0, 0), 120)
		c.Put(r)
		c.Remove(r)

		Expect(c.GetByName(r.Key())).To(BeEmpty())
	})

	It("reaps entries whose TTL has expired as of now", func() {
		c := cache.New()
		created := time.Unix(0, 0)
		r := ptrRecord(created, 60)
		c.Put(r)

		c.Reap(created.Add(30 * time.Second))
		Expect(c.GetByName(r.Key())).To(HaveLen(1))

		c.Reap(created.Add(60 * time.Second))
		Expect(c.GetByName(r.Key())).To(BeEmpty())
	})

	It("refreshes TTL and creation time in place without removing the entry", func() {
		c := cache.New()
		r := ptrRecord(time.Unix(0, 0), 60)
		c.Put(r)

		arriving := &record.Record{
			Entry:      r.Entry,
			TTLSeconds: 120,
			Created:    time.Unix(30, 0),
			RData:      r.RData,
		}
		c.Refresh(r, arriving)

		Expect(r.TTLSeconds).To(Equal(uint32(120)))
		Expect(r.Created).To(Equal(time.Unix(30, 0)))
	})

	It("emits serviceAdded and serviceRemoved events for PTR/SRV records only", func() {
		c := cache.New()

		var events []cache.Event
		c.AddListener(func(ev cache.Event) {
			events = append(events, ev)
		})

		ptr := ptrRecord(time.Unix(0, 0), 60)
		a := &record.Record{
			Entry: record.Entry{
				Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN,
			},
			TTLSeconds: 60,
		}

		c.Put(ptr)
		c.Put(a)

		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(cache.ServiceAdded))
		Expect(events[0].Record).To(BeIdenticalTo(ptr))

		c.Reap(time.Unix(0, 0).Add(60 * time.Second))

		Expect(events).To(HaveLen(2))
		Expect(events[1].Kind).To(Equal(cache.ServiceRemoved))
		Expect(events[1].Record).To(BeIdenticalTo(ptr))
	})
})
