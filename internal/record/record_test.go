package record_test

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

func ptrEntry() record.Entry {
	return record.Entry{
		Name:  wire.ParseName("_http._tcp.local."),
		Type:  record.TypePTR,
		Class: record.ClassIN,
	}
}

var _ = Describe("Record", func() {
	Describe("IsExpired", func() {
		It("reports expired once now reaches created+ttl", func() {
			created := time.Unix(0, 0)
			r := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 60,
				Created:    created,
				RData:      &record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
			}

			Expect(r.IsExpired(created.Add(59 * time.Second))).To(BeFalse())
			Expect(r.IsExpired(created.Add(60 * time.Second))).To(BeTrue())
		})
	})

	Describe("ResetTTL", func() {
		It("copies the created time and ttl from the arriving record", func() {
			existing := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 60,
				Created:    time.Unix(0, 0),
				RData:      &record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
			}

			arriving := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 120,
				Created:    time.Unix(30, 0),
				RData:      existing.RData,
			}

			existing.ResetTTL(arriving)

			Expect(existing.TTLSeconds).To(Equal(uint32(120)))
			Expect(existing.Created).To(Equal(time.Unix(30, 0)))
		})
	})

	Describe("SuppressedBy", func() {
		It("suppresses a record whose known-answer carries at least half its TTL", func() {
			r := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 120,
				RData:      &record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
			}

			known := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 60,
				RData:      r.RData,
			}

			Expect(r.SuppressedBy([]*record.Record{known})).To(BeTrue())
		})

		It("does not suppress when the known-answer TTL is too low", func() {
			r := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 120,
				RData:      &record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
			}

			known := &record.Record{
				Entry:      ptrEntry(),
				TTLSeconds: 10,
				RData:      r.RData,
			}

			Expect(r.SuppressedBy([]*record.Record{known})).To(BeFalse())
		})
	})

	Describe("HandleQuery / HandleResponse", func() {
		It("signals a conflict when a unique incoming record disputes ours", func() {
			owned := &record.Record{
				Entry: record.Entry{
					Name:   wire.ParseName("printer._ipp._tcp.local."),
					Type:   record.TypeSRV,
					Class:  record.ClassIN,
					Unique: true,
				},
				RData: &record.Service{Port: 631, Target: wire.ParseName("myhost.local.")},
			}

			incoming := &record.Record{
				Entry: owned.Entry,
				RData: &record.Service{Port: 631, Target: wire.ParseName("otherhost.local.")},
			}
			incoming.Unique = true

			Expect(incoming.HandleQuery(owned)).To(BeTrue())
			Expect(incoming.HandleResponse(owned)).To(BeTrue())
		})

		It("does not signal a conflict when the rdata matches", func() {
			owned := &record.Record{
				Entry: record.Entry{
					Name:   wire.ParseName("printer._ipp._tcp.local."),
					Type:   record.TypeSRV,
					Class:  record.ClassIN,
					Unique: true,
				},
				RData: &record.Service{Port: 631, Target: wire.ParseName("myhost.local.")},
			}

			incoming := &record.Record{Entry: owned.Entry, RData: owned.RData}

			Expect(incoming.HandleQuery(owned)).To(BeFalse())
		})
	})

	Describe("Question.AnsweredBy", func() {
		It("matches ANY-type questions against any record type", func() {
			q := record.Question{Entry: record.Entry{
				Name:  wire.ParseName("myhost.local."),
				Type:  record.TypeANY,
				Class: record.ClassIN,
			}}

			a := &record.Record{
				Entry: record.Entry{
					Name:  wire.ParseName("myhost.local."),
					Type:  record.TypeA,
					Class: record.ClassIN,
				},
				RData: &record.Address{IP: net.ParseIP("10.0.0.1")},
			}

			Expect(q.AnsweredBy(a)).To(BeTrue())
		})
	})
})
