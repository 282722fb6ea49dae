package dnsmsg_test

import (
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/dnsmsg"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

var _ = Describe("Encoder/Decode round trip", func() {
	It("round trips a response carrying one record in each section", func() {
		enc := dnsmsg.NewEncoder(0, true)
		enc.SetHeader(dnsmsg.Header{ID: 0, Response: true, Authoritative: true})

		ptr := record.New(
			record.Entry{Name: wire.ParseName("_http._tcp.local."), Type: record.TypePTR, Class: record.ClassIN},
			120e9,
			&record.Pointer{Target: wire.ParseName("MyServer._http._tcp.local.")},
		)
		Expect(enc.AppendAnswer(ptr)).To(Succeed())

		srv := record.New(
			record.Entry{Name: wire.ParseName("MyServer._http._tcp.local."), Type: record.TypeSRV, Class: record.ClassIN, Unique: true},
			120e9,
			&record.Service{Port: 80, Target: wire.ParseName("myhost.local.")},
		)
		Expect(enc.AppendAuthority(srv)).To(Succeed())

		a := record.New(
			record.Entry{Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN, Unique: true},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.5").To4()},
		)
		Expect(enc.AppendAdditional(a)).To(Succeed())

		buf := enc.Bytes()

		msg, err := dnsmsg.Decode(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Response).To(BeTrue())
		Expect(msg.Authoritative).To(BeTrue())
		Expect(msg.Answer).To(HaveLen(1))
		Expect(msg.Ns).To(HaveLen(1))
		Expect(msg.Extra).To(HaveLen(1))

		Expect(msg.Answer[0].RData.(*record.Pointer).Target.Equal(wire.ParseName("MyServer._http._tcp.local."))).To(BeTrue())
		Expect(msg.Ns[0].RData.(*record.Service).Target.Equal(wire.ParseName("myhost.local."))).To(BeTrue())
		Expect(msg.Extra[0].RData.(*record.Address).IP.Equal(net.ParseIP("10.0.0.5"))).To(BeTrue())
	})

	It("skips an unknown record type but keeps the stream synchronized", func() {
		enc := dnsmsg.NewEncoder(0, false)
		enc.SetHeader(dnsmsg.Header{Response: true})

		a := record.New(
			record.Entry{Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.5").To4()},
		)
		Expect(enc.AppendAnswer(a)).To(Succeed())

		buf := enc.Bytes()

		// Splice a bogus record of an unrecognised type between the header
		// and the real answer, bumping ancount to 2.
		buf[7] = 2

		bogus := []byte{0x00, 0x00, 0x9B, 0x00, 0x01, 0x00, 0x00, 0x00, 0x3C, 0x00, 0x02, 0xAB, 0xCD}
		spliced := append(append([]byte{}, buf[:12]...), bogus...)
		spliced = append(spliced, buf[12:]...)

		msg, err := dnsmsg.Decode(spliced)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Answer).To(HaveLen(1))
		Expect(msg.Answer[0].Type).To(Equal(record.TypeA))
	})

	It("rejects a truncated header", func() {
		_, err := dnsmsg.Decode([]byte{0, 1, 2})
		Expect(err).To(HaveOccurred())
	})

	It("refuses to append a question after an answer", func() {
		enc := dnsmsg.NewEncoder(0, false)

		a := record.New(
			record.Entry{Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.5").To4()},
		)
		Expect(enc.AppendAnswer(a)).To(Succeed())

		Expect(func() {
			enc.AppendQuestion(record.Question{Entry: record.Entry{
				Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN,
			}})
		}).To(Panic())
	})

	It("refuses to append an authority record once additionals have started", func() {
		enc := dnsmsg.NewEncoder(0, false)

		a := record.New(
			record.Entry{Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.5").To4()},
		)
		Expect(enc.AppendAdditional(a)).To(Succeed())

		Expect(func() {
			enc.AppendAuthority(a)
		}).To(Panic())
	})

	It("signals ErrBufferFull and rewinds when a record would overflow maxSize", func() {
		enc := dnsmsg.NewEncoder(50, false)

		a := record.New(
			record.Entry{Name: wire.ParseName("myhost.local."), Type: record.TypeA, Class: record.ClassIN},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.5").To4()},
		)
		Expect(enc.AppendAnswer(a)).To(Succeed())

		before := len(enc.Bytes())

		big := record.New(
			record.Entry{Name: wire.ParseName("anotherhost.local."), Type: record.TypeA, Class: record.ClassIN},
			120e9,
			&record.Address{IP: net.ParseIP("10.0.0.6").To4()},
		)
		err := enc.AppendAnswer(big)
		Expect(err).To(MatchError(wire.ErrBufferFull))

		enc.MarkTruncated()
		Expect(len(enc.Bytes())).To(Equal(before))

		msg, derr := dnsmsg.Decode(enc.Bytes())
		Expect(derr).NotTo(HaveOccurred())
		Expect(msg.Truncated).To(BeTrue())
		Expect(msg.Answer).To(HaveLen(1))
	})
})

var _ = Describe("Message.Append", func() {
	It("concatenates sections from a truncation-chain continuation", func() {
		m := &dnsmsg.Message{
			Header:    dnsmsg.Header{Truncated: true},
			Questions: []record.Question{{Entry: record.Entry{Name: wire.ParseName("a.local.")}}},
		}

		cont := &dnsmsg.Message{
			Header:    dnsmsg.Header{Truncated: false},
			Questions: []record.Question{{Entry: record.Entry{Name: wire.ParseName("b.local.")}}},
		}

		m.Append(cont)

		Expect(m.Questions).To(HaveLen(2))
		Expect(m.Truncated).To(BeFalse())
	})

	It("panics when appending to a message that is not a truncated query", func() {
		m := &dnsmsg.Message{Header: dnsmsg.Header{Truncated: false}}
		Expect(func() { m.Append(&dnsmsg.Message{}) }).To(Panic())
	})
})
