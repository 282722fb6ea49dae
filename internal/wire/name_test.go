package wire_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jmalloc/rendezvous/internal/wire"
)

var _ = Describe("Name", func() {
	Describe("round-tripping", func() {
		DescribeTable(
			"decode(encode(name)) == name",
			func(dotted string) {
				name := wire.ParseName(dotted)

				buf, err := wire.EncodeName(nil, name, nil)
				Expect(err).NotTo(HaveOccurred())

				decoded, next, err := wire.DecodeName(buf, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(next).To(Equal(len(buf)))
				Expect(decoded.Equal(name)).To(BeTrue())
			},
			Entry("simple host", "MyServer._http._tcp.local."),
			Entry("root", "."),
			Entry("single label", "local."),
			Entry("service type enumeration", "_services._dns-sd._udp.local."),
			Entry("reverse domain", "1.0.0.127.in-addr.arpa."),
		)
	})

	Describe("EncodeName", func() {
		It("compresses a previously-written suffix into a two-byte pointer", func() {
			t := wire.NewCompressionTable()

			header := make([]byte, 12)
			buf, err := wire.EncodeName(header, wire.ParseName("_http._tcp.local."), t)
			Expect(err).NotTo(HaveOccurred())

			// S1: byte 12 is the length of "_http" (5), followed by the
			// literal bytes, and the suffix is recorded at offset 12.
			Expect(buf[12]).To(Equal(byte(5)))
			Expect(string(buf[13:18])).To(Equal("_http"))

			start := len(buf)
			buf, err = wire.EncodeName(buf, wire.ParseName("MyServer._http._tcp.local."), t)
			Expect(err).NotTo(HaveOccurred())
			instance := buf[start:]

			withoutCompression, err := wire.EncodeName(nil, wire.ParseName("MyServer._http._tcp.local."), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(len(instance)).To(BeNumerically("<=", len(withoutCompression)))

			decodedCompressed, _, err := wire.DecodeName(buf, start)
			Expect(err).NotTo(HaveOccurred())

			decodedLiteral, _, err := wire.DecodeName(withoutCompression, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(decodedCompressed.Equal(decodedLiteral)).To(BeTrue())
		})

		It("does not record suffixes beyond the 14-bit pointer range", func() {
			t := wire.NewCompressionTable()
			big := make([]byte, 0x4000)

			_, err := wire.EncodeName(big, wire.ParseName("unreachable.local."), t)
			Expect(err).NotTo(HaveOccurred())

			// the position is not writable as a pointer target, so it must
			// not have been recorded: encoding the same name again with the
			// table yields the literal labels rather than a pointer.
			literal, err := wire.EncodeName(nil, wire.ParseName("unreachable.local."), nil)
			Expect(err).NotTo(HaveOccurred())

			again, err := wire.EncodeName(nil, wire.ParseName("unreachable.local."), t)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(literal))
		})
	})

	Describe("DecodeName", func() {
		It("fails with ErrMalformedLabel for an unrecognised length-byte pattern", func() {
			// S2: 0x80 marks the unused "10" top-bit pattern (0x40 is the
			// other unused "01" pattern); "11" is a pointer and "00" is a
			// literal length, so neither can stand in for this case.
			_, _, err := wire.DecodeName([]byte{0x80, 0x00}, 0)
			Expect(err).To(MatchError(wire.ErrMalformedLabel))
		})

		It("fails with ErrCircularName when a pointer does not strictly decrease", func() {
			msg := []byte{
				0xC0, 0x02, // byte 0: pointer to offset 2
				0xC0, 0x00, // byte 2: pointer to offset 0, whose pointer to 2 again does not decrease
			}

			_, _, err := wire.DecodeName(msg, 0)
			Expect(err).To(MatchError(wire.ErrCircularName))
		})

		It("advances the cursor to the continuation offset after the first pointer", func() {
			msg := append([]byte{3, 'f', 'o', 'o', 0}, 0xC0, 0x00)

			_, next, err := wire.DecodeName(msg, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(Equal(7)) // just after the 2-byte pointer at offset 5
		})

		It("round-trips plain 7-bit ASCII through the modified-UTF-8 label path", func() {
			name := wire.Name{"My-Printer", "_ipp", "_tcp", "local"}
			buf, err := wire.EncodeName(nil, name, nil)
			Expect(err).NotTo(HaveOccurred())

			decoded, _, err := wire.DecodeName(buf, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.Equal(name)).To(BeTrue())
		})
	})
})
