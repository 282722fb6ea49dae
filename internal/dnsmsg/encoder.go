package dnsmsg

import (
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// section identifies which of the four message sections is currently being
// written. Sections must be appended in this order (§3 "An outgoing
// message serializes questions strictly before answers, answers before
// authorities, authorities before additionals").
type section int

const (
	sectionQuestion section = iota
	sectionAnswer
	sectionAuthority
	sectionAdditional
)

// Encoder incrementally builds a single mDNS datagram, enforcing section
// ordering and a maximum buffer size. When appending a record would exceed
// that size, Encoder rewinds to the position before that record and
// returns wire.ErrBufferFull; the caller is expected to mark the message
// truncated, flush what has been built so far, and continue into a new
// Encoder (§4.C).
type Encoder struct {
	buf     []byte
	maxSize int
	table   *wire.CompressionTable
	section section
	counts  [4]uint16
	header  Header
}

// NewEncoder returns an encoder that will refuse to grow its buffer past
// maxSize bytes. Passing 0 disables the size limit. When compress is true,
// a name-compression table is maintained across the lifetime of the
// encoder, as recommended (not required) by §4.A.
func NewEncoder(maxSize int, compress bool) *Encoder {
	e := &Encoder{
		buf:     make([]byte, 12),
		maxSize: maxSize,
	}
	if compress {
		e.table = wire.NewCompressionTable()
	}
	return e
}

// SetHeader sets the header fields to be stamped onto the message when
// Bytes is called. The QR/AA/TC bits are derived from Header and Truncated
// is additionally forced on by a later call to MarkTruncated.
func (e *Encoder) SetHeader(h Header) {
	e.header = h
}

// MarkTruncated sets the TC bit, used when the encoder could not fit every
// intended record and the caller is about to flush a partial message.
func (e *Encoder) MarkTruncated() {
	e.header.Truncated = true
}

// AppendQuestion appends a question to the question section. It panics if
// any answer, authority or additional record has already been appended.
func (e *Encoder) AppendQuestion(q record.Question) error {
	if e.section > sectionQuestion {
		panic("dnsmsg: question appended after the question section was closed")
	}

	pos := len(e.buf)

	buf, err := wire.EncodeName(e.buf, q.Name, e.table)
	if err != nil {
		return err
	}
	buf = wire.AppendUint16(buf, uint16(q.Type))
	buf = wire.AppendUint16(buf, record.JoinClass(q.Class, q.Unique))

	if e.overflows(buf) {
		e.buf = e.buf[:pos]
		return wire.ErrBufferFull
	}

	e.buf = buf
	e.counts[sectionQuestion]++
	return nil
}

// AppendAnswer appends a record to the answer section.
func (e *Encoder) AppendAnswer(r *record.Record) error {
	return e.appendRecord(sectionAnswer, r)
}

// AppendAuthority appends a record to the authority section.
func (e *Encoder) AppendAuthority(r *record.Record) error {
	return e.appendRecord(sectionAuthority, r)
}

// AppendAdditional appends a record to the additional section.
func (e *Encoder) AppendAdditional(r *record.Record) error {
	return e.appendRecord(sectionAdditional, r)
}

func (e *Encoder) appendRecord(s section, r *record.Record) error {
	if s < e.section {
		panic("dnsmsg: record appended out of section order")
	}
	e.section = s

	pos := len(e.buf)

	buf, err := wire.EncodeName(e.buf, r.Name, e.table)
	if err != nil {
		e.buf = e.buf[:pos]
		return err
	}
	buf = wire.AppendUint16(buf, uint16(r.Type))
	buf = wire.AppendUint16(buf, record.JoinClass(r.Class, r.Unique))
	buf = wire.AppendUint32(buf, r.TTLSeconds)

	rdlenPos := len(buf)
	buf = wire.AppendUint16(buf, 0) // placeholder, patched below
	rdStart := len(buf)

	buf, err = r.RData.WriteRData(buf, e.table)
	if err != nil {
		e.buf = e.buf[:pos]
		return err
	}

	if e.overflows(buf) {
		e.buf = e.buf[:pos]
		return wire.ErrBufferFull
	}

	rdlen := len(buf) - rdStart
	buf[rdlenPos] = byte(rdlen >> 8)
	buf[rdlenPos+1] = byte(rdlen)

	e.buf = buf
	e.counts[s]++
	return nil
}

func (e *Encoder) overflows(buf []byte) bool {
	return e.maxSize > 0 && len(buf) > e.maxSize
}

// Empty reports whether the encoder has not accumulated any questions or
// records.
func (e *Encoder) Empty() bool {
	return e.counts == [4]uint16{}
}

// Bytes stamps the header (including final section counts) and returns the
// complete datagram.
func (e *Encoder) Bytes() []byte {
	out := e.buf
	out[0], out[1] = byte(e.header.ID>>8), byte(e.header.ID)
	flags := e.header.flags()
	out[2], out[3] = byte(flags>>8), byte(flags)
	out[4], out[5] = byte(e.counts[sectionQuestion]>>8), byte(e.counts[sectionQuestion])
	out[6], out[7] = byte(e.counts[sectionAnswer]>>8), byte(e.counts[sectionAnswer])
	out[8], out[9] = byte(e.counts[sectionAuthority]>>8), byte(e.counts[sectionAuthority])
	out[10], out[11] = byte(e.counts[sectionAdditional]>>8), byte(e.counts[sectionAdditional])
	return out
}
