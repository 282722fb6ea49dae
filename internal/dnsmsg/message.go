// Package dnsmsg implements the mDNS message codec on top of the wire and
// record packages: the 12-byte header, the four sections (question,
// answer, authority, additional), and the truncation-chain merging used
// when a query's known-answers arrive split across multiple datagrams.
package dnsmsg

import (
	"time"

	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// Header bit positions of interest; all other bits are always zero on
// emission and ignored on reception, per §6 "Reserved flag bits".
const (
	flagResponse      uint16 = 1 << 15 // QR
	flagAuthoritative uint16 = 1 << 10 // AA
	flagTruncated     uint16 = 1 << 9  // TC
)

// Header is the 12-byte mDNS message header, reduced to the fields this
// responder cares about (§4.C).
type Header struct {
	ID            uint16
	Response      bool
	Authoritative bool
	Truncated     bool
}

func (h Header) flags() uint16 {
	var f uint16
	if h.Response {
		f |= flagResponse
	}
	if h.Authoritative {
		f |= flagAuthoritative
	}
	if h.Truncated {
		f |= flagTruncated
	}
	return f
}

// Message is a decoded or in-progress mDNS message.
type Message struct {
	Header
	Questions []record.Question
	Answer    []*record.Record
	Ns        []*record.Record
	Extra     []*record.Record
}

// Append merges a truncated continuation query into m, concatenating the
// question and record sections (§4.C "truncation-chain append"). It panics
// if m is not itself a truncated query, since appending to anything else
// is a programmer error per §4.C.
func (m *Message) Append(continuation *Message) {
	if !m.Truncated || m.Response {
		panic("dnsmsg: Append called on a message that is not a truncated query")
	}

	m.Questions = append(m.Questions, continuation.Questions...)
	m.Answer = append(m.Answer, continuation.Answer...)
	m.Ns = append(m.Ns, continuation.Ns...)
	m.Extra = append(m.Extra, continuation.Extra...)
	m.Truncated = continuation.Truncated
}

// Decode parses a complete mDNS datagram.
//
// Per §4.C, the decoder always advances exactly rdlength bytes past each
// record's rdata, even when that rdata fails to parse or belongs to an
// unrecognised record type; in both cases the record is silently dropped
// rather than aborting the whole datagram.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < 12 {
		return nil, &wire.FormatError{Offset: 0, Err: wire.ErrTruncated}
	}

	id, _ := wire.ReadUint16(buf, 0)
	flags, _ := wire.ReadUint16(buf, 2)
	qdcount, _ := wire.ReadUint16(buf, 4)
	ancount, _ := wire.ReadUint16(buf, 6)
	nscount, _ := wire.ReadUint16(buf, 8)
	arcount, _ := wire.ReadUint16(buf, 10)

	m := &Message{
		Header: Header{
			ID:            id,
			Response:      flags&flagResponse != 0,
			Authoritative: flags&flagAuthoritative != 0,
			Truncated:     flags&flagTruncated != 0,
		},
	}

	pos := 12

	for i := 0; i < int(qdcount); i++ {
		name, next, err := wire.DecodeName(buf, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		t, err := wire.ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		pos += 2

		c, err := wire.ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		pos += 2

		class, unique := record.SplitClass(c)
		m.Questions = append(m.Questions, record.Question{
			Entry: record.Entry{Name: name, Type: record.Type(t), Class: class, Unique: unique},
		})
	}

	var err error
	if m.Answer, pos, err = decodeRecords(buf, pos, int(ancount)); err != nil {
		return nil, err
	}
	if m.Ns, pos, err = decodeRecords(buf, pos, int(nscount)); err != nil {
		return nil, err
	}
	if m.Extra, _, err = decodeRecords(buf, pos, int(arcount)); err != nil {
		return nil, err
	}

	return m, nil
}

func decodeRecords(buf []byte, pos, count int) ([]*record.Record, int, error) {
	var records []*record.Record

	for i := 0; i < count; i++ {
		rec, next, skip, err := decodeRecord(buf, pos)
		if err != nil {
			return nil, 0, err
		}
		pos = next

		if !skip {
			records = append(records, rec)
		}
	}

	return records, pos, nil
}

// decodeRecord decodes a single resource record. On success (skip=false)
// rec is populated; when the type is unrecognised or its rdata fails to
// parse, skip is true and rec is nil, but next always points past the
// record's rdata so the stream stays synchronized.
func decodeRecord(buf []byte, pos int) (rec *record.Record, next int, skip bool, err error) {
	name, p, err := wire.DecodeName(buf, pos)
	if err != nil {
		return nil, 0, false, err
	}
	pos = p

	t, err := wire.ReadUint16(buf, pos)
	if err != nil {
		return nil, 0, false, err
	}
	pos += 2

	c, err := wire.ReadUint16(buf, pos)
	if err != nil {
		return nil, 0, false, err
	}
	pos += 2

	ttl, err := wire.ReadUint32(buf, pos)
	if err != nil {
		return nil, 0, false, err
	}
	pos += 4

	rdlength, err := wire.ReadUint16(buf, pos)
	if err != nil {
		return nil, 0, false, err
	}
	pos += 2

	rdStart := pos
	rdEnd := rdStart + int(rdlength)
	if rdEnd > len(buf) {
		return nil, 0, false, &wire.FormatError{Offset: rdStart, Err: wire.ErrTruncated}
	}

	class, unique := record.SplitClass(c)
	typ := record.Type(t)
	entry := record.Entry{Name: name, Type: typ, Class: class, Unique: unique}

	var data record.RData
	var rerr error

	switch typ {
	case record.TypeA, record.TypeAAAA:
		data, rerr = record.ParseAddressRData(buf[rdStart:rdEnd])
	case record.TypePTR:
		data, rerr = record.ParsePointerRData(buf, rdStart)
	case record.TypeSRV:
		data, rerr = record.ParseServiceRData(buf, rdStart, int(rdlength))
	case record.TypeTXT:
		data, rerr = record.ParseTextRData(buf[rdStart:rdEnd])
	default:
		// Unknown record types are silently skipped (§4.C). Message keeps
		// no separate section counts: each section's length is the number
		// of records retained.
		return nil, rdEnd, true, nil
	}

	if rerr != nil {
		return nil, rdEnd, true, nil
	}

	return &record.Record{Entry: entry, TTLSeconds: ttl, Created: time.Now(), RData: data}, rdEnd, false, nil
}
