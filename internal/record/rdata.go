package record

import (
	"fmt"
	"net"
	"strings"

	"github.com/jmalloc/rendezvous/internal/wire"
)

// RData is the typed payload of a DNS record. Each variant knows how to
// serialize itself and how to compare itself against another instance of
// the same type for the purposes of refresh-vs-replace and known-answer
// suppression.
type RData interface {
	// Type returns the record type this rdata belongs to.
	Type() Type

	// WriteRData appends the wire-format rdata (not including the
	// rdlength field, which the caller back-patches once the length is
	// known) to buf.
	WriteRData(buf []byte, t *wire.CompressionTable) ([]byte, error)

	// SameRData reports whether other carries identical data to this
	// rdata. Differing concrete types are never equal.
	SameRData(other RData) bool

	// String renders the rdata for logging.
	String() string
}

// Address is the rdata of an A or AAAA record.
type Address struct {
	IP net.IP
}

// Type returns TypeA for an IPv4 address and TypeAAAA for an IPv6 one.
func (a *Address) Type() Type {
	if a.IP.To4() != nil {
		return TypeA
	}
	return TypeAAAA
}

func (a *Address) WriteRData(buf []byte, _ *wire.CompressionTable) ([]byte, error) {
	if v4 := a.IP.To4(); v4 != nil {
		return append(buf, v4...), nil
	}
	v6 := a.IP.To16()
	if v6 == nil {
		return nil, fmt.Errorf("record: %q is not a valid IPv4 or IPv6 address", a.IP)
	}
	return append(buf, v6...), nil
}

func (a *Address) SameRData(other RData) bool {
	o, ok := other.(*Address)
	return ok && a.IP.Equal(o.IP)
}

func (a *Address) String() string {
	return a.IP.String()
}

// ParseAddressRData decodes the raw rdata bytes of an A or AAAA record.
func ParseAddressRData(raw []byte) (*Address, error) {
	switch len(raw) {
	case net.IPv4len:
		return &Address{IP: net.IP(append([]byte(nil), raw...))}, nil
	case net.IPv6len:
		return &Address{IP: net.IP(append([]byte(nil), raw...))}, nil
	default:
		return nil, fmt.Errorf("record: address rdata has unexpected length %d", len(raw))
	}
}

// Pointer is the rdata of a PTR record: an alias to another name.
type Pointer struct {
	Target wire.Name
}

func (*Pointer) Type() Type { return TypePTR }

func (p *Pointer) WriteRData(buf []byte, t *wire.CompressionTable) ([]byte, error) {
	return wire.EncodeName(buf, p.Target, t)
}

func (p *Pointer) SameRData(other RData) bool {
	o, ok := other.(*Pointer)
	return ok && p.Target.Equal(o.Target)
}

func (p *Pointer) String() string {
	return p.Target.String()
}

// Service is the rdata of an SRV record.
type Service struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   wire.Name
}

func (*Service) Type() Type { return TypeSRV }

func (s *Service) WriteRData(buf []byte, t *wire.CompressionTable) ([]byte, error) {
	buf = wire.AppendUint16(buf, s.Priority)
	buf = wire.AppendUint16(buf, s.Weight)
	buf = wire.AppendUint16(buf, s.Port)
	// The canonical SRV target encoding is a plain label-encoded name; a
	// historical competing convention used the compressed "domain name
	// format" unconditionally. Open Question (a) in §9 resolves this in
	// favour of the canonical form, so SRV targets are never compressed.
	return wire.EncodeName(buf, s.Target, nil)
}

func (s *Service) SameRData(other RData) bool {
	o, ok := other.(*Service)
	return ok &&
		s.Priority == o.Priority &&
		s.Weight == o.Weight &&
		s.Port == o.Port &&
		s.Target.Equal(o.Target)
}

func (s *Service) String() string {
	return fmt.Sprintf("%d %d %d %s", s.Priority, s.Weight, s.Port, s.Target)
}

// Text is the rdata of a TXT record: a sequence of opaque,
// length-prefixed byte strings, conventionally "key=value" pairs per RFC
// 6763 §6.
type Text struct {
	Pairs [][]byte
}

func (*Text) Type() Type { return TypeTXT }

func (t *Text) WriteRData(buf []byte, _ *wire.CompressionTable) ([]byte, error) {
	if len(t.Pairs) == 0 {
		// An empty TXT record is represented on the wire as a single
		// zero-length string, per RFC 6763 §6.1.
		return append(buf, 0), nil
	}
	for _, p := range t.Pairs {
		if len(p) > 255 {
			return nil, fmt.Errorf("record: TXT segment exceeds 255 bytes")
		}
		buf = append(buf, byte(len(p)))
		buf = append(buf, p...)
	}
	return buf, nil
}

func (t *Text) SameRData(other RData) bool {
	o, ok := other.(*Text)
	if !ok || len(t.Pairs) != len(o.Pairs) {
		return false
	}
	for i := range t.Pairs {
		if string(t.Pairs[i]) != string(o.Pairs[i]) {
			return false
		}
	}
	return true
}

func (t *Text) String() string {
	parts := make([]string, len(t.Pairs))
	for i, p := range t.Pairs {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// ParseTextRData decodes the raw rdata bytes of a TXT record into its
// length-prefixed segments.
func ParseTextRData(raw []byte) (*Text, error) {
	var pairs [][]byte
	i := 0
	for i < len(raw) {
		n := int(raw[i])
		i++
		if i+n > len(raw) {
			return nil, fmt.Errorf("record: truncated TXT segment")
		}
		pairs = append(pairs, append([]byte(nil), raw[i:i+n]...))
		i += n
	}
	return &Text{Pairs: pairs}, nil
}

// ParseServiceRData decodes the raw rdata bytes of an SRV record. msg and
// rdataOffset are the containing message and the offset at which the rdata
// begins, since the target name may itself use compression pointers back
// into the message.
func ParseServiceRData(msg []byte, rdataOffset int, rdlength int) (*Service, error) {
	if rdlength < 6 {
		return nil, fmt.Errorf("record: SRV rdata too short (%d bytes)", rdlength)
	}

	priority, err := wire.ReadUint16(msg, rdataOffset)
	if err != nil {
		return nil, err
	}
	weight, err := wire.ReadUint16(msg, rdataOffset+2)
	if err != nil {
		return nil, err
	}
	port, err := wire.ReadUint16(msg, rdataOffset+4)
	if err != nil {
		return nil, err
	}

	target, _, err := wire.DecodeName(msg, rdataOffset+6)
	if err != nil {
		return nil, err
	}

	return &Service{Priority: priority, Weight: weight, Port: port, Target: target}, nil
}

// ParsePointerRData decodes the raw rdata of a PTR record, which is just a
// compressible name.
func ParsePointerRData(msg []byte, rdataOffset int) (*Pointer, error) {
	target, _, err := wire.DecodeName(msg, rdataOffset)
	if err != nil {
		return nil, err
	}
	return &Pointer{Target: target}, nil
}
