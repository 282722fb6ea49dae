package transport

// InboundPacket is a datagram received from a Transport, still in wire
// format: the dispatcher decodes it with dnsmsg.Decode.
type InboundPacket struct {
	Transport Transport
	Source    Endpoint
	Data      []byte
}

// Close returns the packet's data buffer to the pool.
func (p *InboundPacket) Close() {
	putBuffer(p.Data)
	p.Data = nil
}

// OutboundPacket is a datagram to be sent by a Transport.
type OutboundPacket struct {
	Destination Endpoint
	Data        []byte
}

// Close returns the packet's data buffer to the pool.
func (p *OutboundPacket) Close() {
	putBuffer(p.Data)
	p.Data = nil
}

// NewOutboundPacket wraps an already-encoded frame (as produced by
// dnsmsg.Encoder.Bytes) for delivery to dest.
func NewOutboundPacket(dest Endpoint, frame []byte) *OutboundPacket {
	return &OutboundPacket{Destination: dest, Data: frame}
}
