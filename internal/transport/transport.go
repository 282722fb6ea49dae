// Package transport implements the multicast UDP sockets mDNS runs over:
// one for IPv4 (224.0.0.251:5353) and one for IPv6 (ff02::fb:5353), joined
// on every usable interface.
package transport

import "net"

// Port is the mDNS port number.
const Port = 5353

// Transport is a single-protocol (IPv4 or IPv6) multicast UDP socket.
type Transport interface {
	// Listen joins the mDNS multicast group on the given interfaces.
	Listen(ifaces []net.Interface) error

	// Read reads the next datagram from the transport.
	Read() (*InboundPacket, error)

	// Write sends a datagram via the transport.
	Write(*OutboundPacket) error

	// Group returns the multicast group address for this transport.
	Group() *net.UDPAddr

	// Close closes the transport, unblocking any call to Read.
	Close() error
}

// SendMulticast packs the frame for multicast delivery on the same
// interface a related inbound packet arrived on.
func SendMulticast(t Transport, ifaceIndex int, frame []byte) error {
	out := NewOutboundPacket(Endpoint{InterfaceIndex: ifaceIndex, Address: t.Group()}, frame)
	defer out.Close()
	return t.Write(out)
}

// SendUnicast packs the frame for unicast delivery back to the peer that
// sent an inbound packet.
func SendUnicast(t Transport, to Endpoint, frame []byte) error {
	out := NewOutboundPacket(to, frame)
	defer out.Close()
	return t.Write(out)
}
