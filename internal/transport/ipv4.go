package transport

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	ipvx "golang.org/x/net/ipv4"
)

var (
	// IPv4Group is the multicast group used for mDNS over IPv4 (RFC 6762
	// §3).
	IPv4Group = net.ParseIP("224.0.0.251")

	// IPv4GroupAddress is the address mDNS datagrams are sent to over
	// IPv4.
	IPv4GroupAddress = &net.UDPAddr{IP: IPv4Group, Port: Port}

	// IPv4ListenAddress is the address the socket binds to; it
	// deliberately isn't the group address, so interface membership can
	// be controlled explicitly via joinGroup.
	IPv4ListenAddress = &net.UDPAddr{IP: net.ParseIP("224.0.0.0"), Port: Port}
)

// IPv4Transport is the mDNS multicast transport over IPv4.
type IPv4Transport struct {
	Logger logging.Logger

	pc *ipvx.PacketConn
}

// Listen joins the mDNS multicast group on the given interfaces.
func (t *IPv4Transport) Listen(ifaces []net.Interface) error {
	addr := IPv4ListenAddress
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		logListenError(t.Logger, addr, err)
		return err
	}

	t.pc = ipvx.NewPacketConn(conn)
	t.pc.SetControlMessage(ipvx.FlagInterface, true)

	joined, err := joinGroup(t.pc, IPv4Group, ifaces, t.Logger)
	if err != nil {
		t.pc.Close()
		return err
	}

	logListening(t.Logger, addr, joined)
	return nil
}

// Read reads the next datagram from the transport.
func (t *IPv4Transport) Read() (*InboundPacket, error) {
	buf := getBuffer()

	n, cm, src, err := t.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		logReadError(t.Logger, t.Group(), err)
		return nil, err
	}

	return &InboundPacket{
		Transport: t,
		Source:    Endpoint{InterfaceIndex: cm.IfIndex, Address: src.(*net.UDPAddr)},
		Data:      buf[:n],
	}, nil
}

// Write sends a datagram via the transport.
func (t *IPv4Transport) Write(p *OutboundPacket) error {
	_, err := t.pc.WriteTo(
		p.Data,
		&ipvx.ControlMessage{IfIndex: p.Destination.InterfaceIndex},
		p.Destination.Address,
	)
	if err != nil {
		logWriteError(t.Logger, p.Destination.Address, t.Group(), err)
	}
	return err
}

// Group returns the multicast group address for this transport.
func (t *IPv4Transport) Group() *net.UDPAddr {
	return IPv4GroupAddress
}

// Close closes the transport, unblocking any call to Read.
func (t *IPv4Transport) Close() error {
	return t.pc.Close()
}
