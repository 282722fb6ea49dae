package transport

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
	ipvx "golang.org/x/net/ipv6"
)

var (
	// IPv6Group is the multicast group used for mDNS over IPv6 (RFC 6762
	// §3).
	IPv6Group = net.ParseIP("ff02::fb")

	// IPv6GroupAddress is the address mDNS datagrams are sent to over
	// IPv6.
	IPv6GroupAddress = &net.UDPAddr{IP: IPv6Group, Port: Port}

	// IPv6ListenAddress is the address the socket binds to.
	IPv6ListenAddress = &net.UDPAddr{IP: net.ParseIP("ff02::"), Port: Port}
)

// IPv6Transport is the mDNS multicast transport over IPv6.
type IPv6Transport struct {
	Logger logging.Logger

	pc *ipvx.PacketConn
}

// Listen joins the mDNS multicast group on the given interfaces.
func (t *IPv6Transport) Listen(ifaces []net.Interface) error {
	addr := IPv6ListenAddress
	conn, err := net.ListenUDP("udp6", addr)
	if err != nil {
		logListenError(t.Logger, addr, err)
		return err
	}

	t.pc = ipvx.NewPacketConn(conn)
	if err := t.pc.SetControlMessage(ipvx.FlagInterface, true); err != nil {
		t.pc.Close()
		logListenError(t.Logger, addr, err)
		return err
	}

	joined, err := joinGroup(t.pc, IPv6Group, ifaces, t.Logger)
	if err != nil {
		t.pc.Close()
		return err
	}

	logListening(t.Logger, addr, joined)
	return nil
}

// Read reads the next datagram from the transport.
func (t *IPv6Transport) Read() (*InboundPacket, error) {
	buf := getBuffer()

	n, cm, src, err := t.pc.ReadFrom(buf)
	if err != nil {
		putBuffer(buf)
		logReadError(t.Logger, t.Group(), err)
		return nil, err
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}

	return &InboundPacket{
		Transport: t,
		Source:    Endpoint{InterfaceIndex: ifIndex, Address: src.(*net.UDPAddr)},
		Data:      buf[:n],
	}, nil
}

// Write sends a datagram via the transport.
func (t *IPv6Transport) Write(p *OutboundPacket) error {
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
func (t *IPv6Transport) Group() *net.UDPAddr {
	return IPv6GroupAddress
}

// Close closes the transport, unblocking any call to Read.
func (t *IPv6Transport) Close() error {
	return t.pc.Close()
}
