package transport

import (
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// packetConn contains the methods common to *ipv4.PacketConn and
// *ipv6.PacketConn needed to join a multicast group.
type packetConn interface {
	JoinGroup(*net.Interface, net.Addr) error
}

// joinGroup joins the mDNS multicast group on each of the given
// interfaces, tolerating interfaces that cannot join (e.g. loopback).
func joinGroup(pc packetConn, group net.IP, ifaces []net.Interface, logger logging.Logger) ([]net.Interface, error) {
	addr := &net.UDPAddr{IP: group}

	joined := make([]net.Interface, 0, len(ifaces))

	for _, i := range ifaces {
		iface := i
		if err := pc.JoinGroup(&iface, addr); err != nil {
			logging.Log(logger, "unable to join the %q multicast group on the %q interface: %s", addr.IP, iface.Name, err)
		} else {
			joined = append(joined, iface)
		}
	}

	if len(joined) > 0 {
		return joined, nil
	}

	return nil, fmt.Errorf("unable to join the %q multicast group on any interface", addr.IP)
}
