package transport

import "net"

// Endpoint is the origin or destination of a datagram.
type Endpoint struct {
	InterfaceIndex int
	Address        *net.UDPAddr
}

// IsLegacy reports whether this endpoint belongs to a "legacy" querier: one
// that does not implement the full mDNS specification and expects a
// conventional unicast response (RFC 6762 §6.7 — a query not sent from
// port 5353).
func (ep Endpoint) IsLegacy() bool {
	return ep.Address.Port != Port
}
