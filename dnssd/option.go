package dnssd

import (
	"net"

	"github.com/dogmatiq/dodeca/logging"
)

// Option configures a Responder constructed by New.
type Option func(*Responder) error

// UseLogger sets the logger the responder and everything it owns
// (transports, dispatcher, scheduler) report anomalies through.
func UseLogger(l logging.Logger) Option {
	return func(r *Responder) error {
		r.logger = l
		return nil
	}
}

// UseInterfaces restricts the responder to the given network interfaces
// instead of every multicast-capable "up" interface (the default, chosen
// the way the host OS would enumerate them).
func UseInterfaces(ifaces ...net.Interface) Option {
	return func(r *Responder) error {
		r.ifaces = ifaces
		return nil
	}
}

// DisableIPv4 prevents the responder from listening for or sending mDNS
// traffic over IPv4.
func DisableIPv4(r *Responder) error {
	r.disableIPv4 = true
	return nil
}

// DisableIPv6 prevents the responder from listening for or sending mDNS
// traffic over IPv6. IPv6 carries AAAA records through the cache like any
// other record type, per spec §1's non-goal scoping; it is not otherwise
// treated specially.
func DisableIPv6(r *Responder) error {
	r.disableIPv6 = true
	return nil
}
