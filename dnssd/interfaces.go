package dnssd

import (
	"errors"
	"net"
)

// multicastInterfaces returns every "up" interface that supports
// multicast. Host-OS interface discovery is named in spec §1 as an
// external collaborator the core treats as an interface only; this is
// that collaborator's default implementation, overridable via
// UseInterfaces.
func multicastInterfaces() ([]net.Interface, error) {
	candidates, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	const flags = net.FlagUp | net.FlagMulticast

	var matches []net.Interface
	for _, i := range candidates {
		if i.Flags&flags == flags {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		return nil, errors.New("dnssd: no multicast-capable interfaces available")
	}

	return matches, nil
}
