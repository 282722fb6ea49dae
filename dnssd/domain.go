package dnssd

import "strings"

// metaQueryName returns the well-known DNS-SD service type enumeration name
// (RFC 6763 §9) for domain, used by AddServiceTypeListener to discover every
// type in use on a domain (§6 "_services._dns-sd._udp.local.").
func metaQueryName(domain string) string {
	return "_services._dns-sd._udp." + domain
}

// isReservedDomain reports whether domain is one of the two domains §6
// reserves against registration: the in-addr.arpa/ip6.arpa reverse trees.
// "*.local." is the expected domain for ordinary registrations, not a
// reserved one; only reverse-DNS trees are rejected.
func isReservedDomain(domain string) bool {
	d := strings.ToLower(strings.TrimSuffix(domain, "."))
	return strings.HasSuffix(d, "in-addr.arpa") || strings.HasSuffix(d, "ip6.arpa")
}
