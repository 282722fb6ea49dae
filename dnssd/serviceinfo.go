// Package dnssd is the public service-discovery facade described in §6:
// register a local service, browse a service type, resolve instance
// details, built on this module's own wire, record, cache, state and
// scheduler packages.
package dnssd

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// DefaultDomain is the domain new ServiceInfo values register into when
// Domain is left blank, per RFC 6762's link-local scope.
const DefaultDomain = "local."

// DefaultTTL is the TTL applied to a ServiceInfo's records when TTL is left
// zero.
const DefaultTTL = 120 * time.Second

// ServiceInfo is the DNSSD service-info tuple of §3: a service type,
// instance name, target host and port, plus the address, text and
// (internally) state that round out a published or resolved service.
//
// The qualified instance name is Instance + "." + Type + "." + Domain, per
// §3 ("Qualified name = instance.type").
type ServiceInfo struct {
	// Instance is the unqualified, human-readable instance name, e.g.
	// "Office Printer". It may be renamed with a " (2)" suffix by the
	// responder on conflict (§4.E).
	Instance string

	// Type is the service type, e.g. "_ipp._tcp".
	Type string

	// Domain is the registration domain. Defaults to DefaultDomain.
	Domain string

	// Subtype, if non-empty, additionally publishes a DNS-SD subtype PTR
	// (RFC 6763 §7.1), e.g. "_universal" for "_universal._sub._ipp._tcp.local.".
	Subtype string

	// Host is the target hostname carried in the SRV record, e.g.
	// "office-printer.local.". Defaults to Instance sanitized into a
	// single label under Domain.
	Host string

	// Port is the TCP/UDP port the service listens on.
	Port uint16

	// Priority and Weight are the SRV record's priority and weight.
	Weight   uint16
	Priority uint16

	// IPs are the addresses published for Host as A/AAAA records.
	IPs []net.IP

	// Text is encoded into the TXT record as "key=value" pairs per RFC
	// 6763 §6.3. A nil or empty Text publishes a single empty string, per
	// RFC 6763 §6.1.
	Text map[string]string

	// TTL is the TTL applied to every record this ServiceInfo publishes.
	// Defaults to DefaultTTL.
	TTL time.Duration
}

// ttl returns s.TTL, or DefaultTTL if it is zero.
func (s *ServiceInfo) ttl() time.Duration {
	if s.TTL == 0 {
		return DefaultTTL
	}
	return s.TTL
}

// domain returns s.Domain, or DefaultDomain if it is blank.
func (s *ServiceInfo) domain() string {
	if s.Domain == "" {
		return DefaultDomain
	}
	return strings.TrimSuffix(s.Domain, ".") + "."
}

// host returns s.Host, or a default host derived from Instance if blank.
func (s *ServiceInfo) host() string {
	if s.Host != "" {
		return s.Host
	}
	return sanitizeLabel(s.Instance) + "." + s.domain()
}

// ServiceName returns the fully-qualified service type name, e.g.
// "_ipp._tcp.local.".
func (s *ServiceInfo) ServiceName() string {
	return strings.TrimSuffix(s.Type, ".") + "." + s.domain()
}

// SubtypeName returns the fully-qualified subtype enumeration PTR name,
// e.g. "_universal._sub._ipp._tcp.local.". It panics if Subtype is blank;
// callers check Subtype != "" first.
func (s *ServiceInfo) SubtypeName() string {
	if s.Subtype == "" {
		panic("dnssd: SubtypeName called with a blank Subtype")
	}
	return strings.TrimSuffix(s.Subtype, ".") + "._sub." + s.ServiceName()
}

// InstanceName returns the fully-qualified, escaped instance name, e.g.
// "Office Printer._ipp._tcp.local.", for display and logging.
func (s *ServiceInfo) InstanceName() string {
	return escapeLabel(s.Instance) + "." + s.ServiceName()
}

// instanceWireName builds the instance's Name directly from labels rather
// than round-tripping through InstanceName's escaped string form: wire.Name
// is a label slice, so the unescaped instance label is safe to use as-is
// even when it contains a literal "." (wire.ParseName, by contrast, would
// mis-split an escaped dot; see its doc comment).
func (s *ServiceInfo) instanceWireName() wire.Name {
	return append(wire.Name{s.Instance}, wire.ParseName(s.ServiceName())...)
}

// Validate reports an error if the ServiceInfo is incomplete or targets a
// reserved domain (§6 "registrations targeting this domain are rejected
// silently" — silently with respect to the wire, not to the caller: this
// method is how Register declines to ever announce such a registration).
func (s *ServiceInfo) Validate() error {
	if s.Instance == "" {
		return fmt.Errorf("dnssd: instance name must not be empty")
	}
	if s.Type == "" {
		return fmt.Errorf("dnssd: service type must not be empty")
	}
	if s.Port == 0 {
		return fmt.Errorf("dnssd: port must not be zero")
	}
	if isReservedDomain(s.domain()) {
		return fmt.Errorf("dnssd: %q is a reserved domain and cannot be registered into", s.domain())
	}
	return nil
}

// clone returns a deep-enough copy of s for the registry to mutate
// (renaming Instance) without affecting the caller's original value.
func (s *ServiceInfo) clone() *ServiceInfo {
	c := *s
	c.IPs = append([]net.IP(nil), s.IPs...)
	if s.Text != nil {
		c.Text = make(map[string]string, len(s.Text))
		for k, v := range s.Text {
			c.Text[k] = v
		}
	}
	return &c
}

// ownedRecords returns the unique, conflict-defended records this
// ServiceInfo claims: its SRV, its TXT, and an A or AAAA record per IP
// (§4.B, §4.E). These are the records probed and announced by the
// responder state machine.
func (s *ServiceInfo) ownedRecords() []*record.Record {
	host := wire.ParseName(s.host())
	instance := s.instanceWireName()
	ttl := s.ttl()

	records := []*record.Record{
		record.New(
			record.Entry{Name: instance, Type: record.TypeSRV, Class: record.ClassIN, Unique: true},
			ttl,
			&record.Service{Priority: s.Priority, Weight: s.Weight, Port: s.Port, Target: host},
		),
		record.New(
			record.Entry{Name: instance, Type: record.TypeTXT, Class: record.ClassIN, Unique: true},
			ttl,
			&record.Text{Pairs: encodeText(s.Text)},
		),
	}

	for _, ip := range s.IPs {
		typ := record.TypeA
		if ip.To4() == nil {
			typ = record.TypeAAAA
		}
		records = append(records, record.New(
			record.Entry{Name: host, Type: typ, Class: record.ClassIN, Unique: true},
			ttl,
			&record.Address{IP: ip},
		))
	}

	return records
}

// sharedRecords returns the non-unique PTR records this ServiceInfo
// publishes: the service-type PTR, and the subtype PTR if Subtype is set.
// Shared records are announced alongside the owned ones but are never
// probed or defended, since RFC 6762 permits many owners to publish the
// same PTR (§4.B, §4.D).
func (s *ServiceInfo) sharedRecords() []*record.Record {
	ttl := s.ttl()
	instance := s.instanceWireName()

	records := []*record.Record{
		record.New(
			record.Entry{Name: wire.ParseName(s.ServiceName()), Type: record.TypePTR, Class: record.ClassIN},
			ttl,
			&record.Pointer{Target: instance},
		),
	}

	if s.Subtype != "" {
		records = append(records, record.New(
			record.Entry{Name: wire.ParseName(s.SubtypeName()), Type: record.TypePTR, Class: record.ClassIN},
			ttl,
			&record.Pointer{Target: instance},
		))
	}

	return records
}

// typeEnumerationRecord returns the "_services._dns-sd._udp.local." PTR
// (RFC 6763 §9) pointing at this ServiceInfo's service type. It is not
// among the records a Registration announces, and nothing in this package
// calls it.
func (s *ServiceInfo) typeEnumerationRecord() *record.Record {
	return record.New(
		record.Entry{Name: wire.ParseName(metaQueryName(s.domain())), Type: record.TypePTR, Class: record.ClassIN},
		s.ttl(),
		&record.Pointer{Target: wire.ParseName(s.ServiceName())},
	)
}

// encodeText turns a key/value map into RFC 6763 §6.3 "key=value"
// length-prefixed segments, sorted by key for deterministic wire output.
func encodeText(text map[string]string) [][]byte {
	if len(text) == 0 {
		return nil
	}

	keys := make([]string, 0, len(text))
	for k := range text {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, []byte(k+"="+text[k]))
	}
	return pairs
}

// decodeText reverses encodeText, tolerating segments without an "="
// (RFC 6763 §6.4 boolean attributes) by mapping them to an empty value.
func decodeText(t *record.Text) map[string]string {
	if t == nil || len(t.Pairs) == 0 {
		return nil
	}

	out := make(map[string]string, len(t.Pairs))
	for _, p := range t.Pairs {
		if len(p) == 0 {
			continue
		}
		kv := string(p)
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		} else {
			out[kv] = ""
		}
	}
	return out
}

// sanitizeLabel turns an instance name into something usable as a single
// hostname label: spaces become hyphens, and everything is lower-cased.
// This is a convenience default; callers publishing a real host should set
// Host explicitly.
func sanitizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

// escapeLabel escapes the two characters RFC 6763 §4.3 requires escaped in
// an instance name used as a DNS label component: backslash and dot.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `.`, `\.`)
	return s
}
