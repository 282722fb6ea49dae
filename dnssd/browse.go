package dnssd

import (
	"context"
	"strings"
	"time"

	"github.com/jmalloc/rendezvous/internal/clock"
	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/scheduler"
	"github.com/jmalloc/rendezvous/internal/wire"
)

// ServiceTypeListener receives every service type discovered on a domain
// via DNS-SD service type enumeration (RFC 6763 §9).
type ServiceTypeListener interface {
	ServiceTypeAdded(serviceType string)
}

// ServiceListener receives instances of a single service type as they
// appear and disappear.
type ServiceListener interface {
	ServiceAdded(info *ServiceInfo)
	ServiceRemoved(info *ServiceInfo)
}

// AddServiceTypeListener subscribes l to every service type advertised on
// domain (DefaultDomain if blank), delivering each type once as it is
// first discovered, then live thereafter (§6 "addServiceTypeListener").
func (r *Responder) AddServiceTypeListener(ctx context.Context, domain string, l ServiceTypeListener) {
	if domain == "" {
		domain = DefaultDomain
	}
	name := wire.ParseName(metaQueryName(domain))

	tl := &typeListener{name: name, cb: l, seen: map[string]bool{}}
	for _, rec := range r.cache.GetByName(name.Key()) {
		tl.Notify(rec, false)
	}
	r.disp.AddListener(tl)

	resolver := &scheduler.TypeResolver{
		Send:      func(ctx context.Context) error { return r.sendBrowseQuery(name) },
		Satisfied: func() bool { return false },
	}
	r.sched.Schedule(ctx, resolver, clock.RandDuration(0))
}

type typeListener struct {
	name wire.Name
	cb   ServiceTypeListener
	seen map[string]bool
}

func (l *typeListener) Question() record.Question {
	return record.Question{Entry: record.Entry{Name: l.name, Type: record.TypePTR, Class: record.ClassIN}}
}

func (l *typeListener) Notify(r *record.Record, removed bool) {
	if removed {
		return
	}
	ptr, ok := r.RData.(*record.Pointer)
	if !ok {
		return
	}
	name := ptr.Target.Key()
	if l.seen[name] {
		return
	}
	l.seen[name] = true
	l.cb.ServiceTypeAdded(ptr.Target.String())
}

// AddServiceListener subscribes l to instances of serviceType on domain
// (DefaultDomain if blank), delivering already-cached instances
// immediately and live updates thereafter (§6 "addServiceListener(type)").
func (r *Responder) AddServiceListener(ctx context.Context, serviceType, domain string, l ServiceListener) {
	if domain == "" {
		domain = DefaultDomain
	}
	name := wire.ParseName(strings.TrimSuffix(serviceType, ".") + "." + domain)

	sl := &serviceListener{serviceType: serviceType, domain: domain, name: name, cb: l}
	for _, rec := range r.cache.GetByName(name.Key()) {
		sl.Notify(rec, false)
	}
	r.disp.AddListener(sl)

	resolver := &scheduler.ServiceResolver{
		Send:      func(ctx context.Context) error { return r.sendBrowseQuery(name) },
		Satisfied: func() bool { return false },
	}
	r.sched.Schedule(ctx, resolver, clock.RandDuration(0))
}

type serviceListener struct {
	serviceType string
	domain      string
	name        wire.Name
	cb          ServiceListener
}

func (l *serviceListener) Question() record.Question {
	return record.Question{Entry: record.Entry{Name: l.name, Type: record.TypePTR, Class: record.ClassIN}}
}

func (l *serviceListener) Notify(r *record.Record, removed bool) {
	ptr, ok := r.RData.(*record.Pointer)
	if !ok || len(ptr.Target) == 0 {
		return
	}

	info := &ServiceInfo{
		Instance: ptr.Target[0],
		Type:     l.serviceType,
		Domain:   l.domain,
	}

	if removed {
		l.cb.ServiceRemoved(info)
	} else {
		l.cb.ServiceAdded(info)
	}
}

// DefaultResolveTimeout bounds GetServiceInfo when ctx carries no deadline
// of its own, per §5 "every resolver task is bounded by a caller-supplied
// timeout (default 3000 ms)".
const DefaultResolveTimeout = 3000 * time.Millisecond

// GetServiceInfo resolves the SRV and TXT records for a single instance of
// serviceType on domain (DefaultDomain if blank), blocking until both are
// cached or ctx is done, or — if ctx carries no deadline of its own — until
// DefaultResolveTimeout elapses (§6 "getServiceInfo(type, name,
// timeoutMs)", §5 "default 3000 ms"). No address query is sent: the
// result's IPs hold only the A/AAAA records already cached for the SRV
// target.
func (r *Responder) GetServiceInfo(ctx context.Context, serviceType, instance, domain string) (*ServiceInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultResolveTimeout)
		defer cancel()
	}

	if domain == "" {
		domain = DefaultDomain
	}

	serviceName := strings.TrimSuffix(serviceType, ".") + "." + domain
	qualified := append(wire.Name{instance}, wire.ParseName(serviceName)...)

	srvEntry := record.Entry{Name: qualified, Type: record.TypeSRV, Class: record.ClassIN}
	txtEntry := record.Entry{Name: qualified, Type: record.TypeTXT, Class: record.ClassIN}

	satisfied := func() bool {
		return r.cache.Get(&record.Record{Entry: srvEntry}) != nil &&
			r.cache.Get(&record.Record{Entry: txtEntry}) != nil
	}

	resolver := &scheduler.ServiceInfoResolver{
		Send:      func(ctx context.Context) error { return r.sendResolveQuery(qualified) },
		Satisfied: satisfied,
	}
	r.sched.Schedule(ctx, resolver, 0)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if satisfied() {
			return r.buildServiceInfo(serviceType, instance, domain, qualified), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Responder) buildServiceInfo(serviceType, instance, domain string, qualified wire.Name) *ServiceInfo {
	info := &ServiceInfo{Instance: instance, Type: serviceType, Domain: domain}

	srv := r.cache.Get(&record.Record{Entry: record.Entry{Name: qualified, Type: record.TypeSRV, Class: record.ClassIN}})
	if srv != nil {
		if s, ok := srv.RData.(*record.Service); ok {
			info.Host = s.Target.String()
			info.Port = s.Port
			info.Priority = s.Priority
			info.Weight = s.Weight

			for _, rec := range r.cache.GetByName(s.Target.Key()) {
				if addr, ok := rec.RData.(*record.Address); ok {
					info.IPs = append(info.IPs, addr.IP)
				}
			}
		}
	}

	txt := r.cache.Get(&record.Record{Entry: record.Entry{Name: qualified, Type: record.TypeTXT, Class: record.ClassIN}})
	if txt != nil {
		if t, ok := txt.RData.(*record.Text); ok {
			info.Text = decodeText(t)
		}
	}

	return info
}

// List returns every instance of serviceType currently advertised on
// domain (DefaultDomain if blank), after first allowing a 200ms grace
// window for responses to a fresh browse query to arrive (§6
// "list(type) — browses briefly, then returns a snapshot").
func (r *Responder) List(ctx context.Context, serviceType, domain string) ([]*ServiceInfo, error) {
	if domain == "" {
		domain = DefaultDomain
	}
	name := wire.ParseName(strings.TrimSuffix(serviceType, ".") + "." + domain)

	if err := r.sendBrowseQuery(name); err != nil {
		return nil, err
	}
	if err := clock.Sleep(ctx, 200*time.Millisecond); err != nil {
		return nil, err
	}

	var out []*ServiceInfo
	for _, rec := range r.cache.GetByName(name.Key()) {
		ptr, ok := rec.RData.(*record.Pointer)
		if !ok || len(ptr.Target) == 0 {
			continue
		}
		info, err := r.GetServiceInfo(ctx, serviceType, ptr.Target[0], domain)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}
