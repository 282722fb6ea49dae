package dispatcher_test

import (
	"errors"
	"net"
	"sync"

	"github.com/jmalloc/rendezvous/internal/record"
	"github.com/jmalloc/rendezvous/internal/transport"
)

// fakeTransport is an in-memory transport.Transport used to drive the
// dispatcher's receive loop deterministically in tests.
type fakeTransport struct {
	inbound chan *transport.InboundPacket
	outbox  chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan *transport.InboundPacket, 8),
		outbox:  make(chan []byte, 8),
	}
}

func (t *fakeTransport) Listen([]net.Interface) error { return nil }

func (t *fakeTransport) Read() (*transport.InboundPacket, error) {
	p, ok := <-t.inbound
	if !ok {
		return nil, errors.New("fakeTransport: closed")
	}
	return p, nil
}

func (t *fakeTransport) Write(p *transport.OutboundPacket) error {
	t.outbox <- p.Data
	return nil
}

func (t *fakeTransport) Group() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("224.0.0.251"), Port: transport.Port}
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.inbound)
	}
	return nil
}

// deliver injects a datagram as though it arrived from peer.
func (t *fakeTransport) deliver(peer *net.UDPAddr, frame []byte) {
	t.inbound <- &transport.InboundPacket{
		Transport: t,
		Source:    transport.Endpoint{InterfaceIndex: 1, Address: peer},
		Data:      frame,
	}
}

// fakeSource is a RecordSource backed by a fixed answer set and a conflict
// observer.
type fakeSource struct {
	mu        sync.Mutex
	answers   []*record.Record
	owned     map[string]*record.Record
	conflicts []*record.Record
}

func newFakeSource() *fakeSource {
	return &fakeSource{owned: map[string]*record.Record{}}
}

func (s *fakeSource) AnswersFor(q record.Question) []*record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*record.Record
	for _, r := range s.answers {
		if q.AnsweredBy(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeSource) Owned(entry record.Entry) *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned[entry.Key()+entry.Type.String()]
}

func (s *fakeSource) HandleConflict(owned *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = append(s.conflicts, owned)
}

func (s *fakeSource) addOwned(r *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned[r.Entry.Key()+r.Entry.Type.String()] = r
}

func (s *fakeSource) conflictCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conflicts)
}

// fakeListener records every notification delivered for its question.
type fakeListener struct {
	q       record.Question
	mu      sync.Mutex
	records []*record.Record
}

func (l *fakeListener) Question() record.Question { return l.q }

func (l *fakeListener) Notify(r *record.Record, removed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

func (l *fakeListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
