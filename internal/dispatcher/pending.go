package dispatcher

import (
	"sync"

	"github.com/jmalloc/rendezvous/internal/dnsmsg"
)

// pendingQueries tracks, per peer address, a truncated query awaiting its
// continuation (§4.G "Coalescing": subsequent same-peer queries extend a
// pending one rather than each spawning a responder).
type pendingQueries struct {
	mu     sync.Mutex
	byPeer map[string]*dnsmsg.Message
}

func newPendingQueries() *pendingQueries {
	return &pendingQueries{byPeer: map[string]*dnsmsg.Message{}}
}

// extend records msg as (or appends it to) the pending continuation for
// peer. msg itself must be truncated, since only truncated queries are
// ever stored.
func (p *pendingQueries) extend(peer string, msg *dnsmsg.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.byPeer[peer]; ok {
		existing.Append(msg)
		return
	}
	p.byPeer[peer] = msg
}

// takeAndAppend removes and returns any pending continuation for peer,
// merged with the now-complete msg. If there was no pending continuation,
// msg is returned unchanged.
func (p *pendingQueries) takeAndAppend(peer string, msg *dnsmsg.Message) *dnsmsg.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.byPeer[peer]
	if !ok {
		return msg
	}
	delete(p.byPeer, peer)

	existing.Append(msg)
	return existing
}
