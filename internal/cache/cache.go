// Package cache implements the record cache: a keyed multimap of
// record.Record, reaped on TTL expiry with serviceAdded/serviceRemoved
// notifications split out from the reap itself.
package cache

import (
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"

	"github.com/jmalloc/rendezvous/internal/record"
)

// EventKind distinguishes the two notifications a Cache emits.
type EventKind int

const (
	// ServiceAdded is emitted whenever Put inserts a PTR or SRV record. Put
	// does not check whether an equal record is already held.
	ServiceAdded EventKind = iota

	// ServiceRemoved is emitted when Reap evicts an expired PTR or SRV
	// record, or when Remove is called directly with one.
	ServiceRemoved
)

// Event describes a single addition or removal of a PTR or SRV record, the
// two types a dnssd listener cares about.
type Event struct {
	Kind   EventKind
	Record *record.Record
}

// Listener receives cache events. Implementations must tolerate concurrent
// calls and must not block for long, since Notify is called synchronously
// from the goroutine driving Put/Reap/Remove.
type Listener func(Event)

// Cache is a keyed multimap of record.Record, keyed by the lowercased
// owning name. It stores an unordered bag of entries per key and performs
// no deduplication on Put; callers that want upsert semantics first call
// Get.
//
// A Cache is safe for concurrent use.
type Cache struct {
	Logger logging.Logger

	mu        sync.RWMutex
	byKey     map[string][]*record.Record
	listeners []Listener
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byKey: map[string][]*record.Record{},
	}
}

// AddListener registers l to be invoked for every subsequent ServiceAdded
// and ServiceRemoved event. Listeners are never removed individually; the
// whole cache is expected to be torn down with its owner.
func (c *Cache) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, l)
}

// Put inserts r into the cache. It performs no deduplication; callers that
// want upsert-or-refresh semantics call Get first and call Refresh instead
// when an equal entry already exists.
func (c *Cache) Put(r *record.Record) {
	c.mu.Lock()
	c.byKey[r.Key()] = append(c.byKey[r.Key()], r)
	c.mu.Unlock()

	if r.Type == record.TypePTR || r.Type == record.TypeSRV {
		c.notify(Event{Kind: ServiceAdded, Record: r})
	}
}

// Get returns the existing cache entry equal to r by Entry equality, or nil
// if there is none.
func (c *Cache) Get(r *record.Record) *record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, existing := range c.byKey[r.Key()] {
		if existing.Entry.Equal(r.Entry) {
			return existing
		}
	}
	return nil
}

// GetByName returns every entry stored under name, regardless of type.
func (c *Cache) GetByName(name string) []*record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := c.byKey[name]
	out := make([]*record.Record, len(entries))
	copy(out, entries)
	return out
}

// Remove deletes the exact entry r from the cache, identified by pointer
// identity. It is a no-op if r is not present.
func (c *Cache) Remove(r *record.Record) {
	c.mu.Lock()
	removed := false
	key := r.Key()
	entries := c.byKey[key]
	for i, existing := range entries {
		if existing == r {
			entries = append(entries[:i], entries[i+1:]...)
			if len(entries) == 0 {
				delete(c.byKey, key)
			} else {
				c.byKey[key] = entries
			}
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed && (r.Type == record.TypePTR || r.Type == record.TypeSRV) {
		c.notify(Event{Kind: ServiceRemoved, Record: r})
	}
}

// Refresh copies arriving's TTL and creation time onto existing, the
// standard response to an incoming record whose rdata matches one already
// cached (§4.D "refresh").
func (c *Cache) Refresh(existing, arriving *record.Record) {
	c.mu.Lock()
	existing.ResetTTL(arriving)
	c.mu.Unlock()
}

// Reap removes every entry whose TTL has expired as of now, emitting a
// ServiceRemoved event for each evicted PTR or SRV record. Reaping and
// notification are deliberately split: the removal itself holds the lock
// only long enough to collect the expired entries, and events fire
// afterwards without the lock held.
func (c *Cache) Reap(now time.Time) {
	var expired []*record.Record

	c.mu.Lock()
	for key, entries := range c.byKey {
		var kept []*record.Record
		for _, r := range entries {
			if r.IsExpired(now) {
				expired = append(expired, r)
			} else {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(c.byKey, key)
		} else {
			c.byKey[key] = kept
		}
	}
	c.mu.Unlock()

	for _, r := range expired {
		logging.DebugString(c.Logger, "cache: reaped expired record "+r.Key())
		if r.Type == record.TypePTR || r.Type == record.TypeSRV {
			c.notify(Event{Kind: ServiceRemoved, Record: r})
		}
	}
}

func (c *Cache) notify(ev Event) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}
