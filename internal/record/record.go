package record

import (
	"time"

	"github.com/jmalloc/rendezvous/internal/wire"
)

// Entry is the (name, type, class, unique-flag) tuple that identifies a
// DNS record independent of its data or TTL. Two entries are Equal if
// their name compares case-insensitively equal and their type and class
// match exactly.
type Entry struct {
	Name   wire.Name
	Type   Type
	Class  Class
	Unique bool
}

// Equal reports whether e and other identify the same record.
func (e Entry) Equal(other Entry) bool {
	return e.Name.Equal(other.Name) && e.Type == other.Type && e.Class == other.Class
}

// Key returns a string suitable for use as a cache key, keyed purely on the
// lower-cased name as §4.D requires ("keyed by lowercased name").
func (e Entry) Key() string {
	return e.Name.Key()
}

// Question is a DNSQuestion: an Entry that never expires and carries no
// rdata.
type Question struct {
	Entry
}

// AnsweredBy reports whether r is a valid answer to q: the names match
// case-insensitively, the classes match, and the type matches exactly or q
// asks for TypeANY.
func (q Question) AnsweredBy(r *Record) bool {
	if !q.Name.Equal(r.Name) || q.Class != r.Class {
		return false
	}
	return q.Type == TypeANY || q.Type == r.Type
}

// Record is a DNSRecord: an Entry plus its TTL, creation time and typed
// rdata.
type Record struct {
	Entry

	// TTLSeconds is the record's TTL, in seconds, as carried on the wire.
	TTLSeconds uint32

	// Created is the instant the record was minted or last refreshed.
	// TTL is measured from this timestamp (§3).
	Created time.Time

	RData RData
}

// New constructs a record from its identifying entry, TTL and rdata.
// Created is set to the current time.
func New(e Entry, ttl time.Duration, data RData) *Record {
	return &Record{
		Entry:      e,
		TTLSeconds: uint32(ttl / time.Second),
		Created:    time.Now(),
		RData:      data,
	}
}

// TTL returns the record's TTL as a time.Duration.
func (r *Record) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// IsExpired reports whether the record has expired as of now: true iff
// now >= created + ttl*1000ms, exactly as §3 specifies.
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.Created.Add(r.TTL()))
}

// SameRData reports whether r and other carry identical rdata. Records
// with differing Entry are never considered to carry "the same" data by
// this method; callers compare Entry separately.
func (r *Record) SameRData(other *Record) bool {
	return r.RData.SameRData(other.RData)
}

// ResetTTL copies other's Created and TTLSeconds onto r. It is used when an
// arriving record has identical rdata to an existing cache entry: the
// cache "refreshes" rather than replaces it (§3, §4.D refresh).
func (r *Record) ResetTTL(other *Record) {
	r.Created = other.Created
	r.TTLSeconds = other.TTLSeconds
}

// SuppressedBy reports whether any of the known-answer records already
// lists this record with a TTL at least half of r's own TTL, per §4.B
// ("Used to omit redundant answers").
func (r *Record) SuppressedBy(knownAnswers []*Record) bool {
	for _, k := range knownAnswers {
		if k.Entry.Equal(r.Entry) && k.SameRData(r) && uint64(k.TTLSeconds)*2 >= uint64(r.TTLSeconds) {
			return true
		}
	}
	return false
}

// HandleQuery detects a conflict between an incoming record observed
// alongside a query's known-answers and a locally-owned authoritative
// record of the same name: if the incoming record's class carries the
// unique bit and its rdata differs from the owned record's, the owner must
// defend its claim (§4.B "handleQuery").
func (r *Record) HandleQuery(owned *Record) (conflict bool) {
	if owned == nil || !r.Unique || !r.Entry.Equal(owned.Entry) {
		return false
	}
	return !r.SameRData(owned)
}

// HandleResponse detects a conflict between an incoming response record
// and a locally-owned authoritative record of the same name: if the
// incoming record's class carries the unique bit and its rdata differs
// from ours, our claim has been disputed (§4.B "handleResponse").
func (r *Record) HandleResponse(owned *Record) (conflict bool) {
	if owned == nil || !r.Unique || !r.Entry.Equal(owned.Entry) {
		return false
	}
	return !r.SameRData(owned)
}
