// Package store implements the sharded in-memory keyspace: N logical
// databases, each split into S independently-locked shards, holding
// typed entries with optional expiration (§3, §4.2). It is grounded on
// the reference topology's shard ownership model (internal/shard) and
// its Store access-pattern contract (internal/storage), generalized
// from a single untyped byte value to the six typed kinds in
// internal/values.
package store

import "github.com/dreamware/torudis/internal/values"

// Entry is one key's stored value together with its bookkeeping: the
// type tag, an optional expiration deadline, and a monotonically
// increasing modification counter used by the transaction engine's
// WATCH mechanism to detect concurrent writes (§4.6).
type Entry struct {
	Kind     values.Kind
	Data     interface{}
	Deadline int64 // unix milliseconds; 0 means no expiration
	ModCount uint64
}

// HasExpiry reports whether e carries an expiration deadline.
func (e *Entry) HasExpiry() bool { return e.Deadline != 0 }

// ExpiredAt reports whether e's deadline has passed by nowMs.
func (e *Entry) ExpiredAt(nowMs int64) bool {
	return e.Deadline != 0 && e.Deadline <= nowMs
}

// NewEntry wraps data under kind with no expiration set.
func NewEntry(kind values.Kind, data interface{}) *Entry {
	return &Entry{Kind: kind, Data: data}
}
