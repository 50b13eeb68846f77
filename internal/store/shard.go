package store

import "sync"

// shard is one independently-locked partition of a database's keyspace.
// Lock ordering across shards is always by ascending shard index (see
// Database.multiKeyLock), so no multi-key command can deadlock against
// another regardless of key order, generalizing the reference shard's
// exclusive-ownership model to cooperate across several shards per
// command instead of one shard per node.
type shard struct {
	mu      sync.Mutex
	index   int
	data    map[string]*Entry
	expires *expiryTracker
}

func newShard(index int) *shard {
	return &shard{
		index:   index,
		data:    make(map[string]*Entry),
		expires: newExpiryTracker(),
	}
}

// getLocked returns key's entry, evicting it first if it has lazily
// expired as of nowMs. Caller must hold s.mu.
func (s *shard) getLocked(key string, nowMs int64) (*Entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.ExpiredAt(nowMs) {
		s.deleteLocked(key)
		return nil, false
	}
	return e, true
}

func (s *shard) setLocked(key string, e *Entry) {
	if old, ok := s.data[key]; ok {
		e.ModCount = old.ModCount + 1
	} else {
		e.ModCount = 1
	}
	s.data[key] = e
	if e.HasExpiry() {
		s.expires.Set(key, e.Deadline)
	} else {
		s.expires.Clear(key)
	}
}

func (s *shard) deleteLocked(key string) bool {
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	s.expires.Clear(key)
	return true
}

// touchLocked bumps key's modification counter without changing its
// value, used by in-place mutators (e.g. LPUSH) that reuse the same
// *Entry.Data instead of replacing it wholesale.
func (s *shard) touchLocked(key string) {
	if e, ok := s.data[key]; ok {
		e.ModCount++
	}
}

func (s *shard) len() int { return len(s.data) }
