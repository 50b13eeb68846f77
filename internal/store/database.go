package store

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// MutationKind classifies a Database mutation for hook subscribers
// (blocking coordinator, AOF writer, replication backlog, watch
// invalidation) so each can decide independently whether it cares.
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationDelete
	MutationExpire
	MutationTouch
)

// Mutation describes one committed change to a database, emitted after
// the owning shard's lock is released.
type Mutation struct {
	DB   int
	Key  string
	Kind MutationKind
}

// Hook receives every committed mutation. Subscribers must not block:
// the blocking coordinator wakes waiters, the AOF writer enqueues the
// triggering command separately (Database itself does not know command
// syntax), and replication appends to its backlog.
type Hook func(Mutation)

// Database is one numbered keyspace (SELECT target) split across a
// fixed number of shards, each hashed into by xxhash of the key, which
// replaces the reference shard's FNV-1a ownership hash with a faster,
// better-distributed function already proven out elsewhere in this
// dependency pack.
type Database struct {
	index  int
	shards []*shard
	hooks  []Hook
	now    func() int64
}

func newDatabase(index, shardCount int, now func() int64) *Database {
	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = newShard(i)
	}
	return &Database{index: index, shards: shards, now: now}
}

// AddHook registers a mutation subscriber.
func (d *Database) AddHook(h Hook) { d.hooks = append(d.hooks, h) }

func (d *Database) emit(key string, kind MutationKind) {
	m := Mutation{DB: d.index, Key: key, Kind: kind}
	for _, h := range d.hooks {
		h(m)
	}
}

// EmitSet fires the mutation hooks for key as a MutationSet event, for
// callers that wrote a new Entry via SetLocked inside their own
// WithKeysLocked scope and must defer hook notification until after the
// shard lock is released (hooks may themselves need that same shard).
func (d *Database) EmitSet(key string) { d.emit(key, MutationSet) }

// EmitDelete is EmitSet for a key removed via DeleteLocked.
func (d *Database) EmitDelete(key string) { d.emit(key, MutationDelete) }

// EmitTouch is EmitSet for a key whose Entry.Data was mutated in place
// (e.g. a list push) rather than replaced.
func (d *Database) EmitTouch(key string) { d.emit(key, MutationTouch) }

func (d *Database) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return d.shards[h%uint64(len(d.shards))]
}

// ShardCount returns the number of shards backing this database.
func (d *Database) ShardCount() int { return len(d.shards) }

// Get returns key's entry if present and unexpired.
func (d *Database) Get(key string) (*Entry, bool) {
	s := d.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key, d.now())
}

// Set stores entry under key, replacing any prior value regardless of
// kind (callers enforce WRONGTYPE before calling Set where that
// matters, e.g. list push on an existing string).
func (d *Database) Set(key string, e *Entry) {
	s := d.shardFor(key)
	s.mu.Lock()
	s.setLocked(key, e)
	s.mu.Unlock()
	d.emit(key, MutationSet)
}

// Delete removes key, returning whether it existed.
func (d *Database) Delete(key string) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	existed := s.deleteLocked(key)
	s.mu.Unlock()
	if existed {
		d.emit(key, MutationDelete)
	}
	return existed
}

// Touch bumps key's modification counter in place (used after a mutator
// changes an existing Entry.Data without replacing the Entry), and
// notifies hooks.
func (d *Database) Touch(key string) {
	s := d.shardFor(key)
	s.mu.Lock()
	s.touchLocked(key)
	s.mu.Unlock()
	d.emit(key, MutationTouch)
}

// Expire sets key's deadline to deadlineMs (unix millis); deadlineMs<=0
// clears any expiration. Returns false if key does not exist.
func (d *Database) Expire(key string, deadlineMs int64) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	e, ok := s.getLocked(key, d.now())
	if !ok {
		s.mu.Unlock()
		return false
	}
	e.Deadline = deadlineMs
	if deadlineMs > 0 {
		s.expires.Set(key, deadlineMs)
	} else {
		s.expires.Clear(key)
	}
	s.mu.Unlock()
	d.emit(key, MutationExpire)
	return true
}

// ModCount returns key's current modification counter, used by WATCH to
// snapshot state at watch-time and compare at EXEC-time.
func (d *Database) ModCount(key string) (uint64, bool) {
	e, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	return e.ModCount, true
}

// Exists reports whether key is present and unexpired.
func (d *Database) Exists(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Len returns the total number of live keys across all shards (an O(S)
// scan, used by DBSIZE, never by the hot path).
func (d *Database) Len() int {
	total := 0
	now := d.now()
	for _, s := range d.shards {
		s.mu.Lock()
		for k, e := range s.data {
			if !e.ExpiredAt(now) {
				total++
			} else {
				s.deleteLocked(k)
			}
		}
		s.mu.Unlock()
	}
	return total
}

// Keys returns every live key matching pattern (a glob per §4.3.1's
// KEYS contract), collected under each shard's lock in turn.
func (d *Database) Keys(match func(string) bool) []string {
	var out []string
	now := d.now()
	for _, s := range d.shards {
		s.mu.Lock()
		for k, e := range s.data {
			if e.ExpiredAt(now) {
				s.deleteLocked(k)
				continue
			}
			if match == nil || match(k) {
				out = append(out, k)
			}
		}
		s.mu.Unlock()
	}
	return out
}

// Flush removes every key.
func (d *Database) Flush() {
	for i, s := range d.shards {
		s.mu.Lock()
		s.data = make(map[string]*Entry)
		s.expires = newExpiryTracker()
		s.mu.Unlock()
		_ = i
	}
}

// multiKeyLock locks the distinct shards touched by keys in ascending
// shard-index order (the invariant that makes concurrent multi-key
// commands deadlock-free, §4.2), returning an unlock function.
func (d *Database) multiKeyLock(keys []string) func() {
	seen := make(map[int]*shard, len(keys))
	for _, k := range keys {
		s := d.shardFor(k)
		seen[s.index] = s
	}
	ordered := make([]*shard, 0, len(seen))
	for _, s := range seen {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })
	for _, s := range ordered {
		s.mu.Lock()
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].mu.Unlock()
		}
	}
}

// WithKeysLocked runs fn with every shard touched by keys locked in
// deadlock-free order, for commands that must read or modify several
// keys atomically (MGET, MSET, SDIFFSTORE, RENAME, and friends).
func (d *Database) WithKeysLocked(keys []string, fn func()) {
	unlock := d.multiKeyLock(keys)
	defer unlock()
	fn()
}

// GetLocked is Get for use inside a WithKeysLocked callback (skips
// re-acquiring the shard's lock).
func (d *Database) GetLocked(key string) (*Entry, bool) {
	s := d.shardFor(key)
	return s.getLocked(key, d.now())
}

// SetLocked is Set for use inside a WithKeysLocked callback.
func (d *Database) SetLocked(key string, e *Entry) {
	s := d.shardFor(key)
	s.setLocked(key, e)
}

// DeleteLocked is Delete for use inside a WithKeysLocked callback.
func (d *Database) DeleteLocked(key string) bool {
	s := d.shardFor(key)
	return s.deleteLocked(key)
}

// sweepExpired actively evicts up to budget expired keys per shard,
// emitting a MutationDelete per key for AOF/replication propagation.
// This is the "active expiration cycle" invoked periodically by the
// server's cron schedule instead of waiting for lazy access.
func (d *Database) sweepExpired(budget int) int {
	now := d.now()
	swept := 0
	for _, s := range d.shards {
		s.mu.Lock()
		expired := s.expires.PopExpired(now)
		var deleted []string
		for i, k := range expired {
			if i >= budget {
				break
			}
			s.deleteLocked(k)
			deleted = append(deleted, k)
			swept++
		}
		s.mu.Unlock()
		for _, k := range deleted {
			d.emit(k, MutationDelete)
		}
	}
	return swept
}

func unixMilli() int64 { return time.Now().UnixMilli() }
