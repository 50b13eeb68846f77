package store

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/robfig/cron/v3"

	"github.com/dreamware/torudis/internal/log"
)

// Store is the whole keyspace: a fixed number of numbered Databases,
// each independently sharded, plus the process-wide maxmemory eviction
// tracker and the periodic active-expiration sweep (§4.2, §4.9's
// maxmemory interaction). It generalizes the reference topology's
// single flat Store interface into the spec's two-dimensional
// database/shard layout while keeping the same "one authoritative
// owner per key" guarantee.
type Store struct {
	databases []*Database
	now       func() int64

	memMu      sync.Mutex
	maxBytes   int64
	usedBytes  int64
	lru        *simplelru.LRU[lruKey, struct{}]
	evictHooks []func(db int, key string)

	sweeper *cron.Cron
}

type lruKey struct {
	db  int
	key string
}

// Options configures a new Store.
type Options struct {
	Databases      int
	Shards         int
	MaxMemoryBytes int64
	// Now overrides the wall clock, for deterministic tests.
	Now func() int64
}

// New builds a Store with opts.Databases independent keyspaces, each
// split into opts.Shards shards.
func New(opts Options) *Store {
	if opts.Databases <= 0 {
		opts.Databases = 16
	}
	if opts.Shards <= 0 {
		opts.Shards = 32
	}
	now := opts.Now
	if now == nil {
		now = unixMilli
	}

	s := &Store{now: now, maxBytes: opts.MaxMemoryBytes}
	s.databases = make([]*Database, opts.Databases)
	for i := range s.databases {
		s.databases[i] = newDatabase(i, opts.Shards, now)
	}

	if opts.MaxMemoryBytes > 0 {
		// The LRU capacity is nominal (bounded by estimated key count,
		// not bytes); OnEvict fires the approximate-LRU eviction the
		// maxmemory policy actually needs, since simplelru tracks
		// recency, not size.
		l, _ := simplelru.NewLRU[lruKey, struct{}](1<<20, func(k lruKey, _ struct{}) {
			for _, h := range s.evictHooks {
				h(k.db, k.key)
			}
		})
		s.lru = l
	}

	for i, db := range s.databases {
		idx := i
		db.AddHook(func(m Mutation) {
			if s.lru == nil {
				return
			}
			switch m.Kind {
			case MutationDelete:
				s.lru.Remove(lruKey{idx, m.Key})
			default:
				s.lru.Add(lruKey{idx, m.Key}, struct{}{})
			}
		})
	}

	return s
}

// DB returns the i'th database (panics if out of range, matching the
// dispatcher's responsibility to validate SELECT's index first).
func (s *Store) DB(i int) *Database { return s.databases[i] }

// DatabaseCount returns the configured number of databases.
func (s *Store) DatabaseCount() int { return len(s.databases) }

// OnEvict registers a callback invoked when the approximate-LRU policy
// selects a key for eviction under memory pressure. The store itself
// does not delete the key — the caller (command layer) does, since
// eviction must also propagate to AOF/replication like any other DEL.
func (s *Store) OnEvict(fn func(db int, key string)) {
	s.evictHooks = append(s.evictHooks, fn)
}

// Note records nBytes of memory usage delta (positive on allocation,
// negative on release) and reports whether the store is currently over
// its configured maxmemory budget.
func (s *Store) Note(nBytes int64) (overBudget bool) {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	s.usedBytes += nBytes
	if s.usedBytes < 0 {
		s.usedBytes = 0
	}
	return s.maxBytes > 0 && s.usedBytes > s.maxBytes
}

// UsedBytes returns the last noted memory usage estimate.
func (s *Store) UsedBytes() int64 {
	s.memMu.Lock()
	defer s.memMu.Unlock()
	return s.usedBytes
}

// EvictUntilUnderBudget runs the approximate-LRU sampler, removing the
// least-recently-touched key at a time, until Note's usedBytes falls
// back at or under maxBytes or the LRU runs dry. Each removal fires the
// registered OnEvict hooks synchronously, which is how the command
// layer actually deletes the victim key and propagates it as a DEL
// (§4.2/§5's "eviction admits the write that triggered it"). Must not
// hold memMu while calling RemoveOldest: the evict hook it triggers
// calls back into Note for the freed bytes.
func (s *Store) EvictUntilUnderBudget() {
	if s.lru == nil || s.maxBytes <= 0 {
		return
	}
	for {
		s.memMu.Lock()
		over := s.usedBytes > s.maxBytes
		s.memMu.Unlock()
		if !over {
			return
		}
		if _, _, ok := s.lru.RemoveOldest(); !ok {
			return
		}
	}
}

// StartSweeper begins a periodic active-expiration cycle, running every
// interval and visiting each database's shards for a bounded number of
// expired keys, on its own robfig/cron instance.
func (s *Store) StartSweeper(interval time.Duration, budgetPerDB int) {
	if s.sweeper != nil {
		return
	}
	s.sweeper = cron.New(cron.WithSeconds())
	logger := log.Component("store")
	spec := "@every " + interval.String()
	_, err := s.sweeper.AddFunc(spec, func() {
		for _, db := range s.databases {
			swept := db.sweepExpired(budgetPerDB)
			if swept > 0 {
				logger.WithField("db", db.index).WithField("count", swept).Debug("swept expired keys")
			}
		}
	})
	if err != nil {
		logger.WithError(err).Error("failed to schedule expiration sweep")
		return
	}
	s.sweeper.Start()
}

// StopSweeper halts the periodic sweep, if running.
func (s *Store) StopSweeper() {
	if s.sweeper == nil {
		return
	}
	ctx := s.sweeper.Stop()
	<-ctx.Done()
	s.sweeper = nil
}
