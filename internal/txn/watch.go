// Package txn implements the optimistic-concurrency transaction engine:
// WATCH/MULTI/EXEC/DISCARD with cross-connection invalidation (§4.6). It
// sits between internal/session (per-connection buffer and watch set)
// and internal/store (the mod-counter-bearing keyspace), registering a
// mutation hook so a write from any connection can mark every watcher
// of the affected key dirty in O(watchers-of-that-key) rather than
// O(all connected sessions).
package txn

import (
	"sync"

	"github.com/dreamware/torudis/internal/session"
)

type watchKey struct {
	db  int
	key string
}

// Registry tracks which sessions are watching which (db, key) pairs,
// and is the thing a store.Database's mutation hook calls into.
type Registry struct {
	mu       sync.Mutex
	watchers map[watchKey]map[*session.Session]bool
}

// NewRegistry returns an empty watch registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[watchKey]map[*session.Session]bool)}
}

// Watch records that sess is watching (db, key) at modCount, both in the
// session's own snapshot and in the registry's reverse index.
func (r *Registry) Watch(sess *session.Session, db int, key string, modCount uint64) {
	sess.Watch(db, key, modCount)

	r.mu.Lock()
	defer r.mu.Unlock()
	k := watchKey{db, key}
	set, ok := r.watchers[k]
	if !ok {
		set = make(map[*session.Session]bool)
		r.watchers[k] = set
	}
	set[sess] = true
}

// Unwatch removes sess from every key it was watching, typically called
// when EXEC/DISCARD/RESET/disconnect clears the session's watch set.
func (r *Registry) Unwatch(sess *session.Session, watching map[session.WatchKey]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for wk := range watching {
		k := watchKey{wk.DB, wk.Key}
		if set, ok := r.watchers[k]; ok {
			delete(set, sess)
			if len(set) == 0 {
				delete(r.watchers, k)
			}
		}
	}
}

// OnMutation is the store.Hook to register on every database: it marks
// every session watching (db, key) dirty.
func (r *Registry) OnMutation(db int, key string) {
	r.mu.Lock()
	set := r.watchers[watchKey{db, key}]
	watchers := make([]*session.Session, 0, len(set))
	for s := range set {
		watchers = append(watchers, s)
	}
	r.mu.Unlock()

	for _, s := range watchers {
		s.NotifyMutation(db, key)
	}
}
