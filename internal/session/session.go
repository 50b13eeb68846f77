// Package session implements the per-connection state machine: selected
// database, auth gate, transaction/subscription mode, the transaction
// buffer, the watch set, and pub/sub subscriptions (§4.5). It holds no
// network code itself — cmd/torudis-server wires a Session to an actual
// net.Conn through the command dispatcher.
package session

import "sync"

// Mode is the connection's command-processing mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeTxQueueing
	ModeTxDirty
	ModeSubscribed
)

// QueuedCommand is one command buffered during MULTI, awaiting EXEC.
type QueuedCommand struct {
	Args [][]byte
}

// WatchKey identifies a watched (database, key) pair.
type WatchKey struct {
	DB  int
	Key string
}

// Session is one client connection's state, per §4.5. All mutation goes
// through its methods, which take the embedded lock, since a blocking
// coordinator goroutine or the pub/sub bus may touch it concurrently
// with the connection's own read loop (e.g. publishing a message while
// the client is mid-EXEC).
type Session struct {
	mu sync.Mutex

	ID            uint64
	SelectedDB    int
	Authenticated bool
	Mode          Mode

	TxBuffer []QueuedCommand
	WatchSet map[WatchKey]uint64
	Dirty    bool // set by the watch-invalidation hook; checked at EXEC

	Subscriptions        map[string]bool
	PatternSubscriptions map[string]bool

	// IsReplicaLink marks connections that are actually a replica's
	// sync stream rather than a regular client, so the dispatcher can
	// relax the read-only-replica write guard for commands arriving on it.
	IsReplicaLink bool
}

// New returns a fresh session selecting database 0, unauthenticated.
func New(id uint64) *Session {
	return &Session{
		ID:                   id,
		SelectedDB:           0,
		WatchSet:             make(map[WatchKey]uint64),
		Subscriptions:        make(map[string]bool),
		PatternSubscriptions: make(map[string]bool),
	}
}

// Select changes the session's selected database.
func (s *Session) Select(db int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedDB = db
}

// CurrentDB returns the session's selected database.
func (s *Session) CurrentDB() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SelectedDB
}

// BeginMulti transitions normal -> tx_queueing. Returns false if already
// queueing (nested MULTI is an error reply, but state is unchanged).
func (s *Session) BeginMulti() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModeTxQueueing || s.Mode == ModeTxDirty {
		return false
	}
	s.Mode = ModeTxQueueing
	s.TxBuffer = nil
	return true
}

// InTransaction reports whether the session is queueing or dirty.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mode == ModeTxQueueing || s.Mode == ModeTxDirty
}

// Queue appends a command to the transaction buffer.
func (s *Session) Queue(args [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxBuffer = append(s.TxBuffer, QueuedCommand{Args: args})
}

// MarkDirty transitions tx_queueing -> tx_dirty after a queue-time error.
func (s *Session) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Mode == ModeTxQueueing {
		s.Mode = ModeTxDirty
	}
}

// IsDirty reports whether the transaction is in the dirty state (a
// queue-time error occurred; EXEC must reply EXECABORT).
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mode == ModeTxDirty
}

// WatchInvalidated reports whether a watched key has been mutated since
// WATCH was issued (EXEC must reply with a null array).
func (s *Session) WatchInvalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Dirty
}

// EndTransaction drains the buffer and returns to normal mode, clearing
// watches (used by EXEC/DISCARD/EXECABORT alike).
func (s *Session) EndTransaction() []QueuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.TxBuffer
	s.TxBuffer = nil
	s.Mode = ModeNormal
	s.WatchSet = make(map[WatchKey]uint64)
	s.Dirty = false
	return buf
}

// Watch records the current modification counter for (db, key).
func (s *Session) Watch(db int, key string, modCount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WatchSet[WatchKey{DB: db, Key: key}] = modCount
}

// Watching returns a snapshot of the current watch set.
func (s *Session) Watching() map[WatchKey]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[WatchKey]uint64, len(s.WatchSet))
	for k, v := range s.WatchSet {
		out[k] = v
	}
	return out
}

// ClearWatches drops the watch set without touching transaction state.
func (s *Session) ClearWatches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WatchSet = make(map[WatchKey]uint64)
	s.Dirty = false
}

// NotifyMutation marks the session dirty if it is watching (db, key),
// called by the storage layer's mutation hook for every connected
// session (§4.6's cross-connection invalidation).
func (s *Session) NotifyMutation(db int, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.WatchSet[WatchKey{DB: db, Key: key}]; ok {
		s.Dirty = true
	}
}

// Subscribe adds channel subscriptions and returns the new total
// subscription count (channels + patterns), entering subscribed mode.
func (s *Session) Subscribe(channels ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range channels {
		s.Subscriptions[c] = true
	}
	s.Mode = ModeSubscribed
	return len(s.Subscriptions) + len(s.PatternSubscriptions)
}

// PSubscribe adds pattern subscriptions, mirroring Subscribe.
func (s *Session) PSubscribe(patterns ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patterns {
		s.PatternSubscriptions[p] = true
	}
	s.Mode = ModeSubscribed
	return len(s.Subscriptions) + len(s.PatternSubscriptions)
}

// Unsubscribe removes channel subscriptions (all, if none given) and
// returns the new total count, leaving subscribed mode once it hits zero.
func (s *Session) Unsubscribe(channels ...string) ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(channels) == 0 {
		for c := range s.Subscriptions {
			channels = append(channels, c)
		}
	}
	for _, c := range channels {
		delete(s.Subscriptions, c)
	}
	s.exitSubscribedIfIdleLocked()
	return channels, len(s.Subscriptions) + len(s.PatternSubscriptions)
}

// PUnsubscribe removes pattern subscriptions (all, if none given).
func (s *Session) PUnsubscribe(patterns ...string) ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(patterns) == 0 {
		for p := range s.PatternSubscriptions {
			patterns = append(patterns, p)
		}
	}
	for _, p := range patterns {
		delete(s.PatternSubscriptions, p)
	}
	s.exitSubscribedIfIdleLocked()
	return patterns, len(s.Subscriptions) + len(s.PatternSubscriptions)
}

func (s *Session) exitSubscribedIfIdleLocked() {
	if len(s.Subscriptions) == 0 && len(s.PatternSubscriptions) == 0 && s.Mode == ModeSubscribed {
		s.Mode = ModeNormal
	}
}

// IsSubscribed reports whether the session is in subscribed mode.
func (s *Session) IsSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mode == ModeSubscribed
}

// Reset clears all per-connection state back to a fresh session, as if
// newly connected but on the same link (the RESET command, and the
// disconnect cleanup path share this).
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SelectedDB = 0
	s.Authenticated = false
	s.Mode = ModeNormal
	s.TxBuffer = nil
	s.WatchSet = make(map[WatchKey]uint64)
	s.Dirty = false
	s.Subscriptions = make(map[string]bool)
	s.PatternSubscriptions = make(map[string]bool)
}
