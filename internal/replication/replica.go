package replication

import "sync"

// LinkState is a replica's connection state against its master.
type LinkState int

const (
	LinkDown LinkState = iota
	LinkConnecting
	LinkSyncing
	LinkUp
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "down"
	case LinkConnecting:
		return "connecting"
	case LinkSyncing:
		return "syncing"
	case LinkUp:
		return "up"
	default:
		return "unknown"
	}
}

// Replica is the replication-sink side of a server: the address of its
// configured master, its link state, and how far it has applied the
// master's stream (§4.11).
type Replica struct {
	mu         sync.RWMutex
	masterAddr string
	state      LinkState
	replID     string
	offset     uint64
}

// NewReplica returns a replica in the down state pointed at no master;
// call ReplicaOf to configure one.
func NewReplica() *Replica {
	return &Replica{state: LinkDown}
}

// ReplicaOf points this replica at a new master, per REPLICAOF host
// port, resetting link state to connecting. An empty addr means
// REPLICAOF NO ONE — the caller is responsible for then promoting this
// server to a Master (§4.11).
func (r *Replica) ReplicaOf(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.masterAddr = addr
	r.state = LinkConnecting
	r.replID = ""
	r.offset = 0
}

// MasterAddr returns the currently configured master address, empty if
// none.
func (r *Replica) MasterAddr() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.masterAddr
}

// State returns the current link state.
func (r *Replica) State() LinkState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetState transitions the link state, e.g. as the handshake with the
// master progresses.
func (r *Replica) SetState(s LinkState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// BeginFullSync records the repl_id and starting offset a full sync
// snapshot corresponds to, marking the link up once the snapshot has
// been loaded.
func (r *Replica) BeginFullSync(replID string, snapshotOffset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replID = replID
	r.offset = snapshotOffset
	r.state = LinkUp
}

// Advance records that count more bytes of the master's stream have
// been applied.
func (r *Replica) Advance(count uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset += count
}

// Offset returns how many bytes of the master's stream this replica has
// applied.
func (r *Replica) Offset() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offset
}

// ReplID returns the last known repl_id this replica is synced against.
func (r *Replica) ReplID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.replID
}

// Disconnect marks the link down without forgetting the configured
// master address, so the server layer can retry the handshake.
func (r *Replica) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = LinkDown
}
