// Package replication implements the master/replica link state machine
// and outbound command fan-out of §4.11: a master tracks a replication
// offset, a bounded backlog, and its connected replicas' acknowledged
// offsets; a replica tracks its link state against a single master.
// Actual socket I/O (accepting replica connections, dialing a master)
// is the server layer's responsibility — this package only holds the
// state both sides reason about and the buffering in between.
package replication

import (
	"sync"

	"github.com/google/uuid"
)

// ReplicaHandle is the master-side record of one connected replica: its
// outbound stream and the offset it has acknowledged.
type ReplicaHandle struct {
	ID     uint64
	Send   func(p []byte) error // pushes raw RESP bytes to the replica's socket
	mu     sync.Mutex
	ackOff uint64
}

// Ack records the offset this replica has confirmed receiving.
func (r *ReplicaHandle) Ack(offset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset > r.ackOff {
		r.ackOff = offset
	}
}

// AckOffset returns the replica's last acknowledged offset.
func (r *ReplicaHandle) AckOffset() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ackOff
}

// Master is the replication-source side of a server: it owns the
// backlog, the replica list and the per-epoch repl_id that changes on
// every role transition (§4.11).
type Master struct {
	mu       sync.RWMutex
	replID   string
	backlog  *Backlog
	replicas map[uint64]*ReplicaHandle
	nextID   uint64
}

// NewMaster returns a master with a fresh repl_id and an empty replica
// set.
func NewMaster(backlogSize int) *Master {
	return &Master{
		replID:   uuid.NewString(),
		backlog:  NewBacklog(backlogSize),
		replicas: make(map[uint64]*ReplicaHandle),
	}
}

// ReplID returns the current replication epoch id.
func (m *Master) ReplID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replID
}

// Offset returns the current replication stream offset.
func (m *Master) Offset() uint64 { return m.backlog.Offset() }

// Propagate appends encoded to the backlog and forwards it to every
// connected replica, used for every mutating command executed by a
// client (§4.11's "every mutating command ... is appended verbatim
// ... to each connected replica's outbound stream").
func (m *Master) Propagate(encoded []byte) uint64 {
	offset := m.backlog.Write(encoded)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.replicas {
		_ = r.Send(encoded) // best-effort; a dead link is reaped by the server layer
	}
	return offset
}

// AttachReplica registers a newly synced replica and returns its
// handle. send pushes raw bytes to the replica's connection.
func (m *Master) AttachReplica(send func([]byte) error) *ReplicaHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	h := &ReplicaHandle{ID: m.nextID, Send: send, ackOff: m.backlog.Offset()}
	m.replicas[h.ID] = h
	return h
}

// DetachReplica removes a replica, e.g. on disconnect.
func (m *Master) DetachReplica(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// Replicas returns a snapshot of currently attached replica handles.
func (m *Master) Replicas() []*ReplicaHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ReplicaHandle, 0, len(m.replicas))
	for _, r := range m.replicas {
		out = append(out, r)
	}
	return out
}

// SyncRequest describes what an incoming replica asked for when it
// connected: its last known repl_id and offset, from which the master
// decides full vs partial sync.
type SyncRequest struct {
	ReplID string
	Offset uint64
}

// SyncPlan tells the caller how to satisfy a SyncRequest.
type SyncPlan struct {
	FullSync     bool
	BacklogTail  []byte // valid only when FullSync is false
	SnapshotEpoch string // the repl_id/offset the replica should adopt after a full sync
}

// PlanSync decides whether req can be served from the backlog (partial
// sync) or needs a fresh snapshot (full sync), per §4.11 step 3.
func (m *Master) PlanSync(req SyncRequest) SyncPlan {
	m.mu.RLock()
	replID := m.replID
	m.mu.RUnlock()

	if req.ReplID == replID {
		if tail, ok := m.backlog.Since(req.Offset); ok {
			return SyncPlan{FullSync: false, BacklogTail: tail}
		}
	}
	return SyncPlan{FullSync: true, SnapshotEpoch: replID}
}

// ResetEpoch assigns a fresh repl_id, used when REPLICAOF NO ONE
// promotes this server to master (§4.11).
func (m *Master) ResetEpoch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replID = uuid.NewString()
}
