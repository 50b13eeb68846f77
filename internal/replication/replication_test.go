package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacklogWriteAndSince(t *testing.T) {
	b := NewBacklog(16)
	off1 := b.Write([]byte("hello"))
	assert.Equal(t, uint64(5), off1)

	tail, ok := b.Since(0)
	require.True(t, ok)
	assert.Equal(t, "hello", string(tail))

	off2 := b.Write([]byte("world"))
	assert.Equal(t, uint64(10), off2)

	tail, ok = b.Since(5)
	require.True(t, ok)
	assert.Equal(t, "world", string(tail))
}

func TestBacklogEvictsOldestBytesOnOverflow(t *testing.T) {
	b := NewBacklog(8)
	b.Write([]byte("12345678"))
	b.Write([]byte("90")) // overflows by 2, evicting "12"

	_, ok := b.Since(0)
	assert.False(t, ok, "offset 0 should have fallen out of the backlog window")

	tail, ok := b.Since(2)
	require.True(t, ok)
	assert.Equal(t, "34567890", string(tail))
}

func TestBacklogSinceFutureOffsetFails(t *testing.T) {
	b := NewBacklog(16)
	b.Write([]byte("abc"))
	_, ok := b.Since(100)
	assert.False(t, ok)
}

func TestMasterPropagateFansOutToReplicas(t *testing.T) {
	m := NewMaster(1024)
	var received []byte
	h := m.AttachReplica(func(p []byte) error {
		received = append(received, p...)
		return nil
	})

	m.Propagate([]byte("cmd1"))
	m.Propagate([]byte("cmd2"))

	assert.Equal(t, "cmd1cmd2", string(received))
	assert.Equal(t, uint64(8), m.Offset())

	m.DetachReplica(h.ID)
	m.Propagate([]byte("cmd3"))
	assert.Equal(t, "cmd1cmd2", string(received), "detached replica must stop receiving")
}

func TestMasterPlanSyncPartialWhenWithinBacklog(t *testing.T) {
	m := NewMaster(1024)
	m.Propagate([]byte("aaaa"))
	replID := m.ReplID()

	plan := m.PlanSync(SyncRequest{ReplID: replID, Offset: 0})
	require.False(t, plan.FullSync)
	assert.Equal(t, "aaaa", string(plan.BacklogTail))
}

func TestMasterPlanSyncFullWhenReplIDMismatches(t *testing.T) {
	m := NewMaster(1024)
	m.Propagate([]byte("aaaa"))

	plan := m.PlanSync(SyncRequest{ReplID: "stale-epoch", Offset: 0})
	assert.True(t, plan.FullSync)
	assert.Equal(t, m.ReplID(), plan.SnapshotEpoch)
}

func TestMasterResetEpochChangesReplID(t *testing.T) {
	m := NewMaster(1024)
	before := m.ReplID()
	m.ResetEpoch()
	assert.NotEqual(t, before, m.ReplID())
}

func TestReplicaLinkLifecycle(t *testing.T) {
	r := NewReplica()
	assert.Equal(t, LinkDown, r.State())

	r.ReplicaOf("10.0.0.1:6380")
	assert.Equal(t, "10.0.0.1:6380", r.MasterAddr())
	assert.Equal(t, LinkConnecting, r.State())

	r.SetState(LinkSyncing)
	assert.Equal(t, LinkSyncing, r.State())

	r.BeginFullSync("epoch-1", 100)
	assert.Equal(t, LinkUp, r.State())
	assert.Equal(t, uint64(100), r.Offset())
	assert.Equal(t, "epoch-1", r.ReplID())

	r.Advance(50)
	assert.Equal(t, uint64(150), r.Offset())

	r.Disconnect()
	assert.Equal(t, LinkDown, r.State())
	assert.Equal(t, "10.0.0.1:6380", r.MasterAddr(), "disconnect keeps the configured master for retry")
}

func TestReplicaOfNoOneClearsMasterButCallerPromotes(t *testing.T) {
	r := NewReplica()
	r.ReplicaOf("host:1")
	r.BeginFullSync("e1", 10)

	r.ReplicaOf("")
	assert.Equal(t, "", r.MasterAddr())
	assert.Equal(t, LinkConnecting, r.State())
	assert.Equal(t, uint64(0), r.Offset())
}
