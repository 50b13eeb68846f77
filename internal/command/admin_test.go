package command

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/persist/snapshot"
	"github.com/dreamware/torudis/internal/replication"
	"github.com/dreamware/torudis/internal/resp"
)

func TestSaveWritesLoadableSnapshot(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Fs = afero.NewMemMapFs()
	sess := newTestSession()

	mustRun(ctx, sess, "SET", "k", "v")
	assert.Equal(t, 1, ctx.DirtySinceSave())

	reply := mustRun(ctx, sess, "SAVE")
	assert.Equal(t, resp.OK(), reply)
	assert.Equal(t, 0, ctx.DirtySinceSave())

	exists, err := afero.Exists(ctx.Fs, ctx.snapshotPath())
	require.NoError(t, err)
	assert.True(t, exists)

	fresh := newTestContext(t)
	fresh.Fs = ctx.Fs
	require.NoError(t, snapshot.Load(fresh.Fs, fresh.Store, fresh.snapshotPath()))
	assert.Equal(t, resp.Bulk([]byte("v")), mustRun(fresh, newTestSession(), "GET", "k"))
}

func TestBGSaveCompletesAsynchronously(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Fs = afero.NewMemMapFs()
	sess := newTestSession()
	mustRun(ctx, sess, "SET", "k", "v")

	reply := mustRun(ctx, sess, "BGSAVE")
	require.Equal(t, resp.SimpleString, reply.Type)

	require.Eventually(t, func() bool {
		exists, _ := afero.Exists(ctx.Fs, ctx.snapshotPath())
		return exists
	}, time.Second, 5*time.Millisecond)
}

func TestReplicaOfUpdatesReplicaState(t *testing.T) {
	ctx := newTestContext(t)
	ctx.AttachReplica(replication.NewReplica())
	sess := newTestSession()
	var dialed string
	ctx.OnReplicaOf = func(addr string) { dialed = addr }

	reply := mustRun(ctx, sess, "REPLICAOF", "10.0.0.1", "6380")
	assert.Equal(t, resp.OK(), reply)
	assert.Equal(t, "10.0.0.1:6380", ctx.Replica.MasterAddr())
	assert.Equal(t, "10.0.0.1:6380", dialed)

	reply = mustRun(ctx, sess, "REPLICAOF", "NO", "ONE")
	assert.Equal(t, resp.OK(), reply)
	assert.Equal(t, "", ctx.Replica.MasterAddr())
	assert.Equal(t, "", dialed)
}

func TestReplicaOfWithoutReplicationSupportIsError(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	reply := mustRun(ctx, sess, "REPLICAOF", "host", "1234")
	assert.Equal(t, resp.Error, reply.Type)
}
