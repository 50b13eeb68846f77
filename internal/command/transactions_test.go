package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestMultiExecRunsQueuedCommands(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.OK(), mustRun(ctx, sess, "MULTI"))
	assert.Equal(t, resp.Str("QUEUED"), mustRun(ctx, sess, "SET", "k", "v"))
	assert.Equal(t, resp.Str("QUEUED"), mustRun(ctx, sess, "INCR", "n"))

	reply := mustRun(ctx, sess, "EXEC")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 2)
	assert.Equal(t, resp.OK(), reply.Array[0])
	assert.Equal(t, resp.Int(1), reply.Array[1])

	assert.Equal(t, resp.Bulk([]byte("v")), mustRun(ctx, sess, "GET", "k"))
}

func TestMultiNestedIsError(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	mustRun(ctx, sess, "MULTI")
	reply := mustRun(ctx, sess, "MULTI")
	assert.Equal(t, resp.Error, reply.Type)
}

func TestExecWithoutMultiIsError(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	reply := mustRun(ctx, sess, "EXEC")
	assert.Equal(t, resp.Error, reply.Type)
}

func TestDiscardClearsQueue(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	mustRun(ctx, sess, "MULTI")
	mustRun(ctx, sess, "SET", "k", "v")
	assert.Equal(t, resp.OK(), mustRun(ctx, sess, "DISCARD"))
	assert.False(t, sess.InTransaction())

	reply := mustRun(ctx, sess, "EXEC")
	assert.Equal(t, resp.Error, reply.Type)
}

func TestWatchInvalidatesTransactionOnMutation(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	mustRun(ctx, sess, "SET", "k", "1")
	mustRun(ctx, sess, "WATCH", "k")

	other := newTestSession()
	other.ID = 2
	mustRun(ctx, other, "SET", "k", "2")

	mustRun(ctx, sess, "MULTI")
	mustRun(ctx, sess, "SET", "k", "3")
	reply := mustRun(ctx, sess, "EXEC")
	assert.True(t, reply.IsNil())

	assert.Equal(t, resp.Bulk([]byte("2")), mustRun(ctx, sess, "GET", "k"))
}

func TestUnwatchClearsWatchSet(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	mustRun(ctx, sess, "SET", "k", "1")
	mustRun(ctx, sess, "WATCH", "k")
	assert.Equal(t, resp.OK(), mustRun(ctx, sess, "UNWATCH"))
	assert.Empty(t, sess.Watching())
}
