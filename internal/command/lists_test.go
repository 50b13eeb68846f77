package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestPushPopRangeLen(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "RPUSH", "l", "a", "b"))
	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "LPUSH", "l", "z"))
	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "LLEN", "l"))

	reply := mustRun(ctx, sess, "LRANGE", "l", "0", "-1")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, []byte("z"), reply.Array[0].Bulk)
	assert.Equal(t, []byte("a"), reply.Array[1].Bulk)
	assert.Equal(t, []byte("b"), reply.Array[2].Bulk)

	assert.Equal(t, resp.Bulk([]byte("z")), mustRun(ctx, sess, "LPOP", "l"))
	assert.Equal(t, resp.Bulk([]byte("b")), mustRun(ctx, sess, "RPOP", "l"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "LLEN", "l"))
}

func TestLIndexLSetLRem(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "RPUSH", "l", "a", "b", "a", "c")

	assert.Equal(t, resp.Bulk([]byte("b")), mustRun(ctx, sess, "LINDEX", "l", "1"))
	assert.Equal(t, resp.OK(), mustRun(ctx, sess, "LSET", "l", "1", "x"))
	assert.Equal(t, resp.Bulk([]byte("x")), mustRun(ctx, sess, "LINDEX", "l", "1"))

	removed := mustRun(ctx, sess, "LREM", "l", "0", "a")
	assert.Equal(t, resp.Int(2), removed)
	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "LLEN", "l"))
}

func TestBLPopReturnsImmediatelyWhenDataPresent(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "RPUSH", "l", "only")

	reply := mustRun(ctx, sess, "BLPOP", "l", "0.01")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 2)
	assert.Equal(t, []byte("l"), reply.Array[0].Bulk)
	assert.Equal(t, []byte("only"), reply.Array[1].Bulk)
}

func TestBLPopTimesOutToNullArray(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	reply := mustRun(ctx, sess, "BLPOP", "missing", "0.01")
	assert.True(t, reply.IsNil())
}
