package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestHSetHGetHDel(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "HSET", "h", "f1", "v1", "f2", "v2"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "HSET", "h", "f1", "v1b"))
	assert.Equal(t, resp.Bulk([]byte("v1b")), mustRun(ctx, sess, "HGET", "h", "f1"))
	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "HLEN", "h"))

	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "HDEL", "h", "f1", "missing"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "HLEN", "h"))
}

func TestHSetNXAndHMGet(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "HSET", "h", "f1", "v1")

	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "HSETNX", "h", "f1", "other"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "HSETNX", "h", "f2", "v2"))

	reply := mustRun(ctx, sess, "HMGET", "h", "f1", "f2", "missing")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, []byte("v1"), reply.Array[0].Bulk)
	assert.True(t, reply.Array[2].Null)
}

func TestHIncrByAndHExists(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.Int(5), mustRun(ctx, sess, "HINCRBY", "h", "n", "5"))
	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "HINCRBY", "h", "n", "-2"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "HEXISTS", "h", "n"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "HEXISTS", "h", "missing"))
}

func TestHGetAllRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "HSET", "h", "a", "1", "b", "2")

	reply := mustRun(ctx, sess, "HGETALL", "h")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 4)

	got := map[string]string{}
	for i := 0; i < len(reply.Array); i += 2 {
		got[string(reply.Array[i].Bulk)] = string(reply.Array[i+1].Bulk)
	}
	assert.Equal(t, "1", got["a"])
	assert.Equal(t, "2", got["b"])
}
