package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestZAddZScoreZCard(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "ZADD", "z", "1", "a", "2", "b", "3", "c"))
	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "ZCARD", "z"))
	assert.Equal(t, resp.Bulk([]byte("2")), mustRun(ctx, sess, "ZSCORE", "z", "b"))
	assert.Equal(t, resp.NullBulk(), mustRun(ctx, sess, "ZSCORE", "z", "missing"))
}

func TestZRangeOrdersByScore(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "ZADD", "z", "3", "c", "1", "a", "2", "b")

	reply := mustRun(ctx, sess, "ZRANGE", "z", "0", "-1")
	require.Equal(t, resp.Array, reply.Type)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, []byte("a"), reply.Array[0].Bulk)
	assert.Equal(t, []byte("b"), reply.Array[1].Bulk)
	assert.Equal(t, []byte("c"), reply.Array[2].Bulk)
}

func TestZRankAndZIncrBy(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "ZADD", "z", "1", "a", "2", "b")

	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "ZRANK", "z", "a"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "ZRANK", "z", "b"))

	reply := mustRun(ctx, sess, "ZINCRBY", "z", "5", "a")
	require.Equal(t, resp.BulkString, reply.Type)
	assert.Equal(t, "6", string(reply.Bulk))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "ZRANK", "z", "a"))
}

func TestZRemAndZCount(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "ZADD", "z", "1", "a", "2", "b", "3", "c")

	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "ZREM", "z", "b"))
	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "ZCARD", "z"))
	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "ZCOUNT", "z", "-inf", "+inf"))
}
