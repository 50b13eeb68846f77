package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestSAddSCardSIsMember(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "SADD", "s", "a", "b", "c"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "SADD", "s", "a"))
	assert.Equal(t, resp.Int(3), mustRun(ctx, sess, "SCARD", "s"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "SISMEMBER", "s", "a"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "SISMEMBER", "s", "z"))
}

func TestSInterSUnionSDiff(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "SADD", "a", "1", "2", "3")
	mustRun(ctx, sess, "SADD", "b", "2", "3", "4")

	inter := mustRun(ctx, sess, "SINTER", "a", "b")
	require.Equal(t, resp.Array, inter.Type)
	assert.Len(t, inter.Array, 2)

	union := mustRun(ctx, sess, "SUNION", "a", "b")
	assert.Len(t, union.Array, 4)

	diff := mustRun(ctx, sess, "SDIFF", "a", "b")
	assert.Len(t, diff.Array, 1)
}

func TestSMoveBetweenSets(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "SADD", "src", "x")

	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "SMOVE", "src", "dst", "x"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "SISMEMBER", "src", "x"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "SISMEMBER", "dst", "x"))

	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "SMOVE", "src", "dst", "x"))
}

func TestSPopRemovesMember(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "SADD", "s", "only")

	reply := mustRun(ctx, sess, "SPOP", "s")
	assert.Equal(t, resp.Bulk([]byte("only")), reply)
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "SCARD", "s"))
}
