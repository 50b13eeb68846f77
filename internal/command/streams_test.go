package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/resp"
)

func TestXAddAssignsIncreasingIDsAndXLen(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	now := int64(1_000)
	ctx.Now = func() int64 { return now }

	first := mustRun(ctx, sess, "XADD", "s", "*", "field", "v1")
	require.Equal(t, resp.BulkString, first.Type)
	firstID := string(first.Bulk)
	require.NotEmpty(t, firstID)

	now = 2_000
	second := mustRun(ctx, sess, "XADD", "s", "*", "field", "v2")
	assert.NotEqual(t, firstID, string(second.Bulk))

	assert.Equal(t, resp.Int(2), mustRun(ctx, sess, "XLEN", "s"))
}

func TestXAddExplicitIDRejectsNonIncreasing(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	assert.Equal(t, resp.BulkStr("5-0"), mustRun(ctx, sess, "XADD", "s", "5-0", "f", "v"))
	reply := mustRun(ctx, sess, "XADD", "s", "5-0", "f", "v")
	assert.Equal(t, resp.Error, reply.Type)
}

func TestXRangeReturnsEntriesInOrder(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "XADD", "s", "1-0", "f", "a")
	mustRun(ctx, sess, "XADD", "s", "2-0", "f", "b")

	reply := mustRun(ctx, sess, "XRANGE", "s", "-", "+")
	require.Equal(t, resp.Array, reply.Type)
	assert.Len(t, reply.Array, 2)
}

func TestXDelRemovesEntry(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()
	mustRun(ctx, sess, "XADD", "s", "1-0", "f", "a")

	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "XDEL", "s", "1-0"))
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "XLEN", "s"))
}

func TestXAddNoMkStreamOnMissingKey(t *testing.T) {
	ctx := newTestContext(t)
	sess := newTestSession()

	reply := mustRun(ctx, sess, "XADD", "missing", "NOMKSTREAM", "*", "f", "v")
	assert.Equal(t, resp.NullBulk(), reply)
}
