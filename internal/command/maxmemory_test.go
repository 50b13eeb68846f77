package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/config"
	"github.com/dreamware/torudis/internal/replication"
	"github.com/dreamware/torudis/internal/resp"
	"github.com/dreamware/torudis/internal/store"
)

// newBudgetedContext is newTestContext with a maxmemory budget tight
// enough that a handful of writes push it over, so eviction actually
// samples the LRU instead of being a no-op.
func newBudgetedContext(t *testing.T, maxBytes int64) *ExecContext {
	t.Helper()
	cfg := config.Defaults()
	cfg.Databases = 4
	cfg.Shards = 4
	cfg.MaxMemoryBytes = maxBytes
	st := store.New(store.Options{Databases: cfg.Databases, Shards: cfg.Shards, MaxMemoryBytes: maxBytes})
	return NewExecContext(st, cfg, nil)
}

func TestWritesUnderBudgetDoNotEvictAnything(t *testing.T) {
	ctx := newBudgetedContext(t, 1<<20)
	sess := newTestSession()

	mustRun(ctx, sess, "SET", "k1", "v1")
	mustRun(ctx, sess, "SET", "k2", "v2")

	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "EXISTS", "k1"))
	assert.Equal(t, resp.Int(1), mustRun(ctx, sess, "EXISTS", "k2"))
}

func TestOverBudgetWriteEvictsLeastRecentlyTouchedKey(t *testing.T) {
	ctx := newBudgetedContext(t, 1)
	sess := newTestSession()

	mustRun(ctx, sess, "SET", "k1", "v1")
	mustRun(ctx, sess, "SET", "k2", "v2")
	mustRun(ctx, sess, "SET", "k3", "v3")

	present := 0
	for _, k := range []string{"k1", "k2", "k3"} {
		if mustRun(ctx, sess, "EXISTS", k).Int == 1 {
			present++
		}
	}
	assert.Less(t, present, 3, "expected at least one key evicted once usage exceeds the 1-byte budget")
	assert.Equal(t, resp.Int(0), mustRun(ctx, sess, "EXISTS", "k1"), "expected the least recently touched key, k1, to be evicted first")
}

func TestEvictedKeyIsPropagatedAsDelete(t *testing.T) {
	ctx := newBudgetedContext(t, 1)
	sess := newTestSession()

	var deletes int
	ctx.Store.OnEvict(func(db int, key string) { deletes++ })

	var propagated []byte
	ctx.Master = replication.NewMaster(0)
	ctx.Master.AttachReplica(func(b []byte) error {
		propagated = append(propagated, b...)
		return nil
	})

	mustRun(ctx, sess, "SET", "k1", "v1")
	mustRun(ctx, sess, "SET", "k2", "v2")

	require.Greater(t, deletes, 0, "expected the over-budget write to trigger at least one eviction")
	assert.Contains(t, string(propagated), "\r\nDEL\r\n$2\r\nk1\r\n", "expected the evicted key to reach the replication stream as a DEL")
}
