package aof

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func TestAppendAndReplay(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := Open(fs, "/data/appendonly.aof", FsyncAlways)
	require.NoError(t, err)

	require.NoError(t, w.Append([][]byte{[]byte("SET"), []byte("a"), []byte("1")}))
	require.NoError(t, w.Append([][]byte{[]byte("SET"), []byte("b"), []byte("2")}))
	require.NoError(t, w.Append([][]byte{[]byte("DEL"), []byte("a")}))
	require.NoError(t, w.Close())

	var replayed [][]string
	err = Replay(fs, "/data/appendonly.aof", func(args [][]byte) error {
		row := make([]string, len(args))
		for i, a := range args {
			row[i] = string(a)
		}
		replayed = append(replayed, row)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, replayed, 3)
	assert.Equal(t, []string{"SET", "a", "1"}, replayed[0])
	assert.Equal(t, []string{"SET", "b", "2"}, replayed[1])
	assert.Equal(t, []string{"DEL", "a"}, replayed[2])
}

func TestReplayMissingFileIsNotAnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	called := false
	err := Replay(fs, "/nope.aof", func(args [][]byte) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestEverySecPolicyFlushesButDelaysSync(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := Open(fs, "/data/x.aof", FsyncEverySec)
	require.NoError(t, err)
	require.NoError(t, w.Append([][]byte{[]byte("PING")}))

	// The bufio writer flushes to the afero file on every Append
	// regardless of fsync policy, so the data is already visible to a
	// fresh reader even though no fsync happened yet.
	b, err := afero.ReadFile(fs, "/data/x.aof")
	require.NoError(t, err)
	assert.Contains(t, string(b), "PING")
	require.NoError(t, w.Close())
}

func TestRewriteProducesMinimalLogAndTailIsConcatenated(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, err := Open(fs, "/data/appendonly.aof", FsyncAlways)
	require.NoError(t, err)
	require.NoError(t, w.Append([][]byte{[]byte("SET"), []byte("k1"), []byte("old")}))

	st := store.New(store.Options{Databases: 1, Shards: 2})
	st.DB(0).Set("k1", store.NewEntry(values.KindString, []byte("new")))

	tail := w.BeginRewrite()
	require.NoError(t, w.Append([][]byte{[]byte("SET"), []byte("k2"), []byte("written-during-rewrite")}))

	require.NoError(t, Rewrite(fs, st, "/data/appendonly.aof.tmp"))
	w.FinishRewrite()

	tmpContents, err := afero.ReadFile(fs, "/data/appendonly.aof.tmp")
	require.NoError(t, err)
	full := append(append([]byte{}, tmpContents...), tail.Bytes()...)
	require.NoError(t, afero.WriteFile(fs, "/data/appendonly.aof.tmp", full, 0o644))

	require.NoError(t, w.Replace("/data/appendonly.aof.tmp"))
	require.NoError(t, w.Close())

	var replayed [][]string
	err = Replay(fs, "/data/appendonly.aof", func(args [][]byte) error {
		row := make([]string, len(args))
		for i, a := range args {
			row[i] = string(a)
		}
		replayed = append(replayed, row)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, replayed, 3) // SELECT 0, SET k1 new, SET k2 written-during-rewrite
	assert.Equal(t, []string{"SELECT", "0"}, replayed[0])
	assert.Equal(t, []string{"SET", "k1", "new"}, replayed[1])
	assert.Equal(t, []string{"SET", "k2", "written-during-rewrite"}, replayed[2])
}
