package snapshot

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/store"
	"github.com/dreamware/torudis/internal/values"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := store.New(store.Options{Databases: 3, Shards: 4})

	src.DB(0).Set("greeting", store.NewEntry(values.KindString, []byte("hello")))

	withTTL := store.NewEntry(values.KindString, []byte("expiring"))
	withTTL.Deadline = 9999999999999
	src.DB(0).Set("ttlkey", withTTL)

	l := values.NewList()
	l.PushRight([]byte("a"))
	l.PushRight([]byte("b"))
	l.PushRight([]byte("c"))
	src.DB(0).Set("mylist", store.NewEntry(values.KindList, l))

	s := values.NewSet()
	s.Add([]byte("x"))
	s.Add([]byte("y"))
	src.DB(1).Set("myset", store.NewEntry(values.KindSet, s))

	h := values.NewHash()
	h.Set([]byte("field1"), []byte("v1"))
	h.Set([]byte("field2"), []byte("v2"))
	src.DB(1).Set("myhash", store.NewEntry(values.KindHash, h))

	z := values.NewZSet()
	z.Set("alice", 1.5)
	z.Set("bob", 2.75)
	src.DB(2).Set("myzset", store.NewEntry(values.KindZSet, z))

	st := values.NewStream()
	require.NoError(t, st.Append(values.StreamID{Ms: 1, Seq: 0}, []values.StreamField{{Field: []byte("f"), Value: []byte("v")}}))
	require.NoError(t, st.Append(values.StreamID{Ms: 2, Seq: 0}, []values.StreamField{{Field: []byte("f"), Value: []byte("v2")}}))
	src.DB(2).Set("mystream", store.NewEntry(values.KindStream, st))

	require.NoError(t, Save(fs, src, "/data/dump.rdb"))

	dst := store.New(store.Options{Databases: 3, Shards: 4})
	require.NoError(t, Load(fs, dst, "/data/dump.rdb"))

	e, ok := dst.DB(0).Get("greeting")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), e.Data.([]byte))

	e, ok = dst.DB(0).Get("ttlkey")
	require.True(t, ok)
	assert.Equal(t, int64(9999999999999), e.Deadline)

	e, ok = dst.DB(0).Get("mylist")
	require.True(t, ok)
	gotList := e.Data.(*values.List)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, gotList.Range(0, -1))

	e, ok = dst.DB(1).Get("myset")
	require.True(t, ok)
	gotSet := e.Data.(*values.Set)
	assert.Equal(t, 2, gotSet.Len())
	assert.True(t, gotSet.Has([]byte("x")))
	assert.True(t, gotSet.Has([]byte("y")))

	e, ok = dst.DB(1).Get("myhash")
	require.True(t, ok)
	gotHash := e.Data.(*values.Hash)
	v1, _ := gotHash.Get([]byte("field1"))
	assert.Equal(t, []byte("v1"), v1)
	v2, _ := gotHash.Get([]byte("field2"))
	assert.Equal(t, []byte("v2"), v2)

	e, ok = dst.DB(2).Get("myzset")
	require.True(t, ok)
	gotZSet := e.Data.(*values.ZSet)
	score, ok := gotZSet.Score("alice")
	require.True(t, ok)
	assert.Equal(t, 1.5, score)
	score, ok = gotZSet.Score("bob")
	require.True(t, ok)
	assert.Equal(t, 2.75, score)

	e, ok = dst.DB(2).Get("mystream")
	require.True(t, ok)
	gotStream := e.Data.(*values.Stream)
	assert.Equal(t, 2, gotStream.Len())
	assert.Equal(t, values.StreamID{Ms: 2, Seq: 0}, gotStream.LastID())

	_, ok = dst.DB(0).Get("nosuchkey")
	assert.False(t, ok)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.rdb", []byte("not a snapshot at all"), 0o644))

	st := store.New(store.Options{Databases: 1, Shards: 1})
	err := Load(fs, st, "/bad.rdb")
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestSaveEmptyStoreProducesLoadableFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := store.New(store.Options{Databases: 2, Shards: 2})
	require.NoError(t, Save(fs, src, "/empty.rdb"))

	dst := store.New(store.Options{Databases: 2, Shards: 2})
	require.NoError(t, Load(fs, dst, "/empty.rdb"))
	assert.Equal(t, 0, dst.DB(0).Len())
	assert.Equal(t, 0, dst.DB(1).Len())
}
