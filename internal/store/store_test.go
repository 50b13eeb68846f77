package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/torudis/internal/values"
)

func testStore() *Store {
	clock := int64(1000)
	return New(Options{Databases: 4, Shards: 4, Now: func() int64 { return clock }})
}

func TestDatabaseSetGetDelete(t *testing.T) {
	s := testStore()
	db := s.DB(0)

	db.Set("k", NewEntry(values.KindString, []byte("v")))
	e, ok := db.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(e.Data.([]byte)))

	assert.True(t, db.Delete("k"))
	_, ok = db.Get("k")
	assert.False(t, ok)
}

func TestDatabaseModCountIncrementsOnWrite(t *testing.T) {
	s := testStore()
	db := s.DB(0)

	db.Set("k", NewEntry(values.KindString, []byte("1")))
	first, _ := db.ModCount("k")
	db.Set("k", NewEntry(values.KindString, []byte("2")))
	second, _ := db.ModCount("k")
	assert.Greater(t, second, first)
}

func TestDatabaseExpire(t *testing.T) {
	now := int64(1000)
	s := New(Options{Databases: 1, Shards: 1, Now: func() int64 { return now }})
	db := s.DB(0)
	db.Set("k", NewEntry(values.KindString, []byte("v")))

	require.True(t, db.Expire("k", now+500))
	_, ok := db.Get("k")
	assert.True(t, ok)

	now += 1000
	_, ok = db.Get("k")
	assert.False(t, ok, "key should be lazily expired once the deadline passes")
}

func TestMultiKeyLockOrdering(t *testing.T) {
	s := testStore()
	db := s.DB(0)
	db.Set("a", NewEntry(values.KindString, []byte("1")))
	db.Set("b", NewEntry(values.KindString, []byte("2")))

	var seenA, seenB string
	db.WithKeysLocked([]string{"a", "b"}, func() {
		ea, _ := db.GetLocked("a")
		eb, _ := db.GetLocked("b")
		seenA = string(ea.Data.([]byte))
		seenB = string(eb.Data.([]byte))
	})
	assert.Equal(t, "1", seenA)
	assert.Equal(t, "2", seenB)
}

func TestDatabaseKeysAndLen(t *testing.T) {
	s := testStore()
	db := s.DB(0)
	db.Set("foo1", NewEntry(values.KindString, []byte("a")))
	db.Set("foo2", NewEntry(values.KindString, []byte("b")))
	db.Set("bar", NewEntry(values.KindString, []byte("c")))

	assert.Equal(t, 3, db.Len())
	keys := db.Keys(func(k string) bool { return len(k) >= 4 && k[:3] == "foo" })
	assert.Len(t, keys, 2)
}

func TestMutationHooksFireOnSetAndDelete(t *testing.T) {
	s := testStore()
	db := s.DB(0)

	var got []Mutation
	db.AddHook(func(m Mutation) { got = append(got, m) })

	db.Set("k", NewEntry(values.KindString, []byte("v")))
	db.Delete("k")

	require.Len(t, got, 2)
	assert.Equal(t, MutationSet, got[0].Kind)
	assert.Equal(t, MutationDelete, got[1].Kind)
}

func TestStoreEvictHookFiresOnLRUEviction(t *testing.T) {
	s := New(Options{Databases: 1, Shards: 1, MaxMemoryBytes: 1, Now: func() int64 { return 1 }})
	evicted := make(chan string, 1)
	s.OnEvict(func(db int, key string) { evicted <- key })

	db := s.DB(0)
	db.Set("k", NewEntry(values.KindString, []byte("v")))

	s.lru.RemoveOldest()

	select {
	case key := <-evicted:
		assert.Equal(t, "k", key)
	default:
		t.Fatal("expected evict hook to fire")
	}
}

func TestNoteReportsOverBudget(t *testing.T) {
	s := New(Options{Databases: 1, Shards: 1, MaxMemoryBytes: 100, Now: func() int64 { return 1 }})
	assert.False(t, s.Note(50))
	assert.True(t, s.Note(60))
}
