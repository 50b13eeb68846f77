package values

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAddRemoveHas(t *testing.T) {
	s := NewSet()
	added := s.Add([]byte("a"), []byte("b"), []byte("a"))
	assert.Equal(t, 2, added)
	assert.True(t, s.Has([]byte("a")))
	assert.Equal(t, 1, s.Remove([]byte("a"), []byte("z")))
	assert.False(t, s.Has([]byte("a")))
}

func TestSetUnionInterDiff(t *testing.T) {
	a := NewSet()
	a.Add([]byte("1"), []byte("2"), []byte("3"))
	b := NewSet()
	b.Add([]byte("2"), []byte("3"), []byte("4"))

	union := Union(a, b)
	assert.Equal(t, 4, union.Len())

	inter := Inter(a, b)
	require.Equal(t, 2, inter.Len())
	assert.True(t, inter.Has([]byte("2")))
	assert.True(t, inter.Has([]byte("3")))

	diff := Diff(a, b)
	require.Equal(t, 1, diff.Len())
	assert.True(t, diff.Has([]byte("1")))
}

func TestSetRandomAndPop(t *testing.T) {
	s := NewSet()
	s.Add([]byte("a"), []byte("b"), []byte("c"))

	repeated := s.Random(-5)
	assert.Len(t, repeated, 5)

	distinct := s.Random(2)
	assert.Len(t, distinct, 2)

	popped := s.Pop(2)
	assert.Len(t, popped, 2)
	assert.Equal(t, 1, s.Len())

	members := toStringSliceSorted(s.Members())
	assert.Len(t, members, 1)
}

func toStringSliceSorted(in [][]byte) []string {
	out := toStringSlice(in)
	sort.Strings(out)
	return out
}
