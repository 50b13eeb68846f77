package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPushPop(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("a"), []byte("b"), []byte("c"))
	require.Equal(t, 3, l.Len())

	l.PushLeft([]byte("z"))
	v, ok := l.Index(0)
	require.True(t, ok)
	assert.Equal(t, "z", string(v))

	popped := l.PopRight(2)
	require.Len(t, popped, 2)
	assert.Equal(t, "c", string(popped[0]))
	assert.Equal(t, "b", string(popped[1]))
}

func TestListRangeAndTrim(t *testing.T) {
	l := NewList()
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		l.PushRight([]byte(s))
	}
	got := l.Range(1, 3)
	assert.Equal(t, []string{"b", "c", "d"}, toStringSlice(got))

	got = l.Range(-2, -1)
	assert.Equal(t, []string{"d", "e"}, toStringSlice(got))

	l.Trim(1, 3)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"b", "c", "d"}, toStringSlice(l.Range(0, -1)))
}

func TestListSetIndex(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("a"), []byte("b"))
	require.True(t, l.SetIndex(1, []byte("z")))
	assert.False(t, l.SetIndex(5, []byte("x")))
	v, _ := l.Index(1)
	assert.Equal(t, "z", string(v))
}

func TestListRemoveMatching(t *testing.T) {
	l := NewList()
	for _, s := range []string{"a", "x", "a", "x", "a"} {
		l.PushRight([]byte(s))
	}
	removed := l.RemoveMatching(2, []byte("a"))
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"x", "x", "a"}, toStringSlice(l.Range(0, -1)))
}

func TestListInsertRelative(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("a"), []byte("c"))
	ok := l.InsertRelative(false, []byte("a"), []byte("b"))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, toStringSlice(l.Range(0, -1)))
}

func toStringSlice(in [][]byte) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
