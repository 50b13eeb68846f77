package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiQueueExec(t *testing.T) {
	s := New(1)
	require.True(t, s.BeginMulti())
	assert.False(t, s.BeginMulti(), "nested MULTI must not reset the buffer")

	s.Queue([][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	buf := s.EndTransaction()
	require.Len(t, buf, 1)
	assert.Equal(t, ModeNormal, s.Mode)
}

func TestDirtyTransactionAborts(t *testing.T) {
	s := New(1)
	s.BeginMulti()
	s.MarkDirty()
	assert.True(t, s.IsDirty())
	s.EndTransaction()
	assert.Equal(t, ModeNormal, s.Mode)
}

func TestWatchInvalidation(t *testing.T) {
	s := New(1)
	s.Watch(0, "k", 5)
	s.NotifyMutation(0, "k")
	assert.True(t, s.Dirty)

	s.ClearWatches()
	assert.False(t, s.Dirty)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := New(1)
	n := s.Subscribe("a", "b")
	assert.Equal(t, 2, n)
	assert.True(t, s.IsSubscribed())

	_, n = s.Unsubscribe("a")
	assert.Equal(t, 1, n)
	assert.True(t, s.IsSubscribed())

	_, n = s.Unsubscribe("b")
	assert.Equal(t, 0, n)
	assert.False(t, s.IsSubscribed())
}

func TestReset(t *testing.T) {
	s := New(1)
	s.Authenticated = true
	s.Select(3)
	s.Subscribe("chan")
	s.Reset()

	assert.False(t, s.Authenticated)
	assert.Equal(t, 0, s.SelectedDB)
	assert.False(t, s.IsSubscribed())
}
