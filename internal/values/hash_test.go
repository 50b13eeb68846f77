package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSetGetDelete(t *testing.T) {
	h := NewHash()
	assert.True(t, h.Set([]byte("f1"), []byte("v1")))
	assert.False(t, h.Set([]byte("f1"), []byte("v2")))
	v, ok := h.Get([]byte("f1"))
	require.True(t, ok)
	assert.Equal(t, "v2", string(v))

	assert.Equal(t, 1, h.Delete([]byte("f1"), []byte("missing")))
	_, ok = h.Get([]byte("f1"))
	assert.False(t, ok)
}

func TestHashSetNX(t *testing.T) {
	h := NewHash()
	assert.True(t, h.SetNX([]byte("f"), []byte("v1")))
	assert.False(t, h.SetNX([]byte("f"), []byte("v2")))
	v, _ := h.Get([]byte("f"))
	assert.Equal(t, "v1", string(v))
}

func TestHashIncrBy(t *testing.T) {
	h := NewHash()
	n, err := h.IncrBy([]byte("counter"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = h.IncrBy([]byte("counter"), -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestHashIncrByFloat(t *testing.T) {
	h := NewHash()
	f, err := h.IncrByFloat([]byte("counter"), 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-9)
}
