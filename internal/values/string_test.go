package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrInt(t *testing.T) {
	encoded, n, err := IncrInt([]byte("10"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
	assert.Equal(t, "15", string(encoded))

	_, _, err = IncrInt([]byte("not-a-number"), 1)
	assert.ErrorIs(t, err, ErrNotInteger)

	_, _, err = IncrInt(nil, 1)
	require.NoError(t, err)
}

func TestIncrIntOverflow(t *testing.T) {
	_, _, err := IncrInt(FormatStringInt(9223372036854775807), 1)
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestIncrFloat(t *testing.T) {
	encoded, f, err := IncrFloat([]byte("10.5"), 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 10.6, f, 1e-9)
	assert.Equal(t, "10.6", string(encoded))
}

func TestGetRange(t *testing.T) {
	s := []byte("Hello World")
	assert.Equal(t, "Hello", string(GetRange(s, 0, 4)))
	assert.Equal(t, "World", string(GetRange(s, -5, -1)))
	assert.Equal(t, s, GetRange(s, 0, -1))
	assert.Equal(t, []byte{}, GetRange(s, 20, 30))
}

func TestSetRange(t *testing.T) {
	out, err := SetRange([]byte("Hello World"), 6, []byte("Redis"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Redis", string(out))

	out, err = SetRange(nil, 5, []byte("Hi"))
	require.NoError(t, err)
	assert.Equal(t, "\x00\x00\x00\x00\x00Hi", string(out))
}
