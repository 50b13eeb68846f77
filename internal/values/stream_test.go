package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAppendAndAutoID(t *testing.T) {
	s := NewStream()
	id := s.NextAutoID(1000)
	require.NoError(t, s.Append(id, []StreamField{{Field: []byte("f"), Value: []byte("v")}}))
	assert.Equal(t, StreamID{Ms: 1000, Seq: 0}, s.LastID())

	next := s.NextAutoID(1000)
	assert.Equal(t, StreamID{Ms: 1000, Seq: 1}, next)
}

func TestStreamAppendRejectsNonIncreasing(t *testing.T) {
	s := NewStream()
	require.NoError(t, s.Append(StreamID{Ms: 5, Seq: 0}, nil))
	err := s.Append(StreamID{Ms: 5, Seq: 0}, nil)
	assert.ErrorIs(t, err, ErrStreamIDNotIncreasing)
}

func TestStreamRange(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Append(StreamID{Ms: i, Seq: 0}, nil))
	}
	got := s.Range(StreamID{Ms: 2}, StreamID{Ms: 4}, 0)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].ID.Ms)

	rev := s.RevRange(StreamID{Ms: 2}, StreamID{Ms: 4}, 0)
	require.Len(t, rev, 3)
	assert.Equal(t, uint64(4), rev[0].ID.Ms)
}

func TestStreamTrimMaxLen(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Append(StreamID{Ms: i, Seq: 0}, nil))
	}
	discarded := s.TrimMaxLen(2)
	assert.Equal(t, 3, discarded)
	assert.Equal(t, 2, s.Len())
}

func TestStreamTrimMinID(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Append(StreamID{Ms: i, Seq: 0}, nil))
	}
	discarded := s.TrimMinID(StreamID{Ms: 3})
	assert.Equal(t, 2, discarded)
	assert.Equal(t, 3, s.Len())
}

func TestStreamDelete(t *testing.T) {
	s := NewStream()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, s.Append(StreamID{Ms: i, Seq: 0}, nil))
	}
	removed := s.Delete(StreamID{Ms: 2, Seq: 0})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, s.Len())
}

func TestParseStreamID(t *testing.T) {
	id, err := ParseStreamID("123-4", 0)
	require.NoError(t, err)
	assert.Equal(t, StreamID{Ms: 123, Seq: 4}, id)

	id, err = ParseStreamID("123", 7)
	require.NoError(t, err)
	assert.Equal(t, StreamID{Ms: 123, Seq: 7}, id)

	_, err = ParseStreamID("bogus", 0)
	assert.ErrorIs(t, err, ErrInvalidStreamID)
}

func TestConsumerGroupLifecycle(t *testing.T) {
	s := NewStream()
	g := s.Group("mygroup", StreamID{})
	require.NotNil(t, g)
	g2 := s.Group("mygroup", StreamID{Ms: 99})
	assert.Same(t, g, g2)

	assert.True(t, s.DeleteGroup("mygroup"))
	assert.False(t, s.DeleteGroup("mygroup"))
}
