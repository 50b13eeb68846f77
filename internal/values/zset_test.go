package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZSetSetAndScore(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	z.Set("a", 3) // update moves a above b

	score, ok := z.Score("a")
	require.True(t, ok)
	assert.Equal(t, float64(3), score)
	assert.Equal(t, 2, z.Len())

	rank, ok := z.Rank("b")
	require.True(t, ok)
	assert.Equal(t, 0, rank)
}

func TestZSetRangeByRank(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	z.Set("c", 3)

	members := z.RangeByRank(0, -1, false)
	require.Len(t, members, 3)
	assert.Equal(t, "a", members[0].Value)
	assert.Equal(t, "c", members[2].Value)

	rev := z.RangeByRank(0, 0, true)
	require.Len(t, rev, 1)
	assert.Equal(t, "c", rev[0].Value)
}

func TestZSetTieBreakByMember(t *testing.T) {
	z := NewZSet()
	z.Set("zeta", 1)
	z.Set("alpha", 1)
	members := z.RangeByRank(0, -1, false)
	require.Len(t, members, 2)
	assert.Equal(t, "alpha", members[0].Value)
	assert.Equal(t, "zeta", members[1].Value)
}

func TestZSetRangeByScore(t *testing.T) {
	z := NewZSet()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Set(m, float64(i))
	}
	got := z.RangeByScore(ScoreRange{Min: 1, Max: 2}, false, 0, -1)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Value)
	assert.Equal(t, "c", got[1].Value)

	got = z.RangeByScore(ScoreRange{Min: 1, Max: 2, MinExcl: true}, false, 0, -1)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Value)
}

func TestZSetRemoveAndPop(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	assert.True(t, z.Remove("a"))
	assert.False(t, z.Remove("a"))

	z.Set("c", 3)
	popped := z.PopMin(1)
	require.Len(t, popped, 1)
	assert.Equal(t, "b", popped[0].Value)
}

func TestZSetRangeByLex(t *testing.T) {
	z := NewZSet()
	for _, m := range []string{"a", "b", "c", "d"} {
		z.Set(m, 0)
	}
	got := z.RangeByLex(LexRange{Min: "b", Max: "c"}, false)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Value)
	assert.Equal(t, "c", got[1].Value)
}
