package life

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conway(old uint8, neighbours int) uint8 {
	if (old == Alive && (neighbours == 2 || neighbours == 3)) || (old == Dead && neighbours == 3) {
		return Alive
	}
	return Dead
}

func TestEncodingMatchesConway(t *testing.T) {
	for _, old := range []uint8{Dead, Alive} {
		for n := 0; n <= 8; n++ {
			o, err := EncodeOld(old)
			require.NoError(t, err)
			e, err := EncodeNeighbours(n)
			require.NoError(t, err)
			assert.Equal(t, conway(old, n), Threshold(o+e), "old=%d neighbours=%d", old, n)
		}
	}
}

func TestEncodeNeighbours(t *testing.T) {
	testCases := []struct {
		count int
		want  int64
	}{
		{0, -2}, {1, -2}, {2, 0}, {3, 2}, {4, -2}, {8, -2},
	}
	for _, tc := range testCases {
		got, err := EncodeNeighbours(tc.count)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "count %d", tc.count)
	}

	for _, bad := range []int{-1, 9, 100} {
		_, err := EncodeNeighbours(bad)
		assert.True(t, errors.Is(err, ErrNeighbourRange), "count %d", bad)
	}

	_, err := EncodeOld(2)
	assert.True(t, errors.Is(err, ErrCellState))
}

func TestEncode(t *testing.T) {
	g := MustFromRows(
		"...",
		"###",
		"...",
	)
	old, nb, err := Encode(g, NeighbourCount(g))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0, 1, 1, 1, 0, 0, 0}, old)
	// On a 3x3 torus every cell sees the whole row of three, minus itself
	// when it sits in that row.
	assert.Equal(t, []int64{2, 2, 2, 0, 0, 0, 2, 2, 2}, nb)

	_, _, err = Encode(g, NeighbourCount(NewGrid(4)))
	assert.True(t, errors.Is(err, ErrCountMismatch))
}

func TestStep(t *testing.T) {
	blinker := MustFromRows(
		".....",
		"..#..",
		"..#..",
		"..#..",
		".....",
	)
	next := Step(blinker)
	assert.Equal(t, ".....\n.....\n.###.\n.....\n.....\n", next.String())
	assert.True(t, blinker.Equal(Step(next)))

	lone := MustFromRows(
		"...",
		".#.",
		"...",
	)
	assert.Zero(t, Step(lone).Alive())
}

func TestStepAgreesWithEncoding(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		g := RandomGrid(12, 0.3, seed)
		old, nb, err := Encode(g, NeighbourCount(g))
		require.NoError(t, err)
		sums := make([]int64, len(old))
		for i := range old {
			sums[i] = old[i] + nb[i]
		}
		next, err := ThresholdSums(12, sums)
		require.NoError(t, err)
		assert.True(t, Step(g).Equal(next), "seed %d", seed)
	}
}
