package life

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGrid(t *testing.T) {
	g := RandomGrid(100, DefaultDensity, 7)
	assert.Equal(t, 100, g.Dim())

	// 10000 Bernoulli(0.15) draws land well inside this band.
	alive := g.Alive()
	assert.Greater(t, alive, 1200)
	assert.Less(t, alive, 1800)

	assert.True(t, g.Equal(RandomGrid(100, DefaultDensity, 7)), "same seed, same grid")
	assert.False(t, g.Equal(RandomGrid(100, DefaultDensity, 8)))

	assert.Zero(t, RandomGrid(10, 0, 1).Alive())
	assert.Equal(t, 100, RandomGrid(10, 1, 1).Alive())
}

func TestFromCells(t *testing.T) {
	g, err := FromCells(2, []uint8{1, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, Alive, g.At(0, 0))
	assert.Equal(t, Alive, g.At(1, 1))
	assert.Equal(t, Dead, g.At(1, 0))

	_, err = FromCells(2, []uint8{1, 0, 0})
	assert.True(t, errors.Is(err, ErrCountMismatch))

	_, err = FromCells(2, []uint8{1, 0, 2, 0})
	assert.True(t, errors.Is(err, ErrCellState))
}

func TestGridIsolation(t *testing.T) {
	g := MustFromRows(
		"#..",
		"...",
		"...",
	)
	cells := g.Cells()
	cells[0] = Dead
	assert.Equal(t, Alive, g.At(0, 0), "Cells returns a copy")

	c := g.Clone()
	c.Set(0, 0, Dead)
	assert.Equal(t, Alive, g.At(0, 0), "Clone is independent")
}

func TestWrap(t *testing.T) {
	g := MustFromRows(
		"...",
		"...",
		"..#",
	)
	assert.Equal(t, Alive, g.At(-1, -1))
	assert.Equal(t, Alive, g.At(5, 5))
	assert.Equal(t, Dead, g.At(3, 3))
}

func TestTranslateAndString(t *testing.T) {
	g := MustFromRows(
		"#..",
		"...",
		"...",
	)
	assert.Equal(t, "...\n.#.\n...\n", g.Translate(1, 1).String())
	assert.Equal(t, "..#\n...\n...\n", g.Translate(-1, 0).String())
	assert.True(t, g.Equal(g.Translate(3, -3)))
}
