// Package life holds the plaintext side of the encrypted Game of Life: the
// toroidal grid, the neighbour counter, the rule encoding that reduces a
// generation step to one addition per cell, and the ciphertext codec.
package life

import (
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/errors"
)

// Cell states.
const (
	Dead  uint8 = 0
	Alive uint8 = 1
)

// DefaultDensity is the probability that a cell starts alive.
const DefaultDensity = 0.15

// Grid is an N×N toroidal board stored row-major. Its dimension never
// changes; generations replace the whole grid rather than mutating it.
type Grid struct {
	n     int
	cells []uint8
}

// NewGrid returns an all-dead grid. It panics if n < 1.
func NewGrid(n int) *Grid {
	if n < 1 {
		panic("life: grid dimension must be positive")
	}
	return &Grid{n: n, cells: make([]uint8, n*n)}
}

// RandomGrid seeds each cell alive independently with probability density.
func RandomGrid(n int, density float64, seed uint64) *Grid {
	g := NewGrid(n)
	rng := rand.New(rand.NewPCG(seed, 0))
	for i := range g.cells {
		if rng.Float64() < density {
			g.cells[i] = Alive
		}
	}
	return g
}

// FromCells builds a grid from row-major 0/1 values. The slice is copied.
func FromCells(n int, cells []uint8) (*Grid, error) {
	if n < 1 || len(cells) != n*n {
		return nil, errors.Wrapf(ErrCountMismatch, "%d cells for dimension %d", len(cells), n)
	}
	for i, c := range cells {
		if c > Alive {
			return nil, errors.Wrapf(ErrCellState, "cell %d holds %d", i, c)
		}
	}
	return &Grid{n: n, cells: append([]uint8(nil), cells...)}, nil
}

// MustFromRows builds a grid from rows of '.' (dead) and any other rune
// (alive). It panics on ragged input and is meant for fixtures.
func MustFromRows(rows ...string) *Grid {
	g := NewGrid(len(rows))
	for y, row := range rows {
		if len(row) != g.n {
			panic("life: ragged grid rows")
		}
		for x, r := range row {
			if r != '.' {
				g.cells[g.Index(x, y)] = Alive
			}
		}
	}
	return g
}

// Dim returns N.
func (g *Grid) Dim() int { return g.n }

// Index returns the row-major index of (x, y), wrapping both coordinates.
func (g *Grid) Index(x, y int) int {
	x = (x%g.n + g.n) % g.n
	y = (y%g.n + g.n) % g.n
	return y*g.n + x
}

// At returns the state of column x, row y with toroidal wrapping.
func (g *Grid) At(x, y int) uint8 { return g.cells[g.Index(x, y)] }

// Set sets a cell. Only grids not yet published may be mutated.
func (g *Grid) Set(x, y int, state uint8) {
	if state != Dead {
		state = Alive
	}
	g.cells[g.Index(x, y)] = state
}

// Cells returns a copy of the row-major cell states.
func (g *Grid) Cells() []uint8 { return append([]uint8(nil), g.cells...) }

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	return &Grid{n: g.n, cells: g.Cells()}
}

// Equal reports whether both grids have the same dimension and cells.
func (g *Grid) Equal(o *Grid) bool {
	if g.n != o.n {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Alive counts live cells.
func (g *Grid) Alive() int {
	n := 0
	for _, c := range g.cells {
		n += int(c)
	}
	return n
}

// Translate returns the grid shifted by (dx, dy) with wraparound.
func (g *Grid) Translate(dx, dy int) *Grid {
	out := NewGrid(g.n)
	for y := 0; y < g.n; y++ {
		for x := 0; x < g.n; x++ {
			out.cells[out.Index(x+dx, y+dy)] = g.cells[y*g.n+x]
		}
	}
	return out
}

// String renders the grid with '#' for live and '.' for dead cells.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow(g.n * (g.n + 1))
	for y := 0; y < g.n; y++ {
		for x := 0; x < g.n; x++ {
			if g.cells[y*g.n+x] == Alive {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
