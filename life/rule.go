package life

import (
	"github.com/cockroachdb/errors"
)

// Protocol defects. Any of these aborts the generation being computed.
var (
	ErrNeighbourRange = errors.New("life: neighbour count out of range")
	ErrCellState      = errors.New("life: cell state not 0 or 1")
	ErrCountMismatch  = errors.New("life: value count does not match grid")
)

// Encoded neighbour counts. Adding the raw old state (0 or 1) yields a sum
// that is positive exactly when Conway's rule makes the cell alive:
//
//	old=1: 1+0=1, 1+2=3 survive; 1-2=-1 dies
//	old=0: 0+2=2 born; 0+0=0, 0-2=-2 stay dead
const (
	encodedTwo   int64 = 0
	encodedThree int64 = 2
	encodedOther int64 = -2
)

// EncodeNeighbours maps a live-neighbour count to its additive encoding.
func EncodeNeighbours(count int) (int64, error) {
	switch {
	case count < 0 || count > 8:
		return 0, errors.Wrapf(ErrNeighbourRange, "count %d", count)
	case count == 2:
		return encodedTwo, nil
	case count == 3:
		return encodedThree, nil
	default:
		return encodedOther, nil
	}
}

// EncodeOld passes the previous cell state through unchanged.
func EncodeOld(state uint8) (int64, error) {
	if state > Alive {
		return 0, errors.Wrapf(ErrCellState, "state %d", state)
	}
	return int64(state), nil
}

// Threshold turns a decrypted sum into the next cell state.
func Threshold(v int64) uint8 {
	if v > 0 {
		return Alive
	}
	return Dead
}

// Encode produces the two row-major plaintext grids for one generation.
func Encode(g *Grid, counts *Counts) (old, neighbours []int64, err error) {
	if counts.n != g.n {
		return nil, nil, errors.Wrapf(ErrCountMismatch, "counts for %d, grid %d", counts.n, g.n)
	}
	old = make([]int64, len(g.cells))
	neighbours = make([]int64, len(g.cells))
	for i := range g.cells {
		if old[i], err = EncodeOld(g.cells[i]); err != nil {
			return nil, nil, errors.Wrapf(err, "cell %d", i)
		}
		if neighbours[i], err = EncodeNeighbours(int(counts.counts[i])); err != nil {
			return nil, nil, errors.Wrapf(err, "cell %d", i)
		}
	}
	return old, neighbours, nil
}

// ThresholdSums builds the next grid from plaintext sums, row-major.
func ThresholdSums(n int, sums []int64) (*Grid, error) {
	if len(sums) != n*n {
		return nil, errors.Wrapf(ErrCountMismatch, "%d sums for dimension %d", len(sums), n)
	}
	g := NewGrid(n)
	for i, v := range sums {
		g.cells[i] = Threshold(v)
	}
	return g, nil
}
