package life

// Counts holds the live-neighbour count of every cell, row-major.
type Counts struct {
	n      int
	counts []uint8
}

// Dim returns N.
func (c *Counts) Dim() int { return c.n }

// At returns the count for column x, row y.
func (c *Counts) At(x, y int) int { return int(c.counts[y*c.n+x]) }

// Values returns a copy of the counts.
func (c *Counts) Values() []uint8 { return append([]uint8(nil), c.counts...) }

var directions = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// NeighbourCount sums the eight toroidally adjacent cells of every cell.
// Edges and corners wrap like any other cell; a cell never counts itself,
// although on grids smaller than 3×3 wrapped neighbours may alias it.
func NeighbourCount(g *Grid) *Counts {
	n := g.n
	out := &Counts{n: n, counts: make([]uint8, n*n)}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			alive := uint8(0)
			for _, d := range directions {
				alive += g.cells[g.Index(x+d[0], y+d[1])]
			}
			out.counts[y*n+x] = alive
		}
	}
	return out
}
