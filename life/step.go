package life

// Step applies the standard Game of Life rule to an unencrypted grid. It is
// the reference the stream server runs and the encrypted path must agree
// with.
func Step(g *Grid) *Grid {
	counts := NeighbourCount(g)
	next := NewGrid(g.n)
	for i, c := range g.cells {
		nb := counts.counts[i]
		if (c == Alive && (nb == 2 || nb == 3)) || (c == Dead && nb == 3) {
			next.cells[i] = Alive
		}
	}
	return next
}
