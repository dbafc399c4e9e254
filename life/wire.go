package life

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// ErrMalformedGrid is returned for payloads that do not decode to a grid of
// the expected dimension.
var ErrMalformedGrid = errors.New("life: malformed grid payload")

const headerSize = 4

// MessageSize is the exact byte length of an encoded N×N grid. Both ends of
// the stream transport derive it from the configured dimension.
func MessageSize(n int) int {
	return headerSize + n*n
}

// MarshalBinary encodes the grid as a big-endian uint32 dimension followed by
// one byte (0 or 1) per cell, row-major.
func (g *Grid) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MessageSize(g.n))
	binary.BigEndian.PutUint32(buf, uint32(g.n))
	copy(buf[headerSize:], g.cells)
	return buf, nil
}

// UnmarshalGrid decodes a payload produced by MarshalBinary and checks it
// against the expected dimension.
func UnmarshalGrid(data []byte, n int) (*Grid, error) {
	if len(data) != MessageSize(n) {
		return nil, errors.Wrapf(ErrMalformedGrid, "%d bytes, want %d", len(data), MessageSize(n))
	}
	if got := binary.BigEndian.Uint32(data); got != uint32(n) {
		return nil, errors.Wrapf(ErrMalformedGrid, "dimension %d, want %d", got, n)
	}
	g, err := FromCells(n, data[headerSize:])
	if err != nil {
		return nil, errors.Mark(err, ErrMalformedGrid)
	}
	return g, nil
}
