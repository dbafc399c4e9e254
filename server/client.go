package server

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/life"
)

// Client sends one grid per connection and reads back the next generation.
type Client struct {
	Address        string
	Dim            int
	ReadBufferSize int
	Timeout        time.Duration
}

// Step sends g to the server and returns the grid it computed.
func (c *Client) Step(ctx context.Context, g *life.Grid) (*life.Grid, error) {
	if g.Dim() != c.Dim {
		return nil, errors.Wrapf(life.ErrCountMismatch, "grid dimension %d, transport configured for %d", g.Dim(), c.Dim)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", c.Address)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	// Unblock reads when ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	payload, err := g.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, errors.Wrap(err, "send grid")
	}

	reply, err := ReadMessage(conn, life.MessageSize(c.Dim), c.ReadBufferSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "await response")
		}
		return nil, err
	}
	return life.UnmarshalGrid(reply, c.Dim)
}
