// Package game drives the encrypted Game of Life: it owns the current grid,
// advances it one generation at a time over the configured transport, and
// runs the generation loop behind a start/stop controller.
package game

import (
	"context"
	"log"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/evaluator"
	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/life"
)

// Exchanger carries one encrypted update request to an evaluator and
// returns the element-wise sum.
type Exchanger interface {
	Exchange(ctx context.Context, req evaluator.Request) ([]he.Ciphertext, error)
}

// Stepper advances a plaintext grid somewhere else.
type Stepper interface {
	Step(ctx context.Context, g *life.Grid) (*life.Grid, error)
}

// Game holds the current grid and the transport that advances it.
type Game struct {
	mu   sync.Mutex
	grid *life.Grid
	gen  uint64

	// Exactly one of exchanger and stepper is set.
	hc        he.Context
	exchanger Exchanger
	stepper   Stepper

	closers []func() error
	logger  *log.Logger
}

// NewEncrypted returns a game whose generations are computed by an
// evaluator that only sees ciphertexts encrypted under hc.
func NewEncrypted(initial *life.Grid, hc he.Context, ex Exchanger) *Game {
	return &Game{grid: initial, hc: hc, exchanger: ex, logger: log.Default()}
}

// NewPlain returns a game advanced by a remote plaintext stepper.
func NewPlain(initial *life.Grid, st Stepper) *Game {
	return &Game{grid: initial, stepper: st, logger: log.Default()}
}

// Grid returns a copy of the current grid.
func (g *Game) Grid() *life.Grid {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grid.Clone()
}

// Generation returns how many steps have completed.
func (g *Game) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Encrypted reports whether the game uses an encrypted transport.
func (g *Game) Encrypted() bool { return g.exchanger != nil }

// Step advances the grid by one generation. On error the current grid is
// left as it was.
func (g *Game) Step(ctx context.Context) (*life.Grid, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		next *life.Grid
		err  error
	)
	if g.exchanger != nil {
		next, err = g.stepEncrypted(ctx)
	} else {
		next, err = g.stepper.Step(ctx, g.grid)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "generation %d", g.gen+1)
	}
	if next.Dim() != g.grid.Dim() {
		return nil, errors.Wrapf(life.ErrCountMismatch, "generation %d: got dimension %d, want %d",
			g.gen+1, next.Dim(), g.grid.Dim())
	}

	g.grid = next
	g.gen++
	return next.Clone(), nil
}

func (g *Game) stepEncrypted(ctx context.Context) (*life.Grid, error) {
	old, nb, err := life.Encode(g.grid, life.NeighbourCount(g.grid))
	if err != nil {
		return nil, err
	}

	oldCts, err := life.EncryptGrid(g.hc, old)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt old states")
	}
	nbCts, err := life.EncryptGrid(g.hc, nb)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt neighbour counts")
	}

	sum, err := g.exchanger.Exchange(ctx, evaluator.Request{
		Generation: g.gen + 1,
		Old:        oldCts,
		Neighbours: nbCts,
	})
	if err != nil {
		return nil, err
	}
	return life.DecryptGrid(g.hc, sum, g.grid.Dim())
}

// Close releases the transport.
func (g *Game) Close() error {
	var errs error
	for i := len(g.closers) - 1; i >= 0; i-- {
		errs = errors.CombineErrors(errs, g.closers[i]())
	}
	g.closers = nil
	return errs
}
