package game

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/life"
)

// ErrAlreadyRunning is returned by Start while a loop is active.
var ErrAlreadyRunning = errors.New("game: already running")

// Frame is one generation ready for presentation.
type Frame struct {
	Generation int
	Grid       *life.Grid
}

// Sink presents generations, oldest first.
type Sink interface {
	Present(gen int, g *life.Grid)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(gen int, g *life.Grid)

func (f SinkFunc) Present(gen int, g *life.Grid) { f(gen, g) }

// Controller runs the generation loop of a Game and queues each new grid
// for a presenter that drains at its own pace.
type Controller struct {
	game    *Game
	delay   time.Duration
	logger  *log.Logger
	results *queue.Mailbox[Frame]
	state   runState

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewController creates a stopped controller. delay is the pause between
// generations.
func NewController(g *Game, delay time.Duration, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		game:    g,
		delay:   delay,
		logger:  logger,
		results: queue.NewMailbox[Frame](),
	}
}

// State returns the loop state.
func (c *Controller) State() RunState { return c.state.load() }

// Results is the queue of generations not yet presented.
func (c *Controller) Results() *queue.Mailbox[Frame] { return c.results }

// Start emits the current grid and launches the loop. It returns
// ErrAlreadyRunning unless the controller is stopped.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.transition(Stopped, Running) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel, c.done, c.err = cancel, done, nil
	c.mu.Unlock()

	c.publish(int(c.game.Generation()), c.game.Grid())
	go c.loop(ctx, done)
	return nil
}

// Stop halts the loop, waits for it and discards undelivered results. The
// grid keeps the last completed generation.
func (c *Controller) Stop() {
	c.state.transition(Running, Stopping)

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if n := c.results.Clear(); n > 0 {
		c.logger.Printf("Discarded %d undelivered generations", n)
	}
}

// Done is closed when the current loop exits.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the error that ended the last loop, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Drain presents every queued generation and returns how many there were.
func (c *Controller) Drain(sink Sink) int {
	frames := c.results.Drain()
	for _, f := range frames {
		sink.Present(f.Generation, f.Grid)
	}
	return len(frames)
}

func (c *Controller) publish(gen int, g *life.Grid) {
	if err := c.results.Push(Frame{Generation: gen, Grid: g}); err != nil {
		c.logger.Printf("Dropping generation %d: %v", gen, err)
	}
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		c.state.transition(Running, Stopping)
		c.state.transition(Stopping, Stopped)
		close(done)
	}()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	for c.state.load() == Running {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next, err := c.game.Step(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Printf("Generation loop stopped: %v", err)
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
		c.publish(int(c.game.Generation()), next)
		timer.Reset(c.delay)
	}
}
