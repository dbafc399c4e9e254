package evaluator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/internal/queue"
)

// State is the actor's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return "stopped"
	}
}

// Options configures an Actor.
type Options struct {
	// ResponseTimeout bounds Exchange. Zero waits until ctx ends.
	ResponseTimeout time.Duration
	Logger          *log.Logger
}

// Actor simulates a remote evaluator in-process. It owns an inbound and an
// outbound mailbox and handles one request at a time in arrival order.
// Callers must not submit a request before consuming the previous response.
type Actor struct {
	ev      he.Evaluator
	opts    Options
	inbound *queue.Mailbox[Request]
	outbox  *queue.Mailbox[Response]

	state     atomic.Int32
	processed atomic.Uint64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewActor creates an idle actor around a key-free evaluator.
func NewActor(ev he.Evaluator, opts Options) *Actor {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Actor{
		ev:      ev,
		opts:    opts,
		inbound: queue.NewMailbox[Request](),
		outbox:  queue.NewMailbox[Response](),
		done:    make(chan struct{}),
	}
}

// Start runs the actor on its own goroutine until ctx ends or Stop is called.
func (a *Actor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)
	go a.run(ctx)
	return nil
}

// Stop lets an in-progress request finish and publish its response, then
// waits for the actor to exit.
func (a *Actor) Stop() {
	a.mu.Lock()
	started, cancel := a.started, a.cancel
	a.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-a.done
}

// State returns the current lifecycle state.
func (a *Actor) State() State { return State(a.state.Load()) }

// Processed returns the number of requests handled.
func (a *Actor) Processed() uint64 { return a.processed.Load() }

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)
	defer a.state.Store(int32(StateStopped))

	a.opts.Logger.Printf("Evaluator actor started")
	for {
		req, err := a.inbound.Pop(ctx)
		if err != nil {
			a.opts.Logger.Printf("Evaluator actor stopping after %d requests", a.processed.Load())
			return
		}

		a.state.Store(int32(StateProcessing))
		sum, err := Evaluate(a.ev, req)
		if err != nil {
			a.opts.Logger.Printf("Evaluator actor: generation %d failed: %v", req.Generation, err)
		}
		// The outbox is only closed by the actor itself, so this cannot fail.
		_ = a.outbox.Push(Response{Generation: req.Generation, Sum: sum, Err: err})
		a.processed.Add(1)
		a.state.Store(int32(StateIdle))
	}
}

// Submit enqueues a request. It never blocks.
func (a *Actor) Submit(req Request) error {
	if a.State() == StateStopped {
		return ErrStopped
	}
	return a.inbound.Push(req)
}

// Receive waits for the next response.
func (a *Actor) Receive(ctx context.Context) (Response, error) {
	return a.outbox.Pop(ctx)
}

// Exchange submits req and waits for its response, bounded by
// ResponseTimeout. Responses left over from earlier timed-out exchanges are
// discarded.
func (a *Actor) Exchange(ctx context.Context, req Request) ([]he.Ciphertext, error) {
	if err := a.Submit(req); err != nil {
		return nil, err
	}

	if a.opts.ResponseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ResponseTimeout)
		defer cancel()
	}

	for {
		resp, err := a.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Wrapf(ErrResponseTimeout, "generation %d", req.Generation)
			}
			return nil, err
		}
		switch {
		case resp.Generation < req.Generation:
			a.opts.Logger.Printf("Evaluator actor: dropping stale response for generation %d", resp.Generation)
			continue
		case resp.Generation > req.Generation:
			return nil, errors.Wrapf(ErrOutOfOrder, "got %d, want %d", resp.Generation, req.Generation)
		}
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Sum, nil
	}
}
