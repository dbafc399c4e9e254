package evaluator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/internal/storage"
	"github.com/luxfi/fhegol/life"
)

// RemoteClient exchanges update requests with a WorkerPool through a job
// queue and shared storage.
type RemoteClient struct {
	queue   queue.Queue
	storage storage.Storage
	// ev only unmarshals results; the client context satisfies it.
	ev           he.Evaluator
	pollInterval time.Duration
	timeout      time.Duration
}

// NewRemoteClient creates a client polling job status every pollInterval.
func NewRemoteClient(q queue.Queue, store storage.Storage, ev he.Evaluator, pollInterval, timeout time.Duration) *RemoteClient {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &RemoteClient{
		queue:        q,
		storage:      store,
		ev:           ev,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Exchange stores both grids, enqueues a job and waits for its result.
func (c *RemoteClient) Exchange(ctx context.Context, req Request) ([]he.Ciphertext, error) {
	if len(req.Old) != len(req.Neighbours) {
		return nil, errors.Wrapf(life.ErrCountMismatch, "generation %d: %d old vs %d neighbour ciphertexts",
			req.Generation, len(req.Old), len(req.Neighbours))
	}
	dim := isqrt(len(req.Old))
	if dim*dim != len(req.Old) {
		return nil, errors.Newf("evaluator: %d ciphertexts do not form a square grid", len(req.Old))
	}

	oldHandle, err := c.store(ctx, req.Old)
	if err != nil {
		return nil, errors.Wrap(err, "store old grid")
	}
	nbHandle, err := c.store(ctx, req.Neighbours)
	if err != nil {
		c.discard(oldHandle)
		return nil, errors.Wrap(err, "store neighbour grid")
	}

	job := &queue.Job{
		Generation:      req.Generation,
		Dim:             dim,
		OldHandle:       string(oldHandle),
		NeighbourHandle: string(nbHandle),
	}
	if err := c.queue.Push(ctx, job); err != nil {
		c.discard(oldHandle, nbHandle)
		return nil, err
	}

	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done, err := c.wait(waitCtx, job.ID)
	if err != nil {
		c.abandon(job.ID, oldHandle, nbHandle)
		return nil, err
	}
	defer c.queue.Delete(context.WithoutCancel(ctx), job.ID)

	if done.Status == queue.StatusFailed {
		return nil, errors.Wrapf(ErrRemoteFailure, "job %s: %s", done.ID, done.Error)
	}

	data, err := c.storage.Take(ctx, storage.Handle(done.ResultHandle))
	if err != nil {
		return nil, errors.Wrap(err, "load result grid")
	}
	return he.UnmarshalGrid(c.ev, data)
}

// abandon withdraws a job nobody waits for any more. Taking the record makes
// a later worker update fail, and that worker then drops its own result, so
// every blob is deleted by exactly one side.
func (c *RemoteClient) abandon(id string, inputs ...storage.Handle) {
	job, err := c.queue.Take(context.Background(), id)
	if err == nil && job.ResultHandle != "" {
		inputs = append(inputs, storage.Handle(job.ResultHandle))
	}
	c.discard(inputs...)
}

func (c *RemoteClient) wait(ctx context.Context, id string) (*queue.Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.queue.Get(ctx, id)
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if err == nil && job.Status.Done() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrapf(ErrResponseTimeout, "job %s", id)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *RemoteClient) store(ctx context.Context, cts []he.Ciphertext) (storage.Handle, error) {
	data, err := he.MarshalGrid(cts)
	if err != nil {
		return "", err
	}
	return c.storage.Store(ctx, data)
}

// discard removes inputs that no job will ever take.
func (c *RemoteClient) discard(handles ...storage.Handle) {
	for _, h := range handles {
		_ = c.storage.Delete(context.Background(), h)
	}
}

func isqrt(n int) int {
	r := 0
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
