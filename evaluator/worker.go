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
	"github.com/luxfi/fhegol/internal/storage"
)

// WorkerPool evaluates jobs from a shared queue. It is the out-of-process
// counterpart of Actor.
type WorkerPool struct {
	numWorkers     int
	queue          queue.Queue
	storage        storage.Storage
	ev             he.Evaluator
	logger         *log.Logger
	wg             sync.WaitGroup
	cancel         context.CancelFunc
	running        atomic.Bool
	successCount   atomic.Int64
	failureCount   atomic.Int64
	abandonedCount atomic.Int64
}

// NewWorkerPool creates a pool; ev must be the key-free evaluator.
func NewWorkerPool(numWorkers int, q queue.Queue, store storage.Storage, ev he.Evaluator, logger *log.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		queue:      q,
		storage:    store,
		ev:         ev,
		logger:     logger,
	}
}

// Successes returns the number of completed jobs.
func (p *WorkerPool) Successes() int64 { return p.successCount.Load() }

// Failures returns the number of failed jobs.
func (p *WorkerPool) Failures() int64 { return p.failureCount.Load() }

// Abandoned returns the number of jobs withdrawn by their client.
func (p *WorkerPool) Abandoned() int64 { return p.abandonedCount.Load() }

// Start starts the worker pool.
func (p *WorkerPool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Printf("Starting %d workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Stop lets in-flight jobs finish and waits for the workers, up to timeout.
func (p *WorkerPool) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}

	p.logger.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Println("Worker pool stopped")
	case <-time.After(timeout):
		p.logger.Println("Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			p.logger.Printf("Worker %d stopping", id)
			return
		default:
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) {
				continue
			}
			if errors.Is(err, queue.ErrJobNotFound) {
				p.logger.Printf("Worker %d: skipping withdrawn job: %v", id, err)
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			p.logger.Printf("Worker %d: failed to pop job: %v", id, err)
			time.Sleep(time.Second)
			continue
		}

		// A job that was popped is always finished, even during shutdown.
		p.processJob(context.WithoutCancel(ctx), id, job)
	}
}

func (p *WorkerPool) processJob(ctx context.Context, workerID int, job *queue.Job) {
	p.logger.Printf("Worker %d: processing job %s (generation %d)", workerID, job.ID, job.Generation)

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			p.logger.Printf("Worker %d: job %s withdrawn before processing", workerID, job.ID)
			p.discard(ctx, storage.Handle(job.OldHandle), storage.Handle(job.NeighbourHandle))
			p.abandonedCount.Add(1)
			return
		}
		p.logger.Printf("Worker %d: failed to update job status: %v", workerID, err)
	}

	handle, err := p.evaluate(ctx, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		if err := p.queue.Update(ctx, job); err != nil && !errors.Is(err, queue.ErrJobNotFound) {
			p.logger.Printf("Worker %d: failed to record failure: %v", workerID, err)
		}
		p.failureCount.Add(1)
		p.logger.Printf("Worker %d: job %s failed: %v", workerID, job.ID, err)
		return
	}

	job.Status = queue.StatusCompleted
	job.ResultHandle = string(handle)
	if err := p.queue.Update(ctx, job); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			// The client gave up; nobody will take the result.
			p.logger.Printf("Worker %d: job %s withdrawn, dropping result", workerID, job.ID)
			p.discard(ctx, handle)
			p.abandonedCount.Add(1)
			return
		}
		p.logger.Printf("Worker %d: failed to update job result: %v", workerID, err)
	}

	p.successCount.Add(1)
	p.logger.Printf("Worker %d: job %s completed", workerID, job.ID)
}

func (p *WorkerPool) evaluate(ctx context.Context, job *queue.Job) (storage.Handle, error) {
	old, err := p.take(ctx, job.OldHandle)
	if err != nil {
		return "", errors.Wrap(err, "load old grid")
	}
	neighbours, err := p.take(ctx, job.NeighbourHandle)
	if err != nil {
		return "", errors.Wrap(err, "load neighbour grid")
	}
	if len(old) != job.Dim*job.Dim {
		return "", errors.Newf("job declares dimension %d but carries %d ciphertexts", job.Dim, len(old))
	}

	sum, err := Evaluate(p.ev, Request{Generation: job.Generation, Old: old, Neighbours: neighbours})
	if err != nil {
		return "", err
	}

	data, err := he.MarshalGrid(sum)
	if err != nil {
		return "", errors.Wrap(err, "marshal result")
	}
	handle, err := p.storage.Store(ctx, data)
	if err != nil {
		return "", errors.Wrap(err, "store result")
	}
	return handle, nil
}

func (p *WorkerPool) discard(ctx context.Context, handles ...storage.Handle) {
	for _, h := range handles {
		if err := p.storage.Delete(ctx, h); err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.Printf("Failed to delete %s: %v", h, err)
		}
	}
}

func (p *WorkerPool) take(ctx context.Context, handle string) ([]he.Ciphertext, error) {
	data, err := p.storage.Take(ctx, storage.Handle(handle))
	if err != nil {
		return nil, err
	}
	return he.UnmarshalGrid(p.ev, data)
}
