// Package queue provides the request queues between the client and the
// evaluator: an in-process Mailbox for the actor path and a Redis-backed job
// queue for evaluators running in another process.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	uuid "gopkg.in/satori/go.uuid.v1"
)

// Common errors.
var (
	ErrClosed         = errors.New("queue is closed")
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrJobNotFound    = errors.New("job not found")
	ErrConnectionLost = errors.New("queue connection lost")
)

// JobStatus represents the state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one generation's update request. The ciphertext grids themselves
// live in storage; the job only carries their handles.
type Job struct {
	ID              string    `json:"id"`
	Generation      uint64    `json:"generation"`
	Dim             int       `json:"dim"`
	OldHandle       string    `json:"old_handle"`
	NeighbourHandle string    `json:"neighbour_handle"`
	ResultHandle    string    `json:"result_handle,omitempty"`
	Status          JobStatus `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Queue defines the interface for job queue operations.
type Queue interface {
	// Push adds a job to the queue, assigning an ID if it has none.
	Push(ctx context.Context, job *Job) error
	// Pop retrieves and removes the next job, or returns ErrQueueEmpty
	// after a short wait.
	Pop(ctx context.Context) (*Job, error)
	// Update updates job status. It returns ErrJobNotFound once the job
	// was deleted or taken, and never recreates the record.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*Job, error)
	// Delete forgets a finished job.
	Delete(ctx context.Context, id string) error
	// Take atomically reads and deletes a job.
	Take(ctx context.Context, id string) (*Job, error)
	// Close closes the queue connection.
	Close() error
}

// RedisQueue implements Queue using Redis.
type RedisQueue struct {
	client    *redis.Client
	queueKey  string
	jobPrefix string
	ttl       time.Duration
	// popWait bounds each BRPOP so cancelled contexts are noticed promptly.
	popWait time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Mark(errors.Wrap(err, "redis ping"), ErrConnectionLost)
	}
	return client, nil
}

// NewRedisQueue creates a queue on an existing client. Closing the queue
// closes the client.
func NewRedisQueue(client *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueKey:  "gol:queue:" + queueName,
		jobPrefix: "gol:job:",
		ttl:       time.Hour,
		popWait:   time.Second,
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewV4().String()
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobPrefix+job.ID, data, q.ttl)
	pipe.LPush(ctx, q.queueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "push job")
	}

	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, q.popWait, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "pop job")
	}

	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	return q.Get(ctx, result[1])
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}

	ok, err := q.client.SetXX(ctx, q.jobPrefix+job.ID, data, q.ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "update job")
	}
	if !ok {
		return errors.Wrapf(ErrJobNotFound, "job %s", job.ID)
	}

	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrJobNotFound, "job %s", id)
		}
		return nil, errors.Wrap(err, "get job")
	}

	return decodeJob(data)
}

func (q *RedisQueue) Take(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.GetDel(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrJobNotFound, "job %s", id)
		}
		return nil, errors.Wrap(err, "take job")
	}
	return decodeJob(data)
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errors.Wrap(err, "unmarshal job")
	}
	return &job, nil
}

func (q *RedisQueue) Delete(ctx context.Context, id string) error {
	n, err := q.client.Del(ctx, q.jobPrefix+id).Result()
	if err != nil {
		return errors.Wrap(err, "delete job")
	}
	if n == 0 {
		return errors.Wrapf(ErrJobNotFound, "job %s", id)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
