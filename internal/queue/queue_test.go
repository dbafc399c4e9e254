package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	q := NewRedisQueue(client, "test")
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueue(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	first := &Job{Generation: 1, Dim: 3, OldHandle: "a", NeighbourHandle: "b"}
	second := &Job{Generation: 2, Dim: 3, OldHandle: "c", NeighbourHandle: "d"}
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))
	require.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "jobs pop in push order")
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "b", got.NeighbourHandle)

	got.Status = StatusCompleted
	got.ResultHandle = "r"
	require.NoError(t, q.Update(ctx, got))

	stored, err := q.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.Done())
	assert.Equal(t, "r", stored.ResultHandle)

	require.NoError(t, q.Delete(ctx, first.ID))
	_, err = q.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, ErrJobNotFound))

	next, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Generation)
}

func TestRedisQueueConnectionFailure(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.True(t, errors.Is(err, ErrConnectionLost))
}

func TestJobStatus(t *testing.T) {
	assert.Equal(t, "processing", StatusProcessing.String())
	assert.False(t, StatusProcessing.Done())
	assert.True(t, StatusFailed.Done())
}

func TestRedisQueueUpdateDoesNotRecreate(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	job := &Job{Generation: 1, Dim: 1, OldHandle: "a", NeighbourHandle: "b"}
	require.NoError(t, q.Push(ctx, job))
	require.NoError(t, q.Delete(ctx, job.ID))

	job.Status = StatusCompleted
	err := q.Update(ctx, job)
	assert.True(t, errors.Is(err, ErrJobNotFound))

	_, err = q.Get(ctx, job.ID)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestRedisQueueTake(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	job := &Job{Generation: 4, Dim: 2, OldHandle: "a", NeighbourHandle: "b"}
	require.NoError(t, q.Push(ctx, job))

	got, err := q.Take(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Generation)

	_, err = q.Take(ctx, job.ID)
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.True(t, errors.Is(q.Update(ctx, got), ErrJobNotFound))
}
