package evaluator

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/internal/storage"
	"github.com/luxfi/fhegol/life"
)

func newRedisQueue(t *testing.T) *queue.RedisQueue {
	q, _ := newRedisQueueServer(t)
	return q
}

func newRedisQueueServer(t *testing.T) (*queue.RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := queue.NewRedisClient(context.Background(), queue.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	q := queue.NewRedisQueue(client, "worker-test")
	t.Cleanup(func() { q.Close() })
	return q, mr
}

// countBlobs returns the number of files a FileStorage holds under dir.
func countBlobs(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func jobKeys(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "gol:job:") {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestRemoteRoundTrip(t *testing.T) {
	hctx := newContext(t)
	q := newRedisQueue(t)
	store := storage.NewMemoryStorage(64)

	pool := NewWorkerPool(2, q, store, hctx.Public(), quiet)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	client := NewRemoteClient(q, store, hctx, 5*time.Millisecond, 10*time.Second)

	g := life.MustFromRows(
		".....",
		"..#..",
		"..#..",
		"..#..",
		".....",
	)
	for gen := uint64(1); gen <= 2; gen++ {
		old, nb, err := life.Encode(g, life.NeighbourCount(g))
		require.NoError(t, err)
		sum, err := client.Exchange(context.Background(), Request{
			Generation: gen,
			Old:        encrypt(t, hctx, old),
			Neighbours: encrypt(t, hctx, nb),
		})
		require.NoError(t, err)

		next, err := life.DecryptGrid(hctx, sum, 5)
		require.NoError(t, err)
		assert.True(t, life.Step(g).Equal(next), "generation %d", gen)
		g = next
	}

	assert.Equal(t, int64(2), pool.Successes())
	assert.Zero(t, pool.Failures())
}

func TestRemoteJobFailure(t *testing.T) {
	hctx := newContext(t)
	q := newRedisQueue(t)
	store := storage.NewMemoryStorage(64)

	pool := NewWorkerPool(1, q, store, hctx.Public(), quiet)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	// Bypass the client checks: a job whose grids disagree in length.
	ctx := context.Background()
	oldBlob, err := he.MarshalGrid(encrypt(t, hctx, []int64{1, 1, 1, 1}))
	require.NoError(t, err)
	nbBlob, err := he.MarshalGrid(encrypt(t, hctx, []int64{1}))
	require.NoError(t, err)
	oh, err := store.Store(ctx, oldBlob)
	require.NoError(t, err)
	nh, err := store.Store(ctx, nbBlob)
	require.NoError(t, err)

	job := &queue.Job{Generation: 1, Dim: 2, OldHandle: string(oh), NeighbourHandle: string(nh)}
	require.NoError(t, q.Push(ctx, job))

	require.Eventually(t, func() bool {
		got, err := q.Get(ctx, job.ID)
		return err == nil && got.Status == queue.StatusFailed
	}, 5*time.Second, 5*time.Millisecond)

	got, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Error, "does not match")
	assert.Equal(t, int64(1), pool.Failures())
}

func TestRemoteTimeout(t *testing.T) {
	hctx := newContext(t)
	q := newRedisQueue(t)
	store := storage.NewMemoryStorage(64)

	// No workers: the job is never picked up.
	client := NewRemoteClient(q, store, hctx, 5*time.Millisecond, 30*time.Millisecond)
	_, err := client.Exchange(context.Background(), Request{
		Generation: 1,
		Old:        encrypt(t, hctx, []int64{1}),
		Neighbours: encrypt(t, hctx, []int64{0}),
	})
	assert.True(t, errors.Is(err, ErrResponseTimeout))
}

func TestRemoteRejectsMismatch(t *testing.T) {
	hctx := newContext(t)
	client := NewRemoteClient(newRedisQueue(t), storage.NewMemoryStorage(1), hctx, 0, time.Second)

	_, err := client.Exchange(context.Background(), Request{
		Old:        encrypt(t, hctx, []int64{1, 1}),
		Neighbours: encrypt(t, hctx, []int64{1}),
	})
	assert.True(t, errors.Is(err, life.ErrCountMismatch))

	_, err = client.Exchange(context.Background(), Request{
		Old:        encrypt(t, hctx, []int64{1, 1}),
		Neighbours: encrypt(t, hctx, []int64{1, 1}),
	})
	assert.Error(t, err, "two cells are not a square grid")
}

func TestRemoteTimeoutWithdrawsJob(t *testing.T) {
	hctx := newContext(t)
	q, mr := newRedisQueueServer(t)
	dir := t.TempDir()
	store, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	client := NewRemoteClient(q, store, hctx, 5*time.Millisecond, 50*time.Millisecond)
	_, err = client.Exchange(context.Background(), Request{
		Generation: 1,
		Old:        encrypt(t, hctx, []int64{1}),
		Neighbours: encrypt(t, hctx, []int64{0}),
	})
	require.True(t, errors.Is(err, ErrResponseTimeout))
	assert.Zero(t, countBlobs(t, dir), "inputs of a withdrawn job are deleted")
	assert.Empty(t, jobKeys(mr))

	// A worker arriving late skips the withdrawn job.
	pool := NewWorkerPool(1, q, store, hctx.Public(), quiet)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	require.Eventually(t, func() bool {
		l, _ := mr.List("gol:queue:worker-test")
		return len(l) == 0
	}, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, pool.Successes())
	assert.Empty(t, jobKeys(mr), "worker must not recreate the job record")
	assert.Zero(t, countBlobs(t, dir))
}

func TestWorkerDropsResultOfWithdrawnJob(t *testing.T) {
	hctx := newContext(t)
	q, mr := newRedisQueueServer(t)
	dir := t.TempDir()
	store, err := storage.NewFileStorage(dir)
	require.NoError(t, err)

	gate := &gatedEvaluator{Evaluator: hctx.Public(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	pool := NewWorkerPool(1, q, store, gate, quiet)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	client := NewRemoteClient(q, store, hctx, 5*time.Millisecond, time.Second)
	errc := make(chan error, 1)
	go func() {
		_, err := client.Exchange(context.Background(), Request{
			Generation: 1,
			Old:        encrypt(t, hctx, []int64{1}),
			Neighbours: encrypt(t, hctx, []int64{2}),
		})
		errc <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never started evaluating")
	}
	// The client times out while the worker is still adding.
	select {
	case err := <-errc:
		require.True(t, errors.Is(err, ErrResponseTimeout))
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not time out")
	}
	close(gate.release)

	require.Eventually(t, func() bool { return pool.Abandoned() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, pool.Successes())
	assert.Zero(t, countBlobs(t, dir), "result of a withdrawn job is deleted")
	assert.Empty(t, jobKeys(mr))
}
