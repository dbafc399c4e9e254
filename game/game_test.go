package game

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhegol/evaluator"
	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/internal/storage"
	"github.com/luxfi/fhegol/life"
	"github.com/luxfi/fhegol/server"
)

var quiet = log.New(io.Discard, "", 0)

func newActorGame(t *testing.T, scheme string, initial *life.Grid) *Game {
	t.Helper()
	hc, err := NewContext(scheme)
	require.NoError(t, err)

	actor := evaluator.NewActor(hc.Public(), evaluator.Options{ResponseTimeout: 30 * time.Second, Logger: quiet})
	require.NoError(t, actor.Start(context.Background()))
	t.Cleanup(actor.Stop)

	return NewEncrypted(initial, hc, actor)
}

func blinker() *life.Grid {
	return life.MustFromRows(
		".....",
		".....",
		".###.",
		".....",
		".....",
	)
}

func TestEncryptedMatchesPlain(t *testing.T) {
	for _, scheme := range []string{SchemeRLWE, SchemeBGV} {
		t.Run(scheme, func(t *testing.T) {
			t.Run("blinker", func(t *testing.T) {
				g := newActorGame(t, scheme, blinker())
				want := blinker()
				for range 4 {
					got, err := g.Step(context.Background())
					require.NoError(t, err)
					want = life.Step(want)
					require.True(t, want.Equal(got), "got\n%s\nwant\n%s", got, want)
				}
				assert.Equal(t, uint64(4), g.Generation())
				assert.True(t, blinker().Equal(g.Grid()))
			})

			t.Run("random", func(t *testing.T) {
				initial := life.RandomGrid(8, 0.35, 42)
				g := newActorGame(t, scheme, initial)
				want := initial.Clone()
				for range 3 {
					got, err := g.Step(context.Background())
					require.NoError(t, err)
					want = life.Step(want)
					require.True(t, want.Equal(got))
				}
			})
		})
	}
}

func TestIsolatedCellDies(t *testing.T) {
	g := newActorGame(t, SchemeRLWE, life.MustFromRows(
		"...",
		".#.",
		"...",
	))

	for range 3 {
		got, err := g.Step(context.Background())
		require.NoError(t, err)
		assert.Zero(t, got.Alive())
	}
}

type failingExchanger struct{ err error }

func (f failingExchanger) Exchange(context.Context, evaluator.Request) ([]he.Ciphertext, error) {
	return nil, f.err
}

type shortExchanger struct{}

func (shortExchanger) Exchange(_ context.Context, req evaluator.Request) ([]he.Ciphertext, error) {
	return req.Old[:1], nil
}

func TestStepErrorKeepsGrid(t *testing.T) {
	hc, err := NewContext(SchemeRLWE)
	require.NoError(t, err)
	initial := blinker()

	g := NewEncrypted(initial.Clone(), hc, failingExchanger{err: evaluator.ErrResponseTimeout})
	_, err = g.Step(context.Background())
	assert.True(t, errors.Is(err, evaluator.ErrResponseTimeout))
	assert.True(t, initial.Equal(g.Grid()))
	assert.Zero(t, g.Generation())

	g = NewEncrypted(initial.Clone(), hc, shortExchanger{})
	_, err = g.Step(context.Background())
	assert.True(t, errors.Is(err, life.ErrCountMismatch))
	assert.True(t, initial.Equal(g.Grid()))
}

func TestStreamTransport(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv, err := server.New(server.Config{Dim: 12, Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	cfg := DefaultConfig()
	cfg.Dim = 12
	cfg.Transport = TransportStream
	cfg.StreamAddr = ln.Addr().String()
	cfg.ResponseTimeout = 5 * time.Second

	g, err := Open(ctx, cfg, nil, quiet)
	require.NoError(t, err)
	defer g.Close()
	assert.False(t, g.Encrypted())

	want := g.Grid()
	for range 5 {
		got, err := g.Step(ctx)
		require.NoError(t, err)
		want = life.Step(want)
		require.True(t, want.Equal(got))
	}
}

func TestStreamTransportServerDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	g := NewPlain(blinker(), &server.Client{Address: addr, Dim: 5, Timeout: time.Second})
	_, err = g.Step(context.Background())
	assert.Error(t, err)
	assert.True(t, blinker().Equal(g.Grid()))
}

func TestRedisTransport(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Dim = 6
	cfg.Transport = TransportRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Queue = "game-test"
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ResponseTimeout = 20 * time.Second

	// Evaluator side, as cmd/gol-evaluator wires it.
	client, err := queue.NewRedisClient(ctx, cfg.Redis.RedisConfig)
	require.NoError(t, err)
	q := queue.NewRedisQueue(client, cfg.Redis.Queue)
	defer q.Close()
	ev, err := NewEvaluator(cfg.Scheme)
	require.NoError(t, err)
	store := storage.NewRedisStorage(client, BlobPrefix(cfg.Redis.Queue), time.Minute)
	pool := evaluator.NewWorkerPool(1, q, store, ev, quiet)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop(5 * time.Second)

	hc, err := NewContext(cfg.Scheme)
	require.NoError(t, err)
	g, err := Open(ctx, cfg, hc, quiet)
	require.NoError(t, err)
	defer g.Close()

	want := g.Grid()
	for range 2 {
		got, err := g.Step(ctx)
		require.NoError(t, err)
		want = life.Step(want)
		require.True(t, want.Equal(got))
	}
	assert.Equal(t, int64(2), pool.Successes())
}

func TestOpenNeedsContext(t *testing.T) {
	_, err := Open(context.Background(), DefaultConfig(), nil, quiet)
	assert.Error(t, err)
}
