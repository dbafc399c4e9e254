package game

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol"
	"github.com/luxfi/fhegol/bgv"
	"github.com/luxfi/fhegol/evaluator"
	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/internal/storage"
	"github.com/luxfi/fhegol/life"
	"github.com/luxfi/fhegol/server"
)

// blobTTL bounds how long an untaken ciphertext grid stays in Redis.
const blobTTL = time.Hour

// NewContext generates keys for the named scheme.
func NewContext(scheme string) (he.Context, error) {
	switch scheme {
	case SchemeRLWE:
		hc, err := fhegol.NewDefaultContext()
		if err != nil {
			return nil, err
		}
		return hc, nil
	case SchemeBGV:
		hc, err := bgv.NewDefaultContext()
		if err != nil {
			return nil, err
		}
		return hc, nil
	default:
		return nil, errors.Newf("unknown scheme %q", scheme)
	}
}

// NewEvaluator returns the key-free evaluator for the named scheme.
func NewEvaluator(scheme string) (he.Evaluator, error) {
	switch scheme {
	case SchemeRLWE:
		ev, err := fhegol.NewDefaultEvaluator()
		if err != nil {
			return nil, err
		}
		return ev, nil
	case SchemeBGV:
		ev, err := bgv.NewDefaultEvaluator()
		if err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, errors.Newf("unknown scheme %q", scheme)
	}
}

// BlobPrefix is the Redis key prefix for ciphertext grids.
func BlobPrefix(queueName string) string {
	return "gol:blob:" + queueName + ":"
}

// Open builds a game for cfg: a random initial grid and the configured
// transport. hc may be nil for the stream transport. The in-process actor,
// when used, runs until ctx ends or the game is closed.
func Open(ctx context.Context, cfg Config, hc he.Context, logger *log.Logger) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	initial := life.RandomGrid(cfg.Dim, cfg.Density, cfg.Seed)

	if cfg.Transport == TransportStream {
		g := NewPlain(initial, &server.Client{
			Address:        cfg.StreamAddr,
			Dim:            cfg.Dim,
			ReadBufferSize: cfg.ReadBufferSize,
			Timeout:        cfg.ResponseTimeout,
		})
		g.logger = logger
		return g, nil
	}

	if hc == nil {
		return nil, errors.Newf("%s transport needs an encryption context", cfg.Transport)
	}

	switch cfg.Transport {
	case TransportActor:
		actor := evaluator.NewActor(hc.Public(), evaluator.Options{
			ResponseTimeout: cfg.ResponseTimeout,
			Logger:          logger,
		})
		if err := actor.Start(ctx); err != nil {
			return nil, err
		}
		g := NewEncrypted(initial, hc, actor)
		g.logger = logger
		g.closers = append(g.closers, func() error { actor.Stop(); return nil })
		return g, nil

	default:
		client, err := queue.NewRedisClient(ctx, cfg.Redis.RedisConfig)
		if err != nil {
			return nil, err
		}
		q := queue.NewRedisQueue(client, cfg.Redis.Queue)

		var store storage.Storage
		if cfg.StoragePath != "" {
			store, err = storage.NewFileStorage(cfg.StoragePath)
			if err != nil {
				q.Close()
				return nil, err
			}
		} else {
			store = storage.NewRedisStorage(client, BlobPrefix(cfg.Redis.Queue), blobTTL)
		}

		remote := evaluator.NewRemoteClient(q, store, hc.Public(), cfg.PollInterval, cfg.ResponseTimeout)
		g := NewEncrypted(initial, hc, remote)
		g.logger = logger
		g.closers = append(g.closers, q.Close)
		if cfg.StoragePath != "" {
			g.closers = append(g.closers, store.Close)
		}
		logger.Printf("Using Redis evaluator queue %q at %s", cfg.Redis.Queue, cfg.Redis.Addr)
		return g, nil
	}
}
