// Command gol-evaluator runs remote evaluator workers. It adds encrypted
// grids it takes from the job queue and never holds a key.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/fhegol/evaluator"
	"github.com/luxfi/fhegol/game"
	"github.com/luxfi/fhegol/internal/queue"
	"github.com/luxfi/fhegol/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		numWorkers  = flag.Int("workers", 4, "number of worker goroutines")
		redisAddr   = flag.String("redis", "localhost:6379", "Redis address")
		redisPass   = flag.String("redis-password", "", "Redis password")
		redisDB     = flag.Int("redis-db", 0, "Redis database number")
		queueName   = flag.String("queue", "gol", "queue name")
		scheme      = flag.String("scheme", game.SchemeRLWE, "encryption scheme (rlwe|bgv)")
		storagePath = flag.String("storage", "", "ciphertext storage path (default: Redis)")
		metricsAddr = flag.String("metrics", ":9090", "metrics server address")
	)
	flag.Parse()

	log.Printf("Evaluator starting...")
	log.Printf("  Workers: %d", *numWorkers)
	log.Printf("  Redis: %s (queue %s)", *redisAddr, *queueName)
	log.Printf("  Scheme: %s", *scheme)
	log.Printf("  Metrics: %s", *metricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := queue.NewRedisClient(ctx, queue.RedisConfig{
		Addr:     *redisAddr,
		Password: *redisPass,
		DB:       *redisDB,
	})
	if err != nil {
		return errors.Wrap(err, "connect queue")
	}
	q := queue.NewRedisQueue(client, *queueName)
	defer q.Close()

	var store storage.Storage
	if *storagePath != "" {
		store, err = storage.NewFileStorage(*storagePath)
		if err != nil {
			return errors.Wrap(err, "create storage")
		}
		log.Printf("  Storage: %s", *storagePath)
	} else {
		store = storage.NewRedisStorage(client, game.BlobPrefix(*queueName), time.Hour)
	}
	defer store.Close()

	// Parameters only; no key material.
	ev, err := game.NewEvaluator(*scheme)
	if err != nil {
		return err
	}

	pool := evaluator.NewWorkerPool(*numWorkers, q, store, ev, log.Default())
	if err := pool.Start(ctx); err != nil {
		return errors.Wrap(err, "start workers")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "# HELP gol_evaluations_total Total grid evaluations\n")
		fmt.Fprintf(w, "# TYPE gol_evaluations_total counter\n")
		fmt.Fprintf(w, "gol_evaluations_total{status=\"success\"} %d\n", pool.Successes())
		fmt.Fprintf(w, "gol_evaluations_total{status=\"failure\"} %d\n", pool.Failures())
		fmt.Fprintf(w, "gol_evaluations_total{status=\"abandoned\"} %d\n", pool.Abandoned())
	})

	server := &http.Server{
		Addr:              *metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Metrics server starting on %s", *metricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	if err := pool.Stop(30 * time.Second); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
