// Command gol runs an encrypted Game of Life and prints each generation to
// the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/fhegol/game"
	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/life"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaults := game.DefaultConfig()
	var (
		configPath  = flag.String("config", "", "YAML config file")
		dim         = flag.Int("dim", defaults.Dim, "grid dimension")
		density     = flag.Float64("density", defaults.Density, "initial live-cell probability")
		seed        = flag.Uint64("seed", defaults.Seed, "initial grid seed")
		transport   = flag.String("transport", defaults.Transport, "transport (actor|stream|redis)")
		scheme      = flag.String("scheme", defaults.Scheme, "encryption scheme (rlwe|bgv)")
		streamAddr  = flag.String("stream-addr", defaults.StreamAddr, "stream server address")
		redisAddr   = flag.String("redis", defaults.Redis.Addr, "Redis address")
		queueName   = flag.String("queue", defaults.Redis.Queue, "Redis queue name")
		delay       = flag.Duration("delay", defaults.GenerationDelay, "pause between generations")
		generations = flag.Int("generations", 0, "stop after this many generations (0 runs until interrupted)")
		clearScreen = flag.Bool("clear", true, "clear the terminal before each generation")
	)
	flag.Parse()

	cfg := defaults
	if *configPath != "" {
		var err error
		if cfg, err = game.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dim":
			cfg.Dim = *dim
		case "density":
			cfg.Density = *density
		case "seed":
			cfg.Seed = *seed
		case "transport":
			cfg.Transport = *transport
		case "scheme":
			cfg.Scheme = *scheme
		case "stream-addr":
			cfg.StreamAddr = *streamAddr
		case "redis":
			cfg.Redis.Addr = *redisAddr
		case "queue":
			cfg.Redis.Queue = *queueName
		case "delay":
			cfg.GenerationDelay = *delay
		}
	})
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	log.Printf("Game of Life starting...")
	log.Printf("  Grid: %dx%d (density %.2f, seed %d)", cfg.Dim, cfg.Dim, cfg.Density, cfg.Seed)
	log.Printf("  Transport: %s", cfg.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var hc he.Context
	if cfg.Transport != game.TransportStream {
		log.Printf("  Scheme: %s", cfg.Scheme)
		start := time.Now()
		var err error
		if hc, err = game.NewContext(cfg.Scheme); err != nil {
			return errors.Wrap(err, "create encryption context")
		}
		log.Printf("Keys generated in %v", time.Since(start))
	}

	g, err := game.Open(ctx, cfg, hc, log.Default())
	if err != nil {
		return err
	}
	defer g.Close()

	ctrl := game.NewController(g, cfg.GenerationDelay, log.Default())
	sink := &terminalSink{w: os.Stdout, clear: *clearScreen}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			ctrl.Stop()
			return nil
		case <-ctrl.Done():
			return ctrl.Err()
		}
	})
	eg.Go(func() error {
		ticker := time.NewTicker(cfg.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			ctrl.Drain(sink)
			if *generations > 0 && sink.last >= *generations {
				log.Printf("Reached generation %d", sink.last)
				stop()
				return nil
			}
		}
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	log.Println("Shutdown complete")
	return nil
}

// terminalSink prints each generation as rows of '#' and '.'.
type terminalSink struct {
	w     io.Writer
	clear bool
	last  int
}

func (s *terminalSink) Present(gen int, g *life.Grid) {
	if s.clear {
		fmt.Fprint(s.w, "\033[H\033[2J")
	}
	fmt.Fprintf(s.w, "generation %d, %d alive\n%s\n", gen, g.Alive(), g)
	s.last = gen
}
