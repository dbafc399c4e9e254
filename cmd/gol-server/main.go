// Command gol-server serves the stream transport: it advances each grid it
// receives by one generation in the clear.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/fhegol/game"
	"github.com/luxfi/fhegol/server"
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
		configPath = flag.String("config", "", "YAML config file")
		addr       = flag.String("addr", defaults.StreamAddr, "listen address")
		dim        = flag.Int("dim", defaults.Dim, "grid dimension")
		bufSize    = flag.Int("read-buffer", defaults.ReadBufferSize, "maximum bytes per read")
		ioTimeout  = flag.Duration("io-timeout", time.Minute, "per-connection deadline (0 disables)")
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
		case "addr":
			cfg.StreamAddr = *addr
		case "dim":
			cfg.Dim = *dim
		case "read-buffer":
			cfg.ReadBufferSize = *bufSize
		}
	})

	srv, err := server.New(server.Config{
		Address:        cfg.StreamAddr,
		Dim:            cfg.Dim,
		ReadBufferSize: cfg.ReadBufferSize,
		IOTimeout:      *ioTimeout,
		Logger:         log.Default(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	log.Println("Shutdown complete")
	return nil
}
