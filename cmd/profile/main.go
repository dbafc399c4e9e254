// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

//go:build profile

// Command profile times the encrypted update pipeline stage by stage.
//
// Usage:
//
//	go build -tags profile -o profile ./cmd/profile
//	./profile -cpu=cpu.prof -mem=mem.prof -block=block.prof -dim=15 -generations=10
//
// Analyze profiles:
//
//	go tool pprof -http=:8080 cpu.prof
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/luxfi/fhegol"
	"github.com/luxfi/fhegol/evaluator"
	"github.com/luxfi/fhegol/game"
	"github.com/luxfi/fhegol/he"
	"github.com/luxfi/fhegol/life"
)

var (
	cpuProfile  = flag.String("cpu", "", "write cpu profile to file")
	memProfile  = flag.String("mem", "", "write memory profile to file")
	blkProfile  = flag.String("block", "", "write block profile to file")
	scheme      = flag.String("scheme", game.SchemeRLWE, "encryption scheme (rlwe|bgv)")
	dim         = flag.Int("dim", 15, "grid dimension")
	generations = flag.Int("generations", 10, "generations to run")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	profiler := fhegol.NewProfiler(fhegol.ProfileConfig{
		CPUProfile:   *cpuProfile,
		MemProfile:   *memProfile,
		BlockProfile: *blkProfile,
	})
	if err := profiler.Start(); err != nil {
		return err
	}
	defer profiler.Stop()

	log.Printf("Profiling %s on a %dx%d grid, %d generations, GOMAXPROCS %d",
		*scheme, *dim, *dim, *generations, runtime.GOMAXPROCS(0))

	timer := fhegol.NewTimer("key generation")
	hc, err := game.NewContext(*scheme)
	if err != nil {
		return err
	}
	timer.Stop(1)

	if err := profileStages(hc); err != nil {
		return err
	}
	if err := profileGenerations(hc); err != nil {
		return err
	}

	fhegol.LogMemStats()
	return nil
}

// profileStages times each stage of one generation separately.
func profileStages(hc he.Context) error {
	g := life.RandomGrid(*dim, life.DefaultDensity, 1)
	count := cells(*dim)

	timer := fhegol.NewTimer("count + encode")
	old, nb, err := life.Encode(g, life.NeighbourCount(g))
	if err != nil {
		return err
	}
	timer.Stop(1)

	timer = fhegol.NewTimer("encrypt")
	oldCts, err := life.EncryptGrid(hc, old)
	if err != nil {
		return err
	}
	nbCts, err := life.EncryptGrid(hc, nb)
	if err != nil {
		return err
	}
	timer.Stop(2 * count)

	timer = fhegol.NewTimer("evaluate")
	sum, err := evaluator.Evaluate(hc.Public(), evaluator.Request{Generation: 1, Old: oldCts, Neighbours: nbCts})
	if err != nil {
		return err
	}
	timer.Stop(count)

	timer = fhegol.NewTimer("marshal grid")
	blob, err := he.MarshalGrid(sum)
	if err != nil {
		return err
	}
	timer.Stop(count)
	log.Printf("Ciphertext grid: %d bytes (%d per cell)", len(blob), len(blob)/count)

	timer = fhegol.NewTimer("decrypt + threshold")
	if _, err := life.DecryptGrid(hc, sum, *dim); err != nil {
		return err
	}
	timer.Stop(count)
	return nil
}

// profileGenerations runs whole generations through the actor transport.
func profileGenerations(hc he.Context) error {
	cfg := game.DefaultConfig()
	cfg.Dim = *dim
	cfg.Scheme = *scheme
	cfg.Transport = game.TransportActor

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, err := game.Open(ctx, cfg, hc, log.New(os.Stderr, "", 0))
	if err != nil {
		return err
	}
	defer g.Close()

	timer := fhegol.NewTimer("generation (actor)")
	for range *generations {
		if _, err := g.Step(ctx); err != nil {
			return err
		}
	}
	d := timer.Stop(*generations)
	log.Printf("Throughput: %.1f cells/s", float64(*generations*cells(*dim))/d.Seconds())
	return nil
}

func cells(n int) int { return n * n }
