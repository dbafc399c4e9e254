// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

//go:build profile

package fhegol

import (
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/cockroachdb/errors"
)

// ProfileConfig names the profile files to write. Empty names are skipped.
type ProfileConfig struct {
	CPUProfile   string
	MemProfile   string
	BlockProfile string
}

// Profiler collects pprof profiles around a workload
type Profiler struct {
	config    ProfileConfig
	cpuFile   *os.File
	startTime time.Time
}

// NewProfiler creates a profiler
func NewProfiler(config ProfileConfig) *Profiler {
	return &Profiler{config: config}
}

// Start begins CPU and block profiling
func (p *Profiler) Start() error {
	p.startTime = time.Now()

	if p.config.BlockProfile != "" {
		runtime.SetBlockProfileRate(1)
	}

	if p.config.CPUProfile != "" {
		f, err := os.Create(p.config.CPUProfile)
		if err != nil {
			return errors.Wrap(err, "create CPU profile")
		}
		p.cpuFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return errors.Wrap(err, "start CPU profile")
		}
	}
	return nil
}

// Stop ends profiling and writes the remaining profiles
func (p *Profiler) Stop() error {
	log.Printf("Profiled for %v", time.Since(p.startTime))

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		log.Printf("CPU profile written to %s", p.config.CPUProfile)
	}

	if p.config.MemProfile != "" {
		runtime.GC()
		if err := writeProfile(p.config.MemProfile, "heap"); err != nil {
			return err
		}
		log.Printf("Memory profile written to %s", p.config.MemProfile)
	}

	if p.config.BlockProfile != "" {
		err := writeProfile(p.config.BlockProfile, "block")
		runtime.SetBlockProfileRate(0)
		if err != nil {
			return err
		}
		log.Printf("Block profile written to %s", p.config.BlockProfile)
	}
	return nil
}

func writeProfile(path, name string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s profile", name)
	}
	defer f.Close()
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return errors.Wrapf(err, "write %s profile", name)
	}
	return nil
}

// LogMemStats logs heap statistics
func LogMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("Heap: alloc %d MB, total %d MB, sys %d MB, %d GCs",
		m.Alloc>>20, m.TotalAlloc>>20, m.Sys>>20, m.NumGC)
}

// Timer measures a repeated operation
type Timer struct {
	name  string
	start time.Time
}

// NewTimer starts a timer
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop logs the total and per-iteration time and returns the total
func (t *Timer) Stop(iterations int) time.Duration {
	d := time.Since(t.start)
	log.Printf("%-28s %12v total %12v/op", t.name, d, d/time.Duration(max(iterations, 1)))
	return d
}
