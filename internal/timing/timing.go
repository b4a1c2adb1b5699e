// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package timing measures and profiles long-running key and evaluation work.
package timing

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"
)

// Timer logs how long a named operation took.
type Timer struct {
	name  string
	log   *zap.Logger
	start time.Time
}

// Start begins timing name. A nil logger discards the measurement.
func Start(name string, log *zap.Logger) *Timer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Timer{name: name, log: log, start: time.Now()}
}

// Stop logs and returns the elapsed time.
func (t *Timer) Stop(fields ...zap.Field) time.Duration {
	d := time.Since(t.start)
	t.log.Info(t.name, append(fields, zap.Duration("elapsed", d))...)
	return d
}

// Elapsed returns the elapsed time without logging.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ProfileConfig names the profile files to write. Empty paths are skipped.
type ProfileConfig struct {
	CPUProfile string
	MemProfile string
}

// Profiler writes pprof profiles around a block of work.
type Profiler struct {
	config  ProfileConfig
	cpuFile *os.File
}

// StartProfile starts CPU profiling if configured.
func StartProfile(config ProfileConfig) (*Profiler, error) {
	p := &Profiler{config: config}
	if config.CPUProfile == "" {
		return p, nil
	}

	f, err := os.Create(config.CPUProfile)
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("start CPU profile: %w", err)
	}
	p.cpuFile = f
	return p, nil
}

// Stop ends CPU profiling and writes the heap profile.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("close CPU profile: %w", err)
		}
		p.cpuFile = nil
	}

	if p.config.MemProfile == "" {
		return nil
	}
	f, err := os.Create(p.config.MemProfile)
	if err != nil {
		return fmt.Errorf("create memory profile: %w", err)
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write memory profile: %w", err)
	}
	return nil
}

// MemFields returns the current heap statistics as log fields.
func MemFields() []zap.Field {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return []zap.Field{
		zap.Uint64("heap_alloc_mb", m.Alloc>>20),
		zap.Uint64("sys_mb", m.Sys>>20),
		zap.Uint32("num_gc", m.NumGC),
	}
}
