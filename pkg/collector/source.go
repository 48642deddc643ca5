// Package collector assembles one ResourceSnapshot per tick from the cpu,
// memory and process samplers.
package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srodi/os-atlas/pkg/types"
)

// Sampler produces one snapshot per call.
type Sampler interface {
	Snapshot(ctx context.Context) (types.ResourceSnapshot, error)
}

// CPUSampler, MemorySampler and ProcessSampler are satisfied by the
// cpu, memory and process collectors.
type CPUSampler interface {
	Sample(ctx context.Context) (types.CPUStats, error)
}

type MemorySampler interface {
	Sample(ctx context.Context) (types.MemoryStats, error)
}

type ProcessSampler interface {
	Sample(ctx context.Context) ([]types.ProcessStats, error)
}

// Source runs the three samplers concurrently and merges their outputs into a
// single snapshot, so downstream analysis only ever sees one writer.
type Source struct {
	CPU       CPUSampler
	Memory    MemorySampler
	Processes ProcessSampler
	Now       func() time.Time
}

// NewSource wires the samplers with the wall clock.
func NewSource(cpu CPUSampler, mem MemorySampler, procs ProcessSampler) *Source {
	return &Source{CPU: cpu, Memory: mem, Processes: procs, Now: time.Now}
}

// Snapshot samples everything once. Any sampler failure fails the whole snapshot.
func (s *Source) Snapshot(ctx context.Context) (types.ResourceSnapshot, error) {
	var (
		cpu   types.CPUStats
		mem   types.MemoryStats
		procs []types.ProcessStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cpu, err = s.CPU.Sample(gctx); err != nil {
			return fmt.Errorf("cpu: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if mem, err = s.Memory.Sample(gctx); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if procs, err = s.Processes.Sample(gctx); err != nil {
			return fmt.Errorf("processes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.ResourceSnapshot{}, fmt.Errorf("taking snapshot: %w", err)
	}
	return types.ResourceSnapshot{
		Timestamp: s.Now(),
		CPU:       cpu,
		Memory:    mem,
		Processes: procs,
	}, nil
}
