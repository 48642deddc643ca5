package cpu

import (
	"context"
	"fmt"
	"math"

	gocpu "github.com/shirou/gopsutil/v4/cpu"

	"github.com/srodi/os-atlas/pkg/types"
)

// Package-level hooks so tests can stub gopsutil.
var (
	percentFn = gocpu.PercentWithContext
	countsFn  = gocpu.CountsWithContext
	infoFn    = gocpu.InfoWithContext
)

// Collector samples system-wide CPU usage. Usage is the delta since the
// previous Sample call, so the first reading after Prime is meaningful.
type Collector struct {
	logical  int
	physical int
}

// NewCollector reads the core counts once and primes the usage delta.
func NewCollector(ctx context.Context) (*Collector, error) {
	logical, err := countsFn(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("counting logical cores: %w", err)
	}
	physical, err := countsFn(ctx, false)
	if err != nil {
		// some virtualized hosts do not expose topology
		physical = logical
	}
	c := &Collector{logical: logical, physical: physical}
	if _, err := percentFn(ctx, 0, false); err != nil {
		return nil, fmt.Errorf("priming cpu usage: %w", err)
	}
	return c, nil
}

// Sample returns CPU usage since the previous call.
func (c *Collector) Sample(ctx context.Context) (types.CPUStats, error) {
	pcts, err := percentFn(ctx, 0, false)
	if err != nil {
		return types.CPUStats{}, fmt.Errorf("reading cpu usage: %w", err)
	}
	if len(pcts) == 0 {
		return types.CPUStats{}, fmt.Errorf("reading cpu usage: no samples returned")
	}
	return types.CPUStats{
		UsagePercent:  round1(clamp(pcts[0], 0, 100)),
		LogicalCores:  c.logical,
		PhysicalCores: c.physical,
		FrequencyMHz:  frequency(ctx),
	}, nil
}

func frequency(ctx context.Context) *float64 {
	infos, err := infoFn(ctx)
	if err != nil || len(infos) == 0 || infos[0].Mhz <= 0 {
		return nil
	}
	mhz := infos[0].Mhz
	return &mhz
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
