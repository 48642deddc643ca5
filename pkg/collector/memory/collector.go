package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/srodi/os-atlas/pkg/types"
)

const (
	// DefaultPressureFloorMB is the available-memory floor under which a busy host counts as pressured.
	DefaultPressureFloorMB = 500
	pressurePercent        = 80
	mb                     = 1024 * 1024
)

// virtualMemory allows tests to stub gopsutil.
var virtualMemory = mem.VirtualMemoryWithContext

// Collector samples system-wide memory usage.
type Collector struct {
	floorBytes uint64
}

// NewCollector returns a collector that derives pressure against floorMB of available memory.
func NewCollector(floorMB float64) (*Collector, error) {
	if floorMB <= 0 {
		return nil, fmt.Errorf("pressure floor must be positive, got %v MB", floorMB)
	}
	return &Collector{floorBytes: uint64(floorMB * mb)}, nil
}

// Sample returns the current memory figures, falling back to /proc/meminfo
// when gopsutil fails.
func (c *Collector) Sample(ctx context.Context) (types.MemoryStats, error) {
	total, used, avail, pct, err := c.read(ctx)
	if err != nil {
		return types.MemoryStats{}, err
	}
	return types.MemoryStats{
		TotalMB:     round1(float64(total) / mb),
		UsedMB:      round1(float64(used) / mb),
		AvailableMB: round1(float64(avail) / mb),
		PercentUsed: round1(pct),
		Pressure:    DerivePressure(pct, avail, c.floorBytes),
	}, nil
}

func (c *Collector) read(ctx context.Context) (total, used, avail uint64, pct float64, err error) {
	vm, vmErr := virtualMemory(ctx)
	if vmErr == nil && vm != nil && vm.Total > 0 {
		return vm.Total, vm.Used, vm.Available, vm.UsedPercent, nil
	}
	info, infoErr := readMeminfo()
	if infoErr != nil {
		return 0, 0, 0, 0, fmt.Errorf("reading memory: %v; fallback: %w", vmErr, infoErr)
	}
	if info.Total == 0 {
		return 0, 0, 0, 0, fmt.Errorf("reading memory: MemTotal is zero")
	}
	used = info.Total - min(info.Available, info.Total)
	return info.Total, used, info.Available, 100 * float64(used) / float64(info.Total), nil
}

// DerivePressure reports high pressure when the host is above 80% used and
// available memory has dropped under floorBytes.
func DerivePressure(percentUsed float64, availableBytes, floorBytes uint64) types.Pressure {
	if percentUsed > pressurePercent && availableBytes < floorBytes {
		return types.PressureHigh
	}
	return types.PressureNormal
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
