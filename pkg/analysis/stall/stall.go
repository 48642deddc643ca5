// Package stall looks for processes that look blocked: almost no CPU over a
// whole window while their memory footprint keeps growing.
//
// This is a symptom heuristic. It cannot see kernel lock waits, so it does not
// detect real deadlocks.
package stall

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/srodi/os-atlas/pkg/analysis/window"
	"github.com/srodi/os-atlas/pkg/types"
)

const (
	DefaultWindow = 6
	DefaultMinCPU = 0.2
)

// Detector keeps a CPU window and a memory window per pid.
type Detector struct {
	minCPU float64
	cpu    *window.Tracker[int32]
	mem    *window.Tracker[int32]
}

// New builds a detector whose CPU and memory windows both hold windowSize samples.
func New(windowSize int, minCPU float64) (*Detector, error) {
	if minCPU < 0 {
		return nil, fmt.Errorf("stall min cpu must not be negative, got %v", minCPU)
	}
	cpu, err := window.New[int32](windowSize)
	if err != nil {
		return nil, fmt.Errorf("stall cpu tracker: %w", err)
	}
	mem, err := window.New[int32](windowSize)
	if err != nil {
		return nil, fmt.Errorf("stall memory tracker: %w", err)
	}
	return &Detector{minCPU: minCPU, cpu: cpu, mem: mem}, nil
}

// Update feeds one tick into both windows.
func (d *Detector) Update(now time.Time, procs []types.ProcessStats) {
	cpuBatch := make([]window.Entry[int32], 0, len(procs))
	memBatch := make([]window.Entry[int32], 0, len(procs))
	for _, p := range procs {
		cpuBatch = append(cpuBatch, window.Entry[int32]{Key: p.PID, Name: p.Name, Value: p.CPUPercent})
		memBatch = append(memBatch, window.Entry[int32]{Key: p.PID, Name: p.Name, Value: p.MemoryMB})
	}
	d.cpu.Update(now, cpuBatch)
	d.mem.Update(now, memBatch)
}

// Tracked is the number of pids currently held.
func (d *Detector) Tracked() int { return d.cpu.Len() }

// Suspects returns stalled-looking processes, largest memory growth first and
// pid ascending on ties.
func (d *Detector) Suspects() ([]types.StallSuspect, error) {
	var suspects []types.StallSuspect
	for _, pid := range d.cpu.KeysWithFullWindow() {
		avg, err := d.cpu.Average(pid)
		if err != nil {
			return nil, err
		}
		if avg >= d.minCPU {
			continue
		}
		first, last, err := d.mem.Span(pid)
		if err != nil {
			return nil, err
		}
		growth := last - first
		if growth <= 0 {
			continue
		}
		name, err := d.cpu.Name(pid)
		if err != nil {
			return nil, err
		}
		suspects = append(suspects, types.StallSuspect{
			PID:         pid,
			Name:        name,
			AvgCPU:      round2(avg),
			MemGrowthMB: round2(growth),
		})
	}
	sort.Slice(suspects, func(i, j int) bool {
		if suspects[i].MemGrowthMB == suspects[j].MemGrowthMB {
			return suspects[i].PID < suspects[j].PID
		}
		return suspects[i].MemGrowthMB > suspects[j].MemGrowthMB
	})
	return suspects, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
