// Package starvation flags processes that stay alive but barely get CPU time.
package starvation

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
	DefaultMinCPU = 0.3
)

// Detector averages each process's CPU share over a full window and reports
// the ones under MinCPU.
type Detector struct {
	minCPU  float64
	tracker *window.Tracker[int32]
}

// New builds a detector with its own CPU window.
func New(windowSize int, minCPU float64) (*Detector, error) {
	if minCPU < 0 {
		return nil, fmt.Errorf("starvation min cpu must not be negative, got %v", minCPU)
	}
	tracker, err := window.New[int32](windowSize)
	if err != nil {
		return nil, fmt.Errorf("starvation tracker: %w", err)
	}
	return &Detector{minCPU: minCPU, tracker: tracker}, nil
}

// Update feeds the processes of one tick into the CPU window.
func (d *Detector) Update(now time.Time, procs []types.ProcessStats) {
	d.tracker.Update(now, cpuEntries(procs))
}

// Tracked is the number of pids currently held in the window.
func (d *Detector) Tracked() int { return d.tracker.Len() }

// Starved returns processes whose full-window CPU average is below the floor,
// most starved first.
func (d *Detector) Starved() ([]types.StarvedProcess, error) {
	var flagged []types.StarvedProcess
	for _, pid := range d.tracker.KeysWithFullWindow() {
		avg, err := d.tracker.Average(pid)
		if err != nil {
			return nil, err
		}
		if avg >= d.minCPU {
			continue
		}
		name, err := d.tracker.Name(pid)
		if err != nil {
			return nil, err
		}
		flagged = append(flagged, types.StarvedProcess{
			PID:    pid,
			Name:   name,
			AvgCPU: round2(avg),
			Window: d.tracker.Size(),
		})
	}
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].AvgCPU == flagged[j].AvgCPU {
			return flagged[i].PID < flagged[j].PID
		}
		return flagged[i].AvgCPU < flagged[j].AvgCPU
	})
	return flagged, nil
}

func cpuEntries(procs []types.ProcessStats) []window.Entry[int32] {
	out := make([]window.Entry[int32], 0, len(procs))
	for _, p := range procs {
		out = append(out, window.Entry[int32]{Key: p.PID, Name: p.Name, Value: p.CPUPercent})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
