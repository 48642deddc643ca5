// Package process lists live processes with their CPU share and resident memory.
package process

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	goproc "github.com/shirou/gopsutil/v4/process"

	"github.com/srodi/os-atlas/pkg/types"
)

// handle is the subset of *process.Process the collector needs.
type handle interface {
	NameWithContext(ctx context.Context) (string, error)
	PercentWithContext(ctx context.Context, interval time.Duration) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*goproc.MemoryInfoStat, error)
}

var (
	listPIDs   = goproc.PidsWithContext
	openHandle = func(ctx context.Context, pid int32) (handle, error) {
		p, err := goproc.NewProcessWithContext(ctx, pid)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
)

// Collector keeps one gopsutil handle per live pid because per-process CPU
// share is computed as a delta between consecutive reads of the same handle.
// A freshly seen pid therefore reports 0% on its first tick.
type Collector struct {
	handles map[int32]handle
	names   map[int32]string
	logger  zerolog.Logger
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		handles: make(map[int32]handle),
		names:   make(map[int32]string),
		logger:  zerolog.Nop(),
	}
}

// SetLogger sets the logger used to report skipped processes.
func (c *Collector) SetLogger(l zerolog.Logger) {
	c.logger = l
}

// Sample lists every readable process, busiest first. Processes that exit or
// deny access between listing and reading are left out of the result.
func (c *Collector) Sample(ctx context.Context) ([]types.ProcessStats, error) {
	pids, err := listPIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	live := make(map[int32]handle, len(pids))
	stats := make([]types.ProcessStats, 0, len(pids))
	skipped := 0
	for _, pid := range pids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, ok := c.handles[pid]
		if !ok {
			h, err = openHandle(ctx, pid)
			if err != nil {
				skipped++
				continue
			}
		}
		stat, ok := c.read(ctx, pid, h)
		if !ok {
			skipped++
			continue
		}
		live[pid] = h
		stats = append(stats, stat)
	}

	c.handles = live
	for pid := range c.names {
		if _, ok := live[pid]; !ok {
			delete(c.names, pid)
		}
	}
	if skipped > 0 {
		c.logger.Debug().Int("skipped", skipped).Int("listed", len(pids)).Msg("processes skipped during sampling")
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CPUPercent == stats[j].CPUPercent {
			return stats[i].PID < stats[j].PID
		}
		return stats[i].CPUPercent > stats[j].CPUPercent
	})
	return stats, nil
}

func (c *Collector) read(ctx context.Context, pid int32, h handle) (types.ProcessStats, bool) {
	cpu, err := h.PercentWithContext(ctx, 0)
	if err != nil {
		return types.ProcessStats{}, false
	}
	memInfo, err := h.MemoryInfoWithContext(ctx)
	if err != nil || memInfo == nil {
		return types.ProcessStats{}, false
	}
	name, err := h.NameWithContext(ctx)
	if err != nil || strings.TrimSpace(name) == "" {
		name = commForPID(pid, c.names)
	}
	return types.ProcessStats{
		PID:        pid,
		Name:       name,
		CPUPercent: round2(cpu),
		MemoryMB:   round1(float64(memInfo.RSS) / (1024 * 1024)),
	}, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
