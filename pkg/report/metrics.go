package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/srodi/os-atlas/pkg/types"
)

// FilterConfig controls which processes appear in CLI tables. It never
// affects what the detectors see.
type FilterConfig struct {
	HideKernel *bool // nil defaults to true so kernel threads stay hidden unless explicitly shown
	NameFilter string
}

func (cfg FilterConfig) hideKernelEnabled() bool {
	if cfg.HideKernel == nil {
		return true
	}
	return *cfg.HideKernel
}

// Focus is the single process worth calling out on the status line.
type Focus struct {
	PID       int32
	Name      string
	Diagnosis string
	Summary   string
}

const (
	diagStalled  = "Stalled"
	diagStarved  = "Starved"
	diagCPUBound = "CPU-bound"
	diagMemHeavy = "Memory-heavy"
)

// FilterProcesses applies the kernel-thread and name filters before ranking tables.
func FilterProcesses(procs []types.ProcessStats, cfg FilterConfig) []types.ProcessStats {
	filtered := make([]types.ProcessStats, 0, len(procs))
	for _, p := range procs {
		if passesFilters(p.PID, p.Name, cfg) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// FilterStarved drops starved rows hidden by filters and limits rows.
func FilterStarved(rows []types.StarvedProcess, cfg FilterConfig, topK int) []types.StarvedProcess {
	out := make([]types.StarvedProcess, 0, len(rows))
	for _, r := range rows {
		if passesFilters(r.PID, r.Name, cfg) {
			out = append(out, r)
		}
	}
	return limit(out, topK)
}

// FilterSuspects drops stall rows hidden by filters and limits rows.
func FilterSuspects(rows []types.StallSuspect, cfg FilterConfig, topK int) []types.StallSuspect {
	out := make([]types.StallSuspect, 0, len(rows))
	for _, r := range rows {
		if passesFilters(r.PID, r.Name, cfg) {
			out = append(out, r)
		}
	}
	return limit(out, topK)
}

// CPUUsageRows returns the busiest processes up to topK.
func CPUUsageRows(procs []types.ProcessStats, topK int) []types.ProcessStats {
	candidates := make([]types.ProcessStats, 0, len(procs))
	for _, p := range procs {
		if p.CPUPercent <= 0 {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].CPUPercent > candidates[j].CPUPercent })
	return limit(candidates, topK)
}

// MemoryRows returns the largest resident processes up to topK.
func MemoryRows(procs []types.ProcessStats, topK int) []types.ProcessStats {
	candidates := make([]types.ProcessStats, len(procs))
	copy(candidates, procs)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].MemoryMB > candidates[j].MemoryMB })
	return limit(candidates, topK)
}

// SelectFocusCandidate picks the most interesting process to summarize for
// the operator: stalls beat starvation, which beats plain resource hogs.
func SelectFocusCandidate(a types.Analysis, cfg FilterConfig) *Focus {
	if rows := FilterSuspects(a.Suspects, cfg, 1); len(rows) > 0 {
		s := rows[0]
		return &Focus{PID: s.PID, Name: s.Name, Diagnosis: diagStalled,
			Summary: fmt.Sprintf("%.2f%% avg CPU while memory grew %.1f MB", s.AvgCPU, s.MemGrowthMB)}
	}
	if rows := FilterStarved(a.Starved, cfg, 1); len(rows) > 0 {
		s := rows[0]
		return &Focus{PID: s.PID, Name: s.Name, Diagnosis: diagStarved,
			Summary: fmt.Sprintf("only %.2f%% avg CPU over %d samples", s.AvgCPU, s.Window)}
	}
	procs := FilterProcesses(a.Snapshot.Processes, cfg)
	if top := CPUUsageRows(procs, 1); len(top) > 0 && top[0].CPUPercent > 50 {
		p := top[0]
		return &Focus{PID: p.PID, Name: p.Name, Diagnosis: diagCPUBound,
			Summary: fmt.Sprintf("%.1f%% CPU, %.1f MB RSS", p.CPUPercent, p.MemoryMB)}
	}
	total := a.Snapshot.Memory.TotalMB
	if top := MemoryRows(procs, 1); len(top) > 0 && total > 0 && top[0].MemoryMB/total > 0.3 {
		p := top[0]
		return &Focus{PID: p.PID, Name: p.Name, Diagnosis: diagMemHeavy,
			Summary: fmt.Sprintf("%.1f GB RSS, %.0f%% of RAM", p.MemoryMB/1024.0, 100*p.MemoryMB/total)}
	}
	return nil
}

func passesFilters(pid int32, name string, cfg FilterConfig) bool {
	if cfg.hideKernelEnabled() && isKernelThread(pid, name) {
		return false
	}
	if cfg.NameFilter != "" && !strings.Contains(strings.ToLower(name), cfg.NameFilter) {
		return false
	}
	return true
}

func isKernelThread(pid int32, name string) bool {
	if pid == 0 || pid == 2 {
		return true
	}
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "kworker"), strings.HasPrefix(name, "ksoftirqd"), strings.HasPrefix(name, "kthreadd"),
		strings.HasPrefix(name, "migration"), strings.HasPrefix(name, "watchdog"), strings.HasPrefix(name, "rcu"),
		strings.HasPrefix(name, "irq/"), strings.HasPrefix(name, "cpuhp"), strings.HasPrefix(name, "idle_inject"):
		return true
	}
	return false
}

func limit[T any](rows []T, topK int) []T {
	if topK > 0 && len(rows) > topK {
		return rows[:topK]
	}
	return rows
}
