package report

import (
	"testing"

	"github.com/srodi/os-atlas/pkg/types"
)

func boolPtr(v bool) *bool { return &v }

func TestFilterProcessesRespectsKernelAndName(t *testing.T) {
	procs := []types.ProcessStats{
		{PID: 2, Name: "kthreadd"},
		{PID: 31, Name: "kworker/0:1"},
		{PID: 42, Name: "Chrome"},
		{PID: 43, Name: "postgres"},
	}

	visible := FilterProcesses(procs, FilterConfig{})
	if len(visible) != 2 {
		t.Fatalf("expected 2 user rows, got %+v", visible)
	}
	scoped := FilterProcesses(procs, FilterConfig{HideKernel: boolPtr(false), NameFilter: "chrome"})
	if len(scoped) != 1 || scoped[0].PID != 42 {
		t.Fatalf("expected only chrome row, got %+v", scoped)
	}
	all := FilterProcesses(procs, FilterConfig{HideKernel: boolPtr(false)})
	if len(all) != 4 {
		t.Fatalf("expected kernel threads when hide-kernel=false, got %d", len(all))
	}
}

func TestCPUUsageRows(t *testing.T) {
	procs := []types.ProcessStats{
		{PID: 1, CPUPercent: 0},
		{PID: 2, CPUPercent: 10},
		{PID: 3, CPUPercent: 5},
		{PID: 4, CPUPercent: 1},
	}
	top := CPUUsageRows(procs, 2)
	if len(top) != 2 {
		t.Fatalf("expected top 2 rows, got %d", len(top))
	}
	if top[0].PID != 2 || top[1].PID != 3 {
		t.Fatalf("unexpected order: %+v", top)
	}
}

func TestMemoryRowsDoesNotReorderInput(t *testing.T) {
	procs := []types.ProcessStats{
		{PID: 1, MemoryMB: 5},
		{PID: 2, MemoryMB: 500},
		{PID: 3, MemoryMB: 50},
	}
	top := MemoryRows(procs, 0)
	if top[0].PID != 2 || top[1].PID != 3 || top[2].PID != 1 {
		t.Fatalf("unexpected order: %+v", top)
	}
	if procs[0].PID != 1 {
		t.Fatalf("input slice was reordered: %+v", procs)
	}
}

func TestFilterStarvedAndSuspects(t *testing.T) {
	starved := []types.StarvedProcess{{PID: 12, Name: "rcu_sched"}, {PID: 40, Name: "cron"}, {PID: 41, Name: "sshd"}}
	rows := FilterStarved(starved, FilterConfig{}, 1)
	if len(rows) != 1 || rows[0].PID != 40 {
		t.Fatalf("expected kernel thread hidden and limit applied, got %+v", rows)
	}
	suspects := []types.StallSuspect{{PID: 5, Name: "java"}, {PID: 6, Name: "node"}}
	if got := FilterSuspects(suspects, FilterConfig{NameFilter: "node"}, 5); len(got) != 1 || got[0].PID != 6 {
		t.Fatalf("unexpected suspects %+v", got)
	}
}

func TestSelectFocusCandidatePriority(t *testing.T) {
	base := types.Analysis{
		Snapshot: types.ResourceSnapshot{
			Memory:    types.MemoryStats{TotalMB: 1000},
			Processes: []types.ProcessStats{{PID: 9, Name: "hog", CPUPercent: 90, MemoryMB: 100}},
		},
	}

	withStall := base
	withStall.Starved = []types.StarvedProcess{{PID: 7, Name: "cron", AvgCPU: 0.1, Window: 6}}
	withStall.Suspects = []types.StallSuspect{{PID: 8, Name: "java", AvgCPU: 0, MemGrowthMB: 40}}
	if f := SelectFocusCandidate(withStall, FilterConfig{}); f == nil || f.PID != 8 || f.Diagnosis != diagStalled {
		t.Fatalf("stall should win, got %+v", f)
	}

	withStarved := base
	withStarved.Starved = withStall.Starved
	if f := SelectFocusCandidate(withStarved, FilterConfig{}); f == nil || f.PID != 7 || f.Diagnosis != diagStarved {
		t.Fatalf("starved should win over cpu hog, got %+v", f)
	}

	if f := SelectFocusCandidate(base, FilterConfig{}); f == nil || f.PID != 9 || f.Diagnosis != diagCPUBound {
		t.Fatalf("cpu hog expected, got %+v", f)
	}

	memHeavy := types.Analysis{Snapshot: types.ResourceSnapshot{
		Memory:    types.MemoryStats{TotalMB: 1000},
		Processes: []types.ProcessStats{{PID: 3, Name: "cache", CPUPercent: 1, MemoryMB: 400}},
	}}
	if f := SelectFocusCandidate(memHeavy, FilterConfig{}); f == nil || f.Diagnosis != diagMemHeavy {
		t.Fatalf("memory-heavy expected, got %+v", f)
	}

	quiet := types.Analysis{Snapshot: types.ResourceSnapshot{
		Memory:    types.MemoryStats{TotalMB: 1000},
		Processes: []types.ProcessStats{{PID: 3, Name: "sh", CPUPercent: 1, MemoryMB: 4}},
	}}
	if f := SelectFocusCandidate(quiet, FilterConfig{}); f != nil {
		t.Fatalf("expected no focus on a quiet host, got %+v", f)
	}
}
