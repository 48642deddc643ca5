package report

import (
	"github.com/rs/zerolog"

	"github.com/srodi/os-atlas/pkg/types"
)

const (
	busyCPU       = 80
	contendingCPU = 70
)

// Explain turns a tick into plain-language hints for operators reading the log.
func Explain(a types.Analysis) []string {
	var out []string
	if a.Snapshot.CPU.UsagePercent > busyCPU {
		out = append(out, "CPU usage is high, system may be under heavy load")
	} else {
		out = append(out, "CPU usage is within normal range")
	}
	if a.Snapshot.Memory.Pressure == types.PressureHigh {
		out = append(out, "memory pressure is high, system may start swapping")
	} else {
		out = append(out, "memory usage looks stable")
	}
	if len(a.Starved) == 0 {
		return out
	}
	if a.Snapshot.CPU.UsagePercent > contendingCPU {
		out = append(out, "high CPU load increases competition among processes")
	}
	out = append(out,
		"starved processes are receiving consistently low CPU time while alive",
		"the scheduler may favor other tasks or the CPU is saturated",
	)
	return out
}

// LogAnalysis emits the per-tick log lines.
func LogAnalysis(logger zerolog.Logger, a types.Analysis) {
	cpu, mem := a.Snapshot.CPU, a.Snapshot.Memory
	logger.Info().
		Float64("cpu_percent", cpu.UsagePercent).
		Float64("mem_percent", mem.PercentUsed).
		Str("pressure", string(mem.Pressure)).
		Int("processes", len(a.Snapshot.Processes)).
		Msgf("CPU %.1f%% | memory %.1f%% (%s pressure)", cpu.UsagePercent, mem.PercentUsed, mem.Pressure)

	for _, s := range a.Trends {
		logger.Info().Str("trend", s).Msgf("trend: %s", s)
	}
	for _, s := range a.Starved {
		logger.Warn().Int32("pid", s.PID).Float64("avg_cpu", s.AvgCPU).
			Msgf("starved: %s (pid %d) avg CPU %.2f%% over %d samples", s.Name, s.PID, s.AvgCPU, s.Window)
	}
	for _, s := range a.Suspects {
		logger.Warn().Int32("pid", s.PID).Float64("mem_growth_mb", s.MemGrowthMB).
			Msgf("stall suspect: %s (pid %d) avg CPU %.2f%%, memory +%.2f MB", s.Name, s.PID, s.AvgCPU, s.MemGrowthMB)
	}

	ev := logger.Info()
	switch a.Verdict.Status {
	case types.StatusCritical:
		ev = logger.Error()
	case types.StatusDegraded:
		ev = logger.Warn()
	}
	ev.Strs("reasons", a.Verdict.Reasons).Msgf("health: %s", a.Verdict.Status)

	for _, line := range Explain(a) {
		logger.Debug().Msg(line)
	}
}
