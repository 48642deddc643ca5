// Package health fuses one tick's aggregates and detector outputs into a verdict.
package health

import "github.com/srodi/os-atlas/pkg/types"

const (
	ReasonHighCPU    = "high CPU load"
	ReasonHighMemory = "high memory usage"
	ReasonPressure   = "memory pressure"
	ReasonStarvation = "process starvation"
	ReasonStall      = "possible deadlock → resource wait"
	ReasonNormal     = "System operating within normal limits"
)

// Thresholds are the percentage breakpoints used by Evaluate.
type Thresholds struct {
	CPUHigh    float64 `yaml:"cpu_high"`
	MemoryHigh float64 `yaml:"memory_high"`
	// MemoryCritical escalates to CRITICAL on memory alone. Zero disables it.
	MemoryCritical float64 `yaml:"memory_critical"`
}

// DefaultThresholds returns the stock 80/85/95 breakpoints.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUHigh: 80, MemoryHigh: 85, MemoryCritical: 95}
}

// Evaluate classifies the tick. Every matching reason is reported in a fixed
// order. A stall together with any other reason is CRITICAL, as is memory use
// above MemoryCritical; anything else that fired is DEGRADED.
func Evaluate(cpu types.CPUStats, mem types.MemoryStats, starved []types.StarvedProcess, suspects []types.StallSuspect, th Thresholds) types.Verdict {
	var reasons []string
	if cpu.UsagePercent > th.CPUHigh {
		reasons = append(reasons, ReasonHighCPU)
	}
	if mem.PercentUsed > th.MemoryHigh {
		reasons = append(reasons, ReasonHighMemory)
	}
	if mem.Pressure == types.PressureHigh {
		reasons = append(reasons, ReasonPressure)
	}
	if len(starved) > 0 {
		reasons = append(reasons, ReasonStarvation)
	}
	stalled := len(suspects) > 0
	if stalled {
		reasons = append(reasons, ReasonStall)
	}

	if len(reasons) == 0 {
		return types.Verdict{Status: types.StatusHealthy, Reasons: []string{ReasonNormal}}
	}
	if stalled && len(reasons) >= 2 {
		return types.Verdict{Status: types.StatusCritical, Reasons: reasons}
	}
	if th.MemoryCritical > 0 && mem.PercentUsed > th.MemoryCritical {
		return types.Verdict{Status: types.StatusCritical, Reasons: reasons}
	}
	return types.Verdict{Status: types.StatusDegraded, Reasons: reasons}
}
