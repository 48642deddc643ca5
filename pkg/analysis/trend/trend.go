// Package trend compares two consecutive snapshots and reports qualitative
// movement. There is no smoothing, so a single noisy tick can fire a signal.
package trend

import "github.com/srodi/os-atlas/pkg/types"

// Signal is a human-readable trend label.
type Signal string

const (
	CPUIncreasing     Signal = "CPU load increasing"
	MemoryIncreasing  Signal = "memory usage increasing"
	SustainedPressure Signal = "sustained memory pressure"
)

// Thresholds are absolute percentage-point deltas between two ticks.
type Thresholds struct {
	CPUDelta    float64 `yaml:"cpu_delta"`
	MemoryDelta float64 `yaml:"memory_delta"`
}

// DefaultThresholds returns the stock deltas.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUDelta: 10, MemoryDelta: 5}
}

// Detect runs the three independent checks and returns the signals that fired.
func Detect(prev, curr types.ResourceSnapshot, th Thresholds) []Signal {
	var signals []Signal
	if curr.CPU.UsagePercent > prev.CPU.UsagePercent+th.CPUDelta {
		signals = append(signals, CPUIncreasing)
	}
	if curr.Memory.PercentUsed > prev.Memory.PercentUsed+th.MemoryDelta {
		signals = append(signals, MemoryIncreasing)
	}
	if prev.Memory.Pressure == types.PressureHigh && curr.Memory.Pressure == types.PressureHigh {
		signals = append(signals, SustainedPressure)
	}
	return signals
}

// History remembers the previous tick so callers can feed snapshots one at a time.
type History struct {
	th   Thresholds
	prev *types.ResourceSnapshot
}

// NewHistory returns an empty history.
func NewHistory(th Thresholds) *History {
	return &History{th: th}
}

// Observe compares curr with the previously observed snapshot and stores curr.
// The first call returns nil.
func (h *History) Observe(curr types.ResourceSnapshot) []Signal {
	var signals []Signal
	if h.prev != nil {
		signals = Detect(*h.prev, curr, h.th)
	}
	h.prev = &curr
	return signals
}
