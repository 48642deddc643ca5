package types

import "time"

// DefaultTopK controls how many top processes we display per table.
const DefaultTopK = 5

// Pressure is the coarse memory scarcity indicator derived by the memory collector.
type Pressure string

const (
	PressureNormal Pressure = "normal"
	PressureHigh   Pressure = "high"
)

// CPUStats holds the system-wide CPU figures for one tick.
type CPUStats struct {
	UsagePercent  float64  `json:"cpu_percent"`
	LogicalCores  int      `json:"logical_cores"`
	PhysicalCores int      `json:"physical_cores"`
	FrequencyMHz  *float64 `json:"frequency_mhz"` // nil when the platform does not report it
}

// MemoryStats holds the system-wide memory figures for one tick.
type MemoryStats struct {
	TotalMB     float64  `json:"total_mb"`
	UsedMB      float64  `json:"used_mb"`
	AvailableMB float64  `json:"available_mb"`
	PercentUsed float64  `json:"percent_used"`
	Pressure    Pressure `json:"pressure"`
}

// ProcessStats describes one live process at sampling time.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// ResourceSnapshot is everything sampled during one tick. It is not mutated after creation.
type ResourceSnapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	CPU       CPUStats       `json:"cpu"`
	Memory    MemoryStats    `json:"memory"`
	Processes []ProcessStats `json:"processes"`
}

// Status is the overall health classification of a tick.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusDegraded Status = "DEGRADED"
	StatusCritical Status = "CRITICAL"
)

// Severity orders statuses so callers can compare them.
func (s Status) Severity() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Verdict is the fused health result and the reasons that produced it.
type Verdict struct {
	Status  Status   `json:"status"`
	Reasons []string `json:"reasons"`
}

// StarvedProcess is a process that stayed under the CPU floor for a full window.
type StarvedProcess struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	AvgCPU float64 `json:"avg_cpu"`
	Window int     `json:"window"`
}

// StallSuspect is a process with almost no CPU whose memory keeps growing.
type StallSuspect struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	AvgCPU      float64 `json:"avg_cpu"`
	MemGrowthMB float64 `json:"mem_growth_mb"`
}

// Record is the enriched snapshot handed to the history log.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	CPU       CPUStats       `json:"cpu"`
	Memory    MemoryStats    `json:"memory"`
	Processes []ProcessStats `json:"processes"`
	Health    Verdict        `json:"health"`
}

// NewRecord attaches a verdict to a snapshot.
func NewRecord(snap ResourceSnapshot, verdict Verdict) Record {
	return Record{
		Timestamp: snap.Timestamp,
		CPU:       snap.CPU,
		Memory:    snap.Memory,
		Processes: snap.Processes,
		Health:    verdict,
	}
}

// Analysis is everything one tick produced, as handed to presenters. Presenters must not mutate it.
type Analysis struct {
	Snapshot ResourceSnapshot
	Trends   []string
	Starved  []StarvedProcess
	Suspects []StallSuspect
	Verdict  Verdict
}

// Record returns the persisted form of the tick.
func (a Analysis) Record() Record {
	return NewRecord(a.Snapshot, a.Verdict)
}
