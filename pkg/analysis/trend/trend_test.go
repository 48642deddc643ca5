package trend

import (
	"reflect"
	"testing"

	"github.com/srodi/os-atlas/pkg/types"
)

func snap(cpu, mem float64, pressure types.Pressure) types.ResourceSnapshot {
	return types.ResourceSnapshot{
		CPU:    types.CPUStats{UsagePercent: cpu},
		Memory: types.MemoryStats{PercentUsed: mem, Pressure: pressure},
	}
}

func TestDetect(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name string
		prev types.ResourceSnapshot
		curr types.ResourceSnapshot
		want []Signal
	}{
		{"cpuJump", snap(40, 50, types.PressureNormal), snap(55, 50, types.PressureNormal), []Signal{CPUIncreasing}},
		{"cpuSmallJump", snap(40, 50, types.PressureNormal), snap(48, 50, types.PressureNormal), nil},
		{"cpuExactlyDelta", snap(40, 50, types.PressureNormal), snap(50, 50, types.PressureNormal), nil},
		{"memJump", snap(10, 50, types.PressureNormal), snap(10, 56, types.PressureNormal), []Signal{MemoryIncreasing}},
		{"pressureOnce", snap(10, 50, types.PressureNormal), snap(10, 50, types.PressureHigh), nil},
		{"pressureTwice", snap(10, 50, types.PressureHigh), snap(10, 50, types.PressureHigh), []Signal{SustainedPressure}},
		{"all", snap(10, 50, types.PressureHigh), snap(30, 60, types.PressureHigh), []Signal{CPUIncreasing, MemoryIncreasing, SustainedPressure}},
		{"decreasing", snap(90, 90, types.PressureNormal), snap(10, 10, types.PressureNormal), nil},
	}
	for _, tc := range cases {
		got := Detect(tc.prev, tc.curr, th)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestHistoryObserve(t *testing.T) {
	h := NewHistory(DefaultThresholds())
	if got := h.Observe(snap(10, 10, types.PressureNormal)); got != nil {
		t.Fatalf("first observation should not emit signals, got %v", got)
	}
	got := h.Observe(snap(40, 10, types.PressureNormal))
	if !reflect.DeepEqual(got, []Signal{CPUIncreasing}) {
		t.Fatalf("expected cpu signal, got %v", got)
	}
	if got := h.Observe(snap(45, 10, types.PressureNormal)); got != nil {
		t.Fatalf("comparison should use the latest tick only, got %v", got)
	}
}
