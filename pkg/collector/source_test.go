package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/srodi/os-atlas/pkg/types"
)

type cpuFunc func(context.Context) (types.CPUStats, error)

func (f cpuFunc) Sample(ctx context.Context) (types.CPUStats, error) { return f(ctx) }

type memFunc func(context.Context) (types.MemoryStats, error)

func (f memFunc) Sample(ctx context.Context) (types.MemoryStats, error) { return f(ctx) }

type procFunc func(context.Context) ([]types.ProcessStats, error)

func (f procFunc) Sample(ctx context.Context) ([]types.ProcessStats, error) { return f(ctx) }

func TestSnapshotMergesSamplers(t *testing.T) {
	at := time.Unix(1700000000, 0)
	src := NewSource(
		cpuFunc(func(context.Context) (types.CPUStats, error) { return types.CPUStats{UsagePercent: 12}, nil }),
		memFunc(func(context.Context) (types.MemoryStats, error) { return types.MemoryStats{PercentUsed: 40}, nil }),
		procFunc(func(context.Context) ([]types.ProcessStats, error) {
			return []types.ProcessStats{{PID: 1, Name: "init"}}, nil
		}),
	)
	src.Now = func() time.Time { return at }

	snap, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Timestamp.Equal(at) || snap.CPU.UsagePercent != 12 || snap.Memory.PercentUsed != 40 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Processes) != 1 || snap.Processes[0].Name != "init" {
		t.Fatalf("unexpected processes %+v", snap.Processes)
	}
}

func TestSnapshotFailsWhenAnySamplerFails(t *testing.T) {
	src := NewSource(
		cpuFunc(func(context.Context) (types.CPUStats, error) { return types.CPUStats{}, nil }),
		memFunc(func(context.Context) (types.MemoryStats, error) { return types.MemoryStats{}, errors.New("meminfo gone") }),
		procFunc(func(ctx context.Context) ([]types.ProcessStats, error) { return nil, nil }),
	)
	_, err := src.Snapshot(context.Background())
	if err == nil || !strings.Contains(err.Error(), "memory: meminfo gone") {
		t.Fatalf("expected wrapped memory error, got %v", err)
	}
}
