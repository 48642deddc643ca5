package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srodi/os-atlas/pkg/types"
)

func record(cpu float64, status types.Status) types.Record {
	return types.Record{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		CPU:       types.CPUStats{UsagePercent: cpu, LogicalCores: 4},
		Memory:    types.MemoryStats{PercentUsed: 50, Pressure: types.PressureNormal},
		Processes: []types.ProcessStats{{PID: 1, Name: "init", CPUPercent: 0.1, MemoryMB: 12}},
		Health:    types.Verdict{Status: status, Reasons: []string{"x"}},
	}
}

func TestAppendWritesOneLinePerRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	w, err := OpenHistory(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if err := w.Append(record(float64(i), types.StatusHealthy)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, key := range []string{`"health":{"status":"HEALTHY"`, `"cpu_percent":0`, `"percent_used":50`, `"memory_mb":12`} {
		if !strings.Contains(lines[0], key) {
			t.Fatalf("line missing %s: %s", key, lines[0])
		}
	}
}

func TestAppendAfterReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	w, _ := OpenHistory(dir)
	_ = w.Append(record(1, types.StatusHealthy))
	_ = w.Close()

	w, _ = OpenHistory(dir)
	_ = w.Append(record(2, types.StatusCritical))
	_ = w.Close()

	rec, err := LoadLatest(filepath.Join(dir, HistoryFile), zerolog.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.CPU.UsagePercent != 2 || rec.Health.Status != types.StatusCritical {
		t.Fatalf("expected latest record, got %+v", rec)
	}
	if len(rec.Processes) != 1 || rec.Processes[0].Name != "init" {
		t.Fatalf("processes not decoded: %+v", rec.Processes)
	}
}

func TestAppendOnClosedWriter(t *testing.T) {
	w, _ := OpenHistory(t.TempDir())
	_ = w.Close()
	if err := w.Append(record(1, types.StatusHealthy)); err == nil {
		t.Fatalf("expected error on closed writer")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("double close should be a no-op, got %v", err)
	}
}

func TestLoadLatestMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLatest(filepath.Join(dir, "absent.jsonl"), zerolog.Nop()); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	path := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLatest(path, zerolog.Nop()); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory for blank file, got %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLatest(path, zerolog.Nop()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadLatestSkipsTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenHistory(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Append(record(42, types.StatusDegraded)); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	path := filepath.Join(dir, HistoryFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.WriteString(`{"timestamp":"2026-01-01T00:00:00Z","cpu":{"cpu_pe`); err != nil {
		t.Fatalf("write partial line: %v", err)
	}
	f.Close()

	var logs bytes.Buffer
	rec, err := LoadLatest(path, zerolog.New(&logs).Level(zerolog.DebugLevel))
	if err != nil {
		t.Fatalf("expected the previous good record, got %v", err)
	}
	if rec.CPU.UsagePercent != 42 || rec.Health.Status != types.StatusDegraded {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !strings.Contains(logs.String(), "skipping undecodable history line") {
		t.Fatalf("expected the skipped line to be logged, got %q", logs.String())
	}
}
