package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/srodi/os-atlas/pkg/config"
	"github.com/srodi/os-atlas/pkg/storage"
	"github.com/srodi/os-atlas/pkg/types"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		args []string
		cmd  string
		rest int
	}{
		{nil, "watch", 0},
		{[]string{"snapshot", "-topk", "3"}, "snapshot", 2},
		{[]string{"view"}, "view", 0},
		{[]string{"-interval", "5s"}, "watch", 2},
		{[]string{"watch", "-v"}, "watch", 1},
		{[]string{"report", "-out", "r.csv"}, "report", 2},
	}
	for _, tc := range cases {
		cmd, rest := parseCommand(tc.args)
		if cmd != tc.cmd || len(rest) != tc.rest {
			t.Fatalf("parseCommand(%v) = %s %v", tc.args, cmd, rest)
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"view", "-window", "0"}, &stdout, &stderr); code != exitConfig {
		t.Fatalf("expected config exit code, got %d (%s)", code, stderr.String())
	}
	stderr.Reset()
	if code := run([]string{"-h"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected help to exit 0, got %d", code)
	}
	stderr.Reset()
	if code := run([]string{"view", "-history-dir", t.TempDir()}, &stdout, &stderr); code != exitFatal {
		t.Fatalf("expected missing history to be fatal, got %d", code)
	}
	if !strings.Contains(stderr.String(), "no snapshot history found") {
		t.Fatalf("expected cause on stderr, got %q", stderr.String())
	}
}

func TestRunViewRendersLatestRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := storage.OpenHistory(dir)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	for i, name := range []string{"older", "newest"} {
		rec := types.Record{
			Timestamp: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
			Processes: []types.ProcessStats{{PID: int32(100 + i), Name: name, CPUPercent: 1}},
			Health:    types.Verdict{Status: types.StatusHealthy, Reasons: []string{"System operating within normal limits"}},
		}
		if err := w.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	w.Close()

	var stdout, stderr bytes.Buffer
	if code := run([]string{"view", "-history-dir", dir}, &stdout, &stderr); code != exitOK {
		t.Fatalf("view failed with %d: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "newest") || strings.Contains(out, "older") {
		t.Fatalf("expected only the latest record:\n%s", out)
	}
	if !strings.Contains(out, "Health: HEALTHY") {
		t.Fatalf("expected plain status for non-terminal output:\n%s", out)
	}
}

func TestLoggerLayout(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Info().Msg("snapshot completed")
	logger.Debug().Msg("hidden")

	line := buf.String()
	if !strings.Contains(line, "| INFO  | snapshot completed") {
		t.Fatalf("unexpected log layout %q", line)
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line leaked at info level")
	}
}

func TestSnapshotOnceInterruptedIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Default()
	cfg.Persist = false
	var stdout, logs bytes.Buffer
	if err := snapshotOnce(ctx, cfg, &stdout, newLogger(&logs, false)); err != nil {
		t.Fatalf("cancelled snapshot should exit cleanly, got %v", err)
	}
	if !strings.Contains(logs.String(), "interrupted") {
		t.Fatalf("expected interrupt to be logged, got %q", logs.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("nothing should be rendered after an interrupt:\n%s", stdout.String())
	}
}

func TestRunReportExportsLatestRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := storage.OpenHistory(dir)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	rec := types.Record{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CPU:       types.CPUStats{UsagePercent: 12.5},
		Health:    types.Verdict{Status: types.StatusHealthy, Reasons: []string{"System operating within normal limits"}},
	}
	if err := w.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	out := filepath.Join(t.TempDir(), "reports", "latest.json")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"report", "-history-dir", dir, "-out", out}, &stdout, &stderr); code != exitOK {
		t.Fatalf("report failed with %d: %s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got types.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.CPU.UsagePercent != 12.5 || got.Health.Status != types.StatusHealthy {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestRunReportValidatesOut(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"report"}, &stdout, &stderr); code != exitConfig {
		t.Fatalf("missing -out should be a config error, got %d", code)
	}
	if code := run([]string{"report", "-out", "report.txt"}, &stdout, &stderr); code != exitConfig {
		t.Fatalf("unsupported suffix should be a config error, got %d", code)
	}
}
