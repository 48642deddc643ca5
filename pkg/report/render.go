package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/srodi/os-atlas/pkg/types"
	"github.com/srodi/os-atlas/pkg/ui"
)

// Options controls the dashboard layout.
type Options struct {
	Interval time.Duration
	Window   int
	TopK     int
	Filter   FilterConfig
	Banner   bool
	Color    bool
}

// Render writes the full dashboard for one tick to w in a single write.
func Render(w io.Writer, a types.Analysis, opts Options) error {
	var buf bytes.Buffer
	if opts.Banner {
		buf.WriteString(ui.Banner())
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "os-atlas (press Ctrl+C to exit)\n")
	fmt.Fprintf(&buf, "Updated: %s | Interval: %v | Window: %d samples\n\n",
		a.Snapshot.Timestamp.Format(time.RFC3339), opts.Interval, opts.Window)

	writeSystem(&buf, a.Snapshot.CPU, a.Snapshot.Memory)
	writeHealth(&buf, a.Verdict, opts.Color)

	if focus := SelectFocusCandidate(a, opts.Filter); focus != nil {
		fmt.Fprintf(&buf, "[!] Focus: %s (pid %d)\n", focus.Name, focus.PID)
		fmt.Fprintf(&buf, "   Reason: %s - %s\n\n", focus.Diagnosis, focus.Summary)
	}

	fmt.Fprintln(&buf, "[Trends]")
	if len(a.Trends) == 0 {
		fmt.Fprintln(&buf, "No significant change since the previous tick")
	} else {
		for _, s := range a.Trends {
			fmt.Fprintf(&buf, "  - %s\n", s)
		}
	}

	fmt.Fprintf(&buf, "\n[Starved processes - full window]\n")
	starved := FilterStarved(a.Starved, opts.Filter, opts.TopK)
	if len(starved) == 0 {
		fmt.Fprintln(&buf, "No starved processes")
	} else {
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PID\tNAME\tAVG CPU(%)\tSAMPLES")
		for _, s := range starved {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\n", s.PID, s.Name, s.AvgCPU, s.Window)
		}
		tw.Flush()
	}

	fmt.Fprintf(&buf, "\n[Stall suspects - low CPU, growing memory]\n")
	suspects := FilterSuspects(a.Suspects, opts.Filter, opts.TopK)
	if len(suspects) == 0 {
		fmt.Fprintln(&buf, "No stall suspects")
	} else {
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PID\tNAME\tAVG CPU(%)\tMEM GROWTH(MB)")
		for _, s := range suspects {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\n", s.PID, s.Name, s.AvgCPU, s.MemGrowthMB)
		}
		tw.Flush()
	}

	fmt.Fprintf(&buf, "\n[Top %d CPU]\n", opts.TopK)
	writeProcessTable(&buf, CPUUsageRows(FilterProcesses(a.Snapshot.Processes, opts.Filter), opts.TopK), "No CPU activity in this tick")

	fmt.Fprintf(&buf, "\n[Top %d Memory]\n", opts.TopK)
	writeProcessTable(&buf, MemoryRows(FilterProcesses(a.Snapshot.Processes, opts.Filter), opts.TopK), "No processes matched current filters")

	_, err := w.Write(buf.Bytes())
	return err
}

// RenderRecord writes a persisted record, as read back from the history log.
func RenderRecord(w io.Writer, rec types.Record, topK int, color bool) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== SYSTEM SNAPSHOT (%s) ===\n\n", rec.Timestamp.Format(time.RFC3339))
	writeSystem(&buf, rec.CPU, rec.Memory)
	writeHealth(&buf, rec.Health, color)
	fmt.Fprintf(&buf, "[Top %d Processes (CPU)]\n", topK)
	writeProcessTable(&buf, limit(rec.Processes, topK), "No processes recorded")
	_, err := w.Write(buf.Bytes())
	return err
}

func writeSystem(buf *bytes.Buffer, cpu types.CPUStats, mem types.MemoryStats) {
	freq := "n/a"
	if cpu.FrequencyMHz != nil {
		freq = fmt.Sprintf("%.0f MHz", *cpu.FrequencyMHz)
	}
	fmt.Fprintln(buf, "CPU")
	fmt.Fprintf(buf, "  Usage: %.1f%%\n", cpu.UsagePercent)
	fmt.Fprintf(buf, "  Cores: %d logical / %d physical\n", cpu.LogicalCores, cpu.PhysicalCores)
	fmt.Fprintf(buf, "  Frequency: %s\n\n", freq)
	fmt.Fprintln(buf, "Memory")
	fmt.Fprintf(buf, "  Used: %.1f%% (%.0f / %.0f MB)\n", mem.PercentUsed, mem.UsedMB, mem.TotalMB)
	fmt.Fprintf(buf, "  Available: %.0f MB\n", mem.AvailableMB)
	fmt.Fprintf(buf, "  Pressure: %s\n\n", mem.Pressure)
}

func writeHealth(buf *bytes.Buffer, v types.Verdict, color bool) {
	status := string(v.Status)
	if color {
		status = ui.Status(v.Status)
	}
	fmt.Fprintf(buf, "Health: %s\n", status)
	fmt.Fprintf(buf, "  %s\n\n", strings.Join(v.Reasons, "; "))
}

func writeProcessTable(buf *bytes.Buffer, rows []types.ProcessStats, empty string) {
	if len(rows) == 0 {
		fmt.Fprintln(buf, empty)
		return
	}
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tCPU(%)\tRSS(MB)")
	for _, p := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.1f\n", p.PID, p.Name, p.CPUPercent, p.MemoryMB)
	}
	tw.Flush()
}
