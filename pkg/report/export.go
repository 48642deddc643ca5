package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/srodi/os-atlas/pkg/types"
)

var csvHeader = []string{
	"timestamp", "status", "reasons", "cpu_percent", "memory_percent", "pressure",
	"pid", "name", "process_cpu_percent", "process_memory_mb",
}

// ExportRecord writes rec to w in the format implied by path's extension
// (.json or .csv).
func ExportRecord(w io.Writer, path string, rec types.Record) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case ".csv":
		return writeCSV(w, rec)
	default:
		return fmt.Errorf("unsupported report format %q", ext)
	}
}

// writeCSV emits one row per process; the system columns repeat on every row.
// A record without processes still yields one row.
func writeCSV(w io.Writer, rec types.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	system := []string{
		rec.Timestamp.Format(time.RFC3339),
		string(rec.Health.Status),
		strings.Join(rec.Health.Reasons, "; "),
		formatFloat(rec.CPU.UsagePercent),
		formatFloat(rec.Memory.PercentUsed),
		string(rec.Memory.Pressure),
	}
	if len(rec.Processes) == 0 {
		if err := cw.Write(append(system, "", "", "", "")); err != nil {
			return err
		}
	}
	for _, p := range rec.Processes {
		row := append(append([]string(nil), system...),
			strconv.FormatInt(int64(p.PID), 10), p.Name, formatFloat(p.CPUPercent), formatFloat(p.MemoryMB))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
