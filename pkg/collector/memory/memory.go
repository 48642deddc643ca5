package memory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// openMeminfo allows tests to stub /proc/meminfo.
var openMeminfo = func() (io.ReadCloser, error) { return os.Open("/proc/meminfo") }

// meminfo holds the /proc/meminfo fields we need, in bytes.
type meminfo struct {
	Total     uint64
	Available uint64
}

// readMeminfo parses MemTotal and MemAvailable from /proc/meminfo. Used as a
// fallback when gopsutil cannot read virtual memory.
// TODO: future scenario, consider container memory limits
func readMeminfo() (meminfo, error) {
	f, err := openMeminfo()
	if err != nil {
		return meminfo{}, err
	}
	defer f.Close()

	var info meminfo
	var haveTotal, haveAvail bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		var dst *uint64
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			dst, haveTotal = &info.Total, true
		case strings.HasPrefix(line, "MemAvailable:"):
			dst, haveAvail = &info.Available, true
		default:
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return meminfo{}, fmt.Errorf("unexpected format for %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return meminfo{}, err
		}
		*dst = kb * 1024
	}
	if err := scanner.Err(); err != nil {
		return meminfo{}, err
	}
	if !haveTotal {
		return meminfo{}, fmt.Errorf("MemTotal not found in /proc/meminfo")
	}
	if !haveAvail {
		return meminfo{}, fmt.Errorf("MemAvailable not found in /proc/meminfo")
	}
	return info, nil
}
