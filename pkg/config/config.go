// Package config resolves runtime settings from defaults, an optional YAML
// file, OSATLAS_* environment variables and command-line flags, in increasing
// order of priority.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/os-atlas/pkg/analysis/health"
	"github.com/srodi/os-atlas/pkg/analysis/stall"
	"github.com/srodi/os-atlas/pkg/analysis/starvation"
	"github.com/srodi/os-atlas/pkg/analysis/trend"
	"github.com/srodi/os-atlas/pkg/collector/memory"
	"github.com/srodi/os-atlas/pkg/storage"
	"github.com/srodi/os-atlas/pkg/types"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OSATLAS_"

const DefaultInterval = 2 * time.Second

// Config holds every tunable the monitor reads.
type Config struct {
	Interval         time.Duration     `yaml:"interval"`
	Window           int               `yaml:"window"`
	StarvationMinCPU float64           `yaml:"starvation_min_cpu"`
	StallMinCPU      float64           `yaml:"stall_min_cpu"`
	PressureFloorMB  float64           `yaml:"pressure_floor_mb"`
	Health           health.Thresholds `yaml:"health"`
	Trend            trend.Thresholds  `yaml:"trend"`

	TopK        int    `yaml:"topk"`
	HideKernel  bool   `yaml:"hide_kernel"`
	Filter      string `yaml:"filter"`
	HistoryDir  string `yaml:"history_dir"`
	Persist     bool   `yaml:"persist"`
	MetricsAddr string `yaml:"metrics_addr"`
	Follow      bool   `yaml:"follow"`
	Out         string `yaml:"out"`
	Verbose     bool   `yaml:"verbose"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Interval:         DefaultInterval,
		Window:           starvation.DefaultWindow,
		StarvationMinCPU: starvation.DefaultMinCPU,
		StallMinCPU:      stall.DefaultMinCPU,
		PressureFloorMB:  memory.DefaultPressureFloorMB,
		Health:           health.DefaultThresholds(),
		Trend:            trend.DefaultThresholds(),
		TopK:             types.DefaultTopK,
		HideKernel:       true,
		HistoryDir:       storage.DefaultDir,
		Persist:          true,
	}
}

// Error reports an invalid setting. It is returned before the monitor starts.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Message)
}

// IsConfigError reports whether err came from configuration handling.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

// setting binds one option to its flag, env key and parser.
type setting struct {
	flag  string
	env   string
	apply func(*Config, string) error
}

var settings = []setting{
	{"interval", "INTERVAL", func(c *Config, v string) (err error) {
		c.Interval, err = parseDuration(v)
		return err
	}},
	{"window", "WINDOW", func(c *Config, v string) (err error) {
		c.Window, err = strconv.Atoi(v)
		return err
	}},
	{"starvation-min-cpu", "STARVATION_MIN_CPU", floatSetter(func(c *Config) *float64 { return &c.StarvationMinCPU })},
	{"stall-min-cpu", "STALL_MIN_CPU", floatSetter(func(c *Config) *float64 { return &c.StallMinCPU })},
	{"pressure-floor-mb", "PRESSURE_FLOOR_MB", floatSetter(func(c *Config) *float64 { return &c.PressureFloorMB })},
	{"cpu-high", "CPU_HIGH", floatSetter(func(c *Config) *float64 { return &c.Health.CPUHigh })},
	{"mem-high", "MEM_HIGH", floatSetter(func(c *Config) *float64 { return &c.Health.MemoryHigh })},
	{"mem-critical", "MEM_CRITICAL", floatSetter(func(c *Config) *float64 { return &c.Health.MemoryCritical })},
	{"trend-cpu-delta", "TREND_CPU_DELTA", floatSetter(func(c *Config) *float64 { return &c.Trend.CPUDelta })},
	{"trend-mem-delta", "TREND_MEM_DELTA", floatSetter(func(c *Config) *float64 { return &c.Trend.MemoryDelta })},
	{"topk", "TOPK", func(c *Config, v string) (err error) {
		c.TopK, err = strconv.Atoi(v)
		return err
	}},
	{"hide-kernel", "HIDE_KERNEL", boolSetter(func(c *Config) *bool { return &c.HideKernel })},
	{"filter", "FILTER", func(c *Config, v string) error {
		c.Filter = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"history-dir", "HISTORY_DIR", func(c *Config, v string) error {
		c.HistoryDir = v
		return nil
	}},
	{"persist", "PERSIST", boolSetter(func(c *Config) *bool { return &c.Persist })},
	{"metrics-addr", "METRICS_ADDR", func(c *Config, v string) error {
		c.MetricsAddr = v
		return nil
	}},
	{"out", "OUT", func(c *Config, v string) error {
		c.Out = strings.TrimSpace(v)
		return nil
	}},
	{"follow", "FOLLOW", boolSetter(func(c *Config) *bool { return &c.Follow })},
	{"verbose", "VERBOSE", boolSetter(func(c *Config) *bool { return &c.Verbose })},
}

// Load parses args for the named command and resolves the final configuration.
// Unknown flags and invalid values yield an *Error.
func Load(name string, args []string, usage io.Writer) (Config, error) {
	def := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(usage)
	configPath := fs.String("config", "", "path to a YAML configuration file")
	fs.Duration("interval", def.Interval, "sampling interval (e.g. 2s, 1m)")
	fs.Int("window", def.Window, "number of samples per process window")
	fs.Float64("starvation-min-cpu", def.StarvationMinCPU, "average CPU% below which a process counts as starved")
	fs.Float64("stall-min-cpu", def.StallMinCPU, "average CPU% below which a growing process counts as stalled")
	fs.Float64("pressure-floor-mb", def.PressureFloorMB, "available memory (MB) under which a busy host is pressured")
	fs.Float64("cpu-high", def.Health.CPUHigh, "CPU% above which load is high")
	fs.Float64("mem-high", def.Health.MemoryHigh, "memory% above which usage is high")
	fs.Float64("mem-critical", def.Health.MemoryCritical, "memory% above which health is critical (0 disables)")
	fs.Float64("trend-cpu-delta", def.Trend.CPUDelta, "CPU percentage points between ticks that count as increasing")
	fs.Float64("trend-mem-delta", def.Trend.MemoryDelta, "memory percentage points between ticks that count as increasing")
	fs.Int("topk", def.TopK, "number of processes to display per table")
	fs.Bool("hide-kernel", def.HideKernel, "hide kernel threads such as kworker, ksoftirqd, etc")
	fs.String("filter", "", "only display processes whose name contains this substring (case-insensitive)")
	fs.String("history-dir", def.HistoryDir, "directory holding snapshot_history.jsonl")
	fs.Bool("persist", def.Persist, "append every tick to the history log")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	fs.String("out", "", "report: destination file, .json or .csv")
	fs.Bool("follow", false, "view: re-render the latest record every interval")
	fs.Bool("verbose", false, "enable debug logging")
	fs.Bool("v", false, "shorthand for -verbose")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, err
		}
		return Config{}, &Error{Field: "flags", Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return Config{}, &Error{Field: "flags", Message: fmt.Sprintf("unexpected arguments: %v", fs.Args())}
	}

	cfg := def
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })
	if v, ok := set["v"]; ok {
		set["verbose"] = v
	}
	for _, s := range settings {
		if v, ok := set[s.flag]; ok {
			if err := s.apply(&cfg, v); err != nil {
				return Config{}, &Error{Field: s.flag, Message: err.Error()}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Field: "config", Message: err.Error()}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Field: "config", Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	cfg.Filter = strings.ToLower(strings.TrimSpace(cfg.Filter))
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, s := range settings {
		v, ok := lookup(EnvPrefix + s.env)
		if !ok || v == "" {
			continue
		}
		if err := s.apply(cfg, v); err != nil {
			return &Error{Field: EnvPrefix + s.env, Message: err.Error()}
		}
	}
	return nil
}

// Validate checks ranges. It is called by Load and exposed for callers that
// build a Config by hand.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return &Error{Field: "interval", Message: fmt.Sprintf("must be positive, got %v", c.Interval)}
	case c.Window <= 0:
		return &Error{Field: "window", Message: fmt.Sprintf("must be positive, got %d", c.Window)}
	case c.TopK <= 0:
		return &Error{Field: "topk", Message: fmt.Sprintf("must be positive, got %d", c.TopK)}
	case c.PressureFloorMB <= 0:
		return &Error{Field: "pressure-floor-mb", Message: fmt.Sprintf("must be positive, got %v", c.PressureFloorMB)}
	}
	percents := []struct {
		name      string
		value     float64
		allowZero bool
	}{
		{"starvation-min-cpu", c.StarvationMinCPU, true},
		{"stall-min-cpu", c.StallMinCPU, true},
		{"cpu-high", c.Health.CPUHigh, false},
		{"mem-high", c.Health.MemoryHigh, false},
		{"mem-critical", c.Health.MemoryCritical, true},
		{"trend-cpu-delta", c.Trend.CPUDelta, true},
		{"trend-mem-delta", c.Trend.MemoryDelta, true},
	}
	for _, p := range percents {
		if p.value < 0 || p.value > 100 || (!p.allowZero && p.value == 0) {
			return &Error{Field: p.name, Message: fmt.Sprintf("must be a percentage in (0, 100], got %v", p.value)}
		}
	}
	if c.Out != "" {
		switch strings.ToLower(filepath.Ext(c.Out)) {
		case ".json", ".csv":
		default:
			return &Error{Field: "out", Message: fmt.Sprintf("must end in .json or .csv, got %q", c.Out)}
		}
	}
	if c.Health.MemoryCritical > 0 && c.Health.MemoryCritical < c.Health.MemoryHigh {
		return &Error{Field: "mem-critical", Message: fmt.Sprintf("must not be below mem-high (%v), got %v", c.Health.MemoryHigh, c.Health.MemoryCritical)}
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	// bare numbers are seconds, as the interval was historically given
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		*field(c) = parsed
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*field(c) = true
		case "false", "0", "no":
			*field(c) = false
		default:
			return fmt.Errorf("not a boolean: %q", v)
		}
		return nil
	}
}
