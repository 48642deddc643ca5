package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/srodi/os-atlas/pkg/analysis/health"
	"github.com/srodi/os-atlas/pkg/collector"
	"github.com/srodi/os-atlas/pkg/collector/cpu"
	"github.com/srodi/os-atlas/pkg/collector/memory"
	"github.com/srodi/os-atlas/pkg/collector/process"
	"github.com/srodi/os-atlas/pkg/config"
	"github.com/srodi/os-atlas/pkg/metrics"
	"github.com/srodi/os-atlas/pkg/monitor"
	"github.com/srodi/os-atlas/pkg/report"
	"github.com/srodi/os-atlas/pkg/storage"
	"github.com/srodi/os-atlas/pkg/types"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// primeDelay separates the two process reads of a one-shot snapshot so
// per-process CPU has a baseline.
const primeDelay = time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd, rest := parseCommand(args)
	cfg, err := config.Load("osatlas "+cmd, rest, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "osatlas: %v\n", err)
		return exitConfig
	}
	logger := newLogger(stderr, cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "snapshot":
		err = snapshotOnce(ctx, cfg, stdout, logger)
	case "view":
		err = view(ctx, cfg, stdout, logger)
	case "report":
		if cfg.Out == "" {
			fmt.Fprintln(stderr, "osatlas: report requires -out <file.json|file.csv>")
			return exitConfig
		}
		err = exportLatest(cfg, logger)
	default:
		err = watch(ctx, cfg, stdout, logger)
	}
	if err != nil {
		logger.Error().Err(err).Msg("fatal")
		return exitFatal
	}
	return exitOK
}

// parseCommand splits off the subcommand. Anything that is not a known
// subcommand falls through to watch with the full argument list.
func parseCommand(args []string) (string, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "watch", "snapshot", "view", "report":
			return args[0], args[1:]
		}
	}
	return "watch", args
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("| %-5s |", strings.ToUpper(fmt.Sprint(i)))
		},
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newSource(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*collector.Source, error) {
	cpuCollector, err := cpu.NewCollector(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing CPU collector: %w", err)
	}
	memCollector, err := memory.NewCollector(cfg.PressureFloorMB)
	if err != nil {
		return nil, fmt.Errorf("initializing memory collector: %w", err)
	}
	procCollector := process.NewCollector()
	procCollector.SetLogger(logger.With().Str("component", "process").Logger())
	return collector.NewSource(cpuCollector, memCollector, procCollector), nil
}

func openSink(cfg config.Config, logger zerolog.Logger) (*storage.HistoryWriter, error) {
	if !cfg.Persist {
		return nil, nil
	}
	w, err := storage.OpenHistory(cfg.HistoryDir)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", w.Path()).Msg("persisting snapshots")
	return w, nil
}

func renderOptions(cfg config.Config, tty bool) report.Options {
	hide := cfg.HideKernel
	return report.Options{
		Interval: cfg.Interval,
		Window:   cfg.Window,
		TopK:     cfg.TopK,
		Filter:   report.FilterConfig{HideKernel: &hide, NameFilter: cfg.Filter},
		Banner:   tty,
		Color:    tty,
	}
}

func watch(ctx context.Context, cfg config.Config, stdout io.Writer, logger zerolog.Logger) error {
	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	mon, err := monitor.New(source, monitor.Settings{
		Interval:         cfg.Interval,
		Window:           cfg.Window,
		StarvationMinCPU: cfg.StarvationMinCPU,
		StallMinCPU:      cfg.StallMinCPU,
		Health:           cfg.Health,
		Trend:            cfg.Trend,
	})
	if err != nil {
		return err
	}

	sink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		mon.SetSink(sink)
	}

	tty := isTerminal(stdout)
	if tty && !cfg.Verbose {
		// keep per-tick info lines from scribbling over the dashboard
		logger = logger.Level(zerolog.WarnLevel)
	}
	mon.SetLogger(logger)

	opts := renderOptions(cfg, tty)
	mon.SetPresenter(func(a types.Analysis) error {
		var buf bytes.Buffer
		if tty {
			buf.WriteString(clearSequence)
		}
		if err := report.Render(&buf, a, opts); err != nil {
			return err
		}
		_, err := stdout.Write(buf.Bytes())
		return err
	})

	if tty {
		cleanupTerminal := enableSingleView(stdout, logger)
		defer cleanupTerminal()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		rec := metrics.NewRecorder()
		mon.SetRecorder(rec)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			return rec.Serve(gctx, cfg.MetricsAddr)
		})
	}
	g.Go(func() error { return mon.Run(gctx) })
	return g.Wait()
}

func snapshotOnce(ctx context.Context, cfg config.Config, stdout io.Writer, logger zerolog.Logger) error {
	logger.Info().Msg("taking system snapshot")
	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return interrupted(ctx, err, logger)
	}
	if _, err := source.Snapshot(ctx); err != nil {
		return interrupted(ctx, err, logger)
	}
	select {
	case <-ctx.Done():
		return interrupted(ctx, ctx.Err(), logger)
	case <-time.After(primeDelay):
	}
	snap, err := source.Snapshot(ctx)
	if err != nil {
		return interrupted(ctx, err, logger)
	}

	a := types.Analysis{Snapshot: snap}
	a.Verdict = health.Evaluate(snap.CPU, snap.Memory, nil, nil, cfg.Health)
	report.LogAnalysis(logger, a)
	if err := report.Render(stdout, a, renderOptions(cfg, false)); err != nil {
		return err
	}

	sink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		if err := sink.Append(a.Record()); err != nil {
			logger.Error().Err(err).Msg("persisting snapshot failed")
		}
	}
	logger.Info().Msg("snapshot completed")
	return nil
}

// interrupted swallows err when ctx was cancelled so Ctrl+C exits cleanly.
func interrupted(ctx context.Context, err error, logger zerolog.Logger) error {
	if ctx.Err() != nil {
		logger.Info().Msg("interrupted")
		return nil
	}
	return err
}

func viewLatest(cfg config.Config, stdout io.Writer, logger zerolog.Logger) error {
	rec, err := storage.LoadLatest(filepath.Join(cfg.HistoryDir, storage.HistoryFile), logger)
	if err != nil {
		return err
	}
	return report.RenderRecord(stdout, *rec, cfg.TopK, isTerminal(stdout))
}

// view renders the latest persisted record, once or every interval with -follow.
func view(ctx context.Context, cfg config.Config, stdout io.Writer, logger zerolog.Logger) error {
	if !cfg.Follow {
		return viewLatest(cfg, stdout, logger)
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		if isTerminal(stdout) {
			io.WriteString(stdout, clearSequence)
		}
		if err := viewLatest(cfg, stdout, logger); err != nil {
			if !errors.Is(err, storage.ErrNoHistory) {
				return err
			}
			logger.Warn().Msg("no snapshot history found, run watch mode first")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// exportLatest writes the newest persisted record to cfg.Out.
func exportLatest(cfg config.Config, logger zerolog.Logger) error {
	logger.Info().Str("out", cfg.Out).Msg("generating system report")
	rec, err := storage.LoadLatest(filepath.Join(cfg.HistoryDir, storage.HistoryFile), logger)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(cfg.Out)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.ExportRecord(f, cfg.Out, *rec); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logger.Info().Msg("report completed")
	return nil
}
