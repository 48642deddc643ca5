// Package monitor runs the sampling loop: one snapshot per tick, fed through
// every detector, then presented and persisted.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/srodi/os-atlas/pkg/analysis/health"
	"github.com/srodi/os-atlas/pkg/analysis/stall"
	"github.com/srodi/os-atlas/pkg/analysis/starvation"
	"github.com/srodi/os-atlas/pkg/analysis/trend"
	"github.com/srodi/os-atlas/pkg/collector"
	"github.com/srodi/os-atlas/pkg/metrics"
	"github.com/srodi/os-atlas/pkg/report"
	"github.com/srodi/os-atlas/pkg/storage"
	"github.com/srodi/os-atlas/pkg/types"
)

// ErrSkipped marks a tick abandoned before analysis because sampling failed.
var ErrSkipped = errors.New("monitor: tick skipped")

// Presenter receives every completed tick. It must not retain or mutate the analysis.
type Presenter func(types.Analysis) error

// Settings configures the detectors and cadence.
type Settings struct {
	Interval         time.Duration
	Window           int
	StarvationMinCPU float64
	StallMinCPU      float64
	Health           health.Thresholds
	Trend            trend.Thresholds
}

// Monitor owns every piece of analysis state. It is not safe for concurrent use.
type Monitor struct {
	source   collector.Sampler
	interval time.Duration

	starvation *starvation.Detector
	stall      *stall.Detector
	trends     *trend.History
	health     health.Thresholds

	sink     storage.Sink
	present  Presenter
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// New builds a monitor over source with freshly constructed detectors.
func New(source collector.Sampler, s Settings) (*Monitor, error) {
	if source == nil {
		return nil, errors.New("monitor: nil sampler")
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("monitor: interval must be positive, got %v", s.Interval)
	}
	starved, err := starvation.New(s.Window, s.StarvationMinCPU)
	if err != nil {
		return nil, err
	}
	stalled, err := stall.New(s.Window, s.StallMinCPU)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		source:     source,
		interval:   s.Interval,
		starvation: starved,
		stall:      stalled,
		trends:     trend.NewHistory(s.Trend),
		health:     s.Health,
		logger:     zerolog.Nop(),
	}, nil
}

// SetLogger replaces the default no-op logger.
func (m *Monitor) SetLogger(l zerolog.Logger) { m.logger = l }

// SetSink enables persistence of every analyzed tick.
func (m *Monitor) SetSink(s storage.Sink) { m.sink = s }

// SetPresenter installs the renderer called after each tick.
func (m *Monitor) SetPresenter(p Presenter) { m.present = p }

// SetRecorder publishes each tick to Prometheus gauges.
func (m *Monitor) SetRecorder(r *metrics.Recorder) { m.recorder = r }

// Tick runs one full cycle. A sampling failure returns ErrSkipped and leaves
// all detector state untouched; a detector failure is returned as is.
func (m *Monitor) Tick(ctx context.Context) (types.Analysis, error) {
	snap, err := m.source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// interrupted mid-sample; Run stops before the next tick
			return types.Analysis{}, fmt.Errorf("%w: %v", ErrSkipped, ctx.Err())
		}
		m.logger.Error().Err(err).Msg("snapshot failed, skipping tick")
		if m.recorder != nil {
			m.recorder.SkippedTick()
		}
		return types.Analysis{}, fmt.Errorf("%w: %v", ErrSkipped, err)
	}

	a := types.Analysis{Snapshot: snap}
	for _, s := range m.trends.Observe(snap) {
		a.Trends = append(a.Trends, string(s))
	}

	m.starvation.Update(snap.Timestamp, snap.Processes)
	m.stall.Update(snap.Timestamp, snap.Processes)
	if a.Starved, err = m.starvation.Starved(); err != nil {
		return a, fmt.Errorf("starvation analysis: %w", err)
	}
	if a.Suspects, err = m.stall.Suspects(); err != nil {
		return a, fmt.Errorf("stall analysis: %w", err)
	}
	a.Verdict = health.Evaluate(snap.CPU, snap.Memory, a.Starved, a.Suspects, m.health)

	report.LogAnalysis(m.logger, a)
	if m.recorder != nil {
		m.recorder.Observe(metrics.Tick{
			CPU:       snap.CPU,
			Memory:    snap.Memory,
			Status:    a.Verdict.Status,
			Starved:   len(a.Starved),
			Suspects:  len(a.Suspects),
			Tracked:   m.starvation.Tracked(),
			Processes: len(snap.Processes),
		})
	}
	if m.present != nil {
		if err := m.present(a); err != nil {
			m.logger.Warn().Err(err).Msg("render failed")
		}
	}
	if m.sink != nil {
		if err := m.sink.Append(a.Record()); err != nil {
			m.logger.Error().Err(err).Msg("persisting snapshot failed")
			if m.recorder != nil {
				m.recorder.PersistFailure()
			}
		}
	}
	return a, nil
}

// Run ticks immediately and then once per interval until ctx is cancelled.
// Cancellation is only observed between ticks, so a started tick always
// completes. Skipped ticks are not fatal; detector errors are.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.interval).Msgf("starting watch mode (interval: %v)", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Tick(ctx); err != nil && !errors.Is(err, ErrSkipped) {
			return err
		}
		if ctx.Err() != nil {
			m.logger.Info().Msg("interrupted, stopping")
			return nil
		}
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("interrupted, stopping")
			return nil
		case <-ticker.C:
		}
	}
}
