// Package metrics exposes the latest tick as Prometheus gauges.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srodi/os-atlas/pkg/types"
)

const namespace = "osatlas"

// Tick is the per-tick summary the loop publishes.
type Tick struct {
	CPU       types.CPUStats
	Memory    types.MemoryStats
	Status    types.Status
	Starved   int
	Suspects  int
	Tracked   int
	Processes int
}

// Recorder owns a private registry so several monitors (and tests) never clash.
type Recorder struct {
	registry *prometheus.Registry

	cpuUsage      prometheus.Gauge
	memUsed       prometheus.Gauge
	memAvailable  prometheus.Gauge
	memPressure   prometheus.Gauge
	health        prometheus.Gauge
	starved       prometheus.Gauge
	suspects      prometheus.Gauge
	tracked       prometheus.Gauge
	processes     prometheus.Gauge
	ticks         prometheus.Counter
	skippedTicks  prometheus.Counter
	persistErrors prometheus.Counter
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	r := &Recorder{
		registry:      prometheus.NewRegistry(),
		cpuUsage:      gauge("cpu_usage_percent", "System-wide CPU usage of the last tick."),
		memUsed:       gauge("memory_used_percent", "System-wide memory usage of the last tick."),
		memAvailable:  gauge("memory_available_mb", "Available memory in MB."),
		memPressure:   gauge("memory_pressure", "1 when memory pressure is high."),
		health:        gauge("health_status", "0 healthy, 1 degraded, 2 critical."),
		starved:       gauge("starved_processes", "Processes flagged as starved."),
		suspects:      gauge("stall_suspects", "Processes flagged as possibly stalled."),
		tracked:       gauge("tracked_processes", "Processes held in the analysis window."),
		processes:     gauge("sampled_processes", "Processes sampled in the last tick."),
		ticks:         counter("ticks_total", "Completed ticks."),
		skippedTicks:  counter("skipped_ticks_total", "Ticks abandoned because sampling failed."),
		persistErrors: counter("persist_failures_total", "Records the history log failed to store."),
	}
	r.registry.MustRegister(
		r.cpuUsage, r.memUsed, r.memAvailable, r.memPressure, r.health,
		r.starved, r.suspects, r.tracked, r.processes,
		r.ticks, r.skippedTicks, r.persistErrors,
	)
	return r
}

// Observe publishes one completed tick.
func (r *Recorder) Observe(t Tick) {
	r.cpuUsage.Set(t.CPU.UsagePercent)
	r.memUsed.Set(t.Memory.PercentUsed)
	r.memAvailable.Set(t.Memory.AvailableMB)
	pressure := 0.0
	if t.Memory.Pressure == types.PressureHigh {
		pressure = 1
	}
	r.memPressure.Set(pressure)
	r.health.Set(float64(t.Status.Severity()))
	r.starved.Set(float64(t.Starved))
	r.suspects.Set(float64(t.Suspects))
	r.tracked.Set(float64(t.Tracked))
	r.processes.Set(float64(t.Processes))
	r.ticks.Inc()
}

// SkippedTick counts a tick whose snapshot could not be taken.
func (r *Recorder) SkippedTick() { r.skippedTicks.Inc() }

// PersistFailure counts a record the sink did not store.
func (r *Recorder) PersistFailure() { r.persistErrors.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
