package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vqgate/internal/benchmark"
	"vqgate/internal/regression"
)

// Metrics owns a private registry so runs never leak into the default one.
type Metrics struct {
	registry     *prometheus.Registry
	verdicts     *prometheus.CounterVec
	scores       *prometheus.GaugeVec
	metricErrors *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	benchmarks   *prometheus.CounterVec
}

// New registers the vqgate collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vqgate_regression_verdicts_total",
			Help: "Regression verdicts by status",
		}, []string{"status"}),
		scores: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vqgate_metric_score",
			Help: "Latest candidate score per scenario and metric",
		}, []string{"scenario", "metric"}),
		metricErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vqgate_metric_errors_total",
			Help: "Metric computations that failed with an error",
		}, []string{"metric"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vqgate_benchmark_latency_seconds",
			Help:    "Inference latency of benchmark trials, failed ones included",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"scenario"}),
		benchmarks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vqgate_benchmark_runs_total",
			Help: "Benchmark runs by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRegression implements regression.Recorder.
func (m *Metrics) RecordRegression(_ context.Context, res regression.Result) error {
	m.verdicts.WithLabelValues(string(res.Status)).Inc()
	for _, r := range res.MetricResults {
		if r.Errored() {
			m.metricErrors.WithLabelValues(r.Name).Inc()
		}
		if r.Available() {
			m.scores.WithLabelValues(res.ScenarioID, r.Name).Set(r.Score)
		}
	}
	return nil
}

// RecordBenchmark implements benchmark.Recorder.
func (m *Metrics) RecordBenchmark(_ context.Context, res benchmark.Result) error {
	outcome := "fail"
	if res.Passed {
		outcome = "pass"
	}
	m.benchmarks.WithLabelValues(outcome).Inc()
	obs := m.latency.WithLabelValues(res.ScenarioID)
	for _, t := range res.Trials {
		obs.Observe(t.LatencyMS / 1000)
	}
	return nil
}

// WriteTextfile atomically writes the registry to path.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("telemetry: create dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("telemetry: write textfile: %w", err)
	}
	return nil
}

var (
	_ regression.Recorder = (*Metrics)(nil)
	_ benchmark.Recorder  = (*Metrics)(nil)
)
