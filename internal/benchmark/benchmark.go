package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vqgate/internal/config"
	"vqgate/internal/logging"
	"vqgate/internal/services"
)

// FrameReporter is implemented by inference results that report generated
// frames, which lets a trial derive throughput.
type FrameReporter interface {
	FramesGenerated() int
	ProcessingTime() time.Duration
}

// InferenceFunc is the entry point under test.
type InferenceFunc func(ctx context.Context) (any, error)

// Request scopes one benchmark run.
type Request struct {
	ScenarioID   string
	ModelVersion string
	// NumRuns falls back to the configured default when zero.
	NumRuns                int
	LatencyThresholdMS     float64
	ThroughputThresholdFPS float64
	// RunID groups results; generated when empty.
	RunID string
}

// Trial is one execution of the inference callable.
type Trial struct {
	Index           int       `json:"index"`
	StartedAt       time.Time `json:"started_at"`
	LatencyMS       float64   `json:"latency_ms"`
	FramesGenerated int       `json:"frames_generated"`
	ThroughputFPS   float64   `json:"throughput_fps"`
	Usage           Usage     `json:"usage"`
	Succeeded       bool      `json:"succeeded"`
	Error           string    `json:"error,omitempty"`
}

// Result aggregates every trial of one benchmark run.
type Result struct {
	RunID                  string       `json:"run_id"`
	ScenarioID             string       `json:"scenario_id"`
	ModelVersion           string       `json:"model_version"`
	NumRuns                int          `json:"num_runs"`
	SuccessfulRuns         int          `json:"successful_runs"`
	FailedRuns             int          `json:"failed_runs"`
	Latency                LatencyStats `json:"latency"`
	AvgThroughputFPS       float64      `json:"avg_throughput_fps"`
	PeakThroughputFPS      float64      `json:"peak_throughput_fps"`
	AvgMemoryMB            float64      `json:"avg_memory_mb"`
	PeakMemoryMB           float64      `json:"peak_memory_mb"`
	AvgCPUPercent          float64      `json:"avg_cpu_percent"`
	LatencyThresholdMS     float64      `json:"latency_threshold_ms"`
	ThroughputThresholdFPS float64      `json:"throughput_threshold_fps"`
	Passed                 bool         `json:"passed"`
	Trials                 []Trial      `json:"trials"`
	StartedAt              time.Time    `json:"started_at"`
	CompletedAt            time.Time    `json:"completed_at"`
}

// Recorder receives finished benchmark results.
type Recorder interface {
	RecordBenchmark(ctx context.Context, result Result) error
}

// Option configures a Benchmarker.
type Option func(*Benchmarker)

// WithNumRuns sets the default trial count.
func WithNumRuns(n int) Option {
	return func(b *Benchmarker) {
		if n > 0 {
			b.numRuns = n
		}
	}
}

// WithPause sets the pause between trials.
func WithPause(d time.Duration) Option {
	return func(b *Benchmarker) {
		if d >= 0 {
			b.pause = d
		}
	}
}

// WithSampling configures the resource monitor.
func WithSampling(interval time.Duration, capacity int, joinTimeout time.Duration) Option {
	return func(b *Benchmarker) {
		b.interval = interval
		b.capacity = capacity
		b.joinTimeout = joinTimeout
	}
}

// WithSampler replaces the process sampler.
func WithSampler(s Sampler) Option {
	return func(b *Benchmarker) { b.sampler = s }
}

// WithTrialTimeout bounds each inference call. Zero disables the bound.
func WithTrialTimeout(d time.Duration) Option {
	return func(b *Benchmarker) { b.trialTimeout = d }
}

// WithRecorder adds a result recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Benchmarker) {
		if r != nil {
			b.recorders = append(b.recorders, r)
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Benchmarker) { b.logger = logging.NewComponentLogger(logger, "benchmark") }
}

// Benchmarker runs repeated inference trials.
type Benchmarker struct {
	numRuns      int
	pause        time.Duration
	interval     time.Duration
	capacity     int
	joinTimeout  time.Duration
	trialTimeout time.Duration
	sampler      Sampler
	recorders    []Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// New constructs a benchmarker with the stock defaults.
func New(opts ...Option) *Benchmarker {
	b := &Benchmarker{
		numRuns:     10,
		pause:       500 * time.Millisecond,
		interval:    100 * time.Millisecond,
		capacity:    1000,
		joinTimeout: time.Second,
		sampler:     SampleProcess,
		logger:      logging.NewComponentLogger(nil, "benchmark"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FromConfig constructs a benchmarker from the benchmark config section.
// Extra options are applied after the configured ones.
func FromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Benchmarker {
	bc := cfg.Benchmark
	base := []Option{
		WithNumRuns(bc.NumRuns),
		WithPause(time.Duration(bc.TrialPauseMS) * time.Millisecond),
		WithSampling(
			time.Duration(bc.SampleIntervalMS)*time.Millisecond,
			bc.SampleBuffer,
			time.Duration(bc.MonitorJoinTimeoutMS)*time.Millisecond,
		),
		WithTrialTimeout(time.Duration(bc.TrialTimeoutSeconds) * time.Second),
		WithLogger(logger),
	}
	return New(append(base, opts...)...)
}

// BenchmarkInference runs fn req.NumRuns times and aggregates the trials.
// Trial failures are recorded in the result; only cancellation of ctx ends
// the run early.
func (b *Benchmarker) BenchmarkInference(ctx context.Context, fn InferenceFunc, req Request) (Result, error) {
	if fn == nil {
		return Result{}, services.Wrap(services.ErrValidation, "benchmark", "run", "inference function is nil", nil)
	}
	if req.NumRuns < 0 {
		return Result{}, services.Wrap(services.ErrValidation, "benchmark", "run",
			fmt.Sprintf("num_runs must be positive, got %d", req.NumRuns), nil)
	}
	if req.NumRuns == 0 {
		req.NumRuns = b.numRuns
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	ctx = services.WithRunID(services.WithScenario(ctx, req.ScenarioID), req.RunID)
	logger := logging.WithContext(ctx, b.logger)

	res := Result{
		RunID:                  req.RunID,
		ScenarioID:             req.ScenarioID,
		ModelVersion:           req.ModelVersion,
		NumRuns:                req.NumRuns,
		LatencyThresholdMS:     req.LatencyThresholdMS,
		ThroughputThresholdFPS: req.ThroughputThresholdFPS,
		Trials:                 make([]Trial, 0, req.NumRuns),
		StartedAt:              b.now().UTC(),
	}
	logger.Info("benchmark started",
		logging.String("model_version", req.ModelVersion),
		logging.Int("num_runs", req.NumRuns),
	)

	for i := range req.NumRuns {
		if i > 0 && b.pause > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(b.pause):
			}
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		trial := b.runTrial(ctx, fn, i)
		if !trial.Succeeded {
			logging.WarnWithContext(logger, "benchmark trial failed", "trial_failed",
				logging.Int("trial", i),
				logging.String("error", trial.Error),
				logging.String(logging.FieldImpact, "trial reports no throughput"),
			)
		}
		res.Trials = append(res.Trials, trial)
	}

	aggregate(&res)
	res.CompletedAt = b.now().UTC()

	logger.Info("benchmark complete",
		logging.Bool("passed", res.Passed),
		logging.Int("successful_runs", res.SuccessfulRuns),
		logging.Int("failed_runs", res.FailedRuns),
		logging.Float64("mean_latency_ms", res.Latency.Mean),
		logging.Float64("p95_latency_ms", res.Latency.P95),
		logging.Float64("avg_throughput_fps", res.AvgThroughputFPS),
	)
	for _, r := range b.recorders {
		if err := r.RecordBenchmark(ctx, res); err != nil {
			logging.WarnWithContext(logger, "failed to record benchmark result", "record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "result missing from history or telemetry"),
			)
		}
	}
	return res, nil
}

func (b *Benchmarker) runTrial(ctx context.Context, fn InferenceFunc, index int) Trial {
	trial := Trial{Index: index, StartedAt: b.now().UTC()}
	monitor := NewMonitor(b.interval, b.capacity, b.joinTimeout, b.sampler)
	monitor.Start()

	start := time.Now()
	out, err := b.invoke(ctx, fn)
	trial.LatencyMS = float64(time.Since(start)) / float64(time.Millisecond)

	usage, stopErr := monitor.Stop()
	if stopErr != nil {
		b.logger.Debug("resource monitor join timed out", logging.Error(stopErr))
	}
	trial.Usage = usage

	if err != nil {
		trial.Error = err.Error()
		return trial
	}
	trial.Succeeded = true
	if rep, ok := out.(FrameReporter); ok {
		trial.FramesGenerated = rep.FramesGenerated()
		if secs := rep.ProcessingTime().Seconds(); secs > 0 && trial.FramesGenerated > 0 {
			trial.ThroughputFPS = float64(trial.FramesGenerated) / secs
		}
	}
	return trial
}

// invoke calls fn, recovering panics and enforcing the trial timeout. A
// callable that ignores its context is abandoned once the timeout fires.
func (b *Benchmarker) invoke(ctx context.Context, fn InferenceFunc) (out any, err error) {
	call := func(ctx context.Context) (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("inference panic: %v", r)
			}
		}()
		return fn(ctx)
	}
	if b.trialTimeout <= 0 {
		return call(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, b.trialTimeout)
	defer cancel()
	type outcome struct {
		out any
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		o, e := call(tctx)
		ch <- outcome{o, e}
	}()
	select {
	case o := <-ch:
		if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Wrap(services.ErrTimeout, "benchmark", "trial",
				fmt.Sprintf("inference exceeded %s", b.trialTimeout), o.err)
		}
		return o.out, o.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTimeout, "benchmark", "trial",
			fmt.Sprintf("inference exceeded %s", b.trialTimeout), nil)
	}
}

// aggregate fills the summary fields from res.Trials. Latency statistics
// cover every trial, failed ones included; throughput covers trials that
// reported it.
func aggregate(res *Result) {
	var latencies, throughputs, memAvg, memPeak, cpu []float64
	for _, t := range res.Trials {
		if t.Usage.Samples > 0 {
			memAvg = append(memAvg, t.Usage.AvgMemoryMB)
			memPeak = append(memPeak, t.Usage.PeakMemoryMB)
			cpu = append(cpu, t.Usage.AvgCPUPercent)
		}
		latencies = append(latencies, t.LatencyMS)
		if t.Succeeded {
			res.SuccessfulRuns++
		} else {
			res.FailedRuns++
		}
		if t.ThroughputFPS > 0 {
			throughputs = append(throughputs, t.ThroughputFPS)
		}
	}
	res.Latency = Summarize(latencies)
	res.AvgThroughputFPS, res.PeakThroughputFPS = meanMax(throughputs)
	res.AvgMemoryMB, _ = meanMax(memAvg)
	_, res.PeakMemoryMB = meanMax(memPeak)
	res.AvgCPUPercent, _ = meanMax(cpu)
	res.Passed = passes(*res, len(throughputs) > 0)
}

func passes(res Result, hasThroughput bool) bool {
	if res.LatencyThresholdMS > 0 && res.Latency.Mean > res.LatencyThresholdMS {
		return false
	}
	if hasThroughput && res.AvgThroughputFPS < res.ThroughputThresholdFPS {
		return false
	}
	return true
}
