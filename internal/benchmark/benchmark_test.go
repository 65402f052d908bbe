package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"vqgate/internal/logging"
	"vqgate/internal/services"
	"vqgate/internal/testsupport"
)

type frameReport struct {
	count int
	dur   time.Duration
}

func (f frameReport) FramesGenerated() int          { return f.count }
func (f frameReport) ProcessingTime() time.Duration { return f.dur }

func fakeSampler() Sampler {
	var calls atomic.Int64
	return func() (ProcessSample, error) {
		n := calls.Add(1)
		return ProcessSample{
			CPUTime:  time.Duration(n) * time.Millisecond,
			RSSBytes: uint64(n) * 1024 * 1024,
		}, nil
	}
}

func newTestBenchmarker(t *testing.T, opts ...Option) *Benchmarker {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBenchmarkRuns(4))
	base := []Option{WithSampler(fakeSampler())}
	return FromConfig(cfg, logging.NewNop(), append(base, opts...)...)
}

func TestBenchmarkRecordsEveryTrialDespiteFailures(t *testing.T) {
	b := newTestBenchmarker(t)
	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("generator crashed")
		}
		return frameReport{count: 48, dur: 2 * time.Second}, nil
	}

	res, err := b.BenchmarkInference(context.Background(), fn, Request{
		ScenarioID:             "simple_motion",
		ModelVersion:           "v1",
		NumRuns:                6,
		LatencyThresholdMS:     10_000,
		ThroughputThresholdFPS: 10,
	})
	if err != nil {
		t.Fatalf("BenchmarkInference returned error: %v", err)
	}
	if len(res.Trials) != 6 || calls != 6 {
		t.Fatalf("expected 6 trials, got %d (calls=%d)", len(res.Trials), calls)
	}
	if res.SuccessfulRuns != 3 || res.FailedRuns != 3 {
		t.Fatalf("expected 3/3 split, got %d/%d", res.SuccessfulRuns, res.FailedRuns)
	}
	for _, trial := range res.Trials {
		if !trial.Succeeded && (trial.ThroughputFPS != 0 || trial.FramesGenerated != 0 || trial.Error == "") {
			t.Fatalf("failed trial should carry only an error, got %+v", trial)
		}
	}
	if res.AvgThroughputFPS != 24 || res.PeakThroughputFPS != 24 {
		t.Fatalf("expected 24 fps from reporting trials, got avg=%v peak=%v", res.AvgThroughputFPS, res.PeakThroughputFPS)
	}
	if !res.Passed {
		t.Fatalf("expected pass, got %+v", res)
	}
	if res.RunID == "" {
		t.Fatal("expected generated run id")
	}
}

func TestBenchmarkUsesConfiguredRunCount(t *testing.T) {
	b := newTestBenchmarker(t)
	res, err := b.BenchmarkInference(context.Background(), func(context.Context) (any, error) { return nil, nil }, Request{})
	if err != nil {
		t.Fatalf("BenchmarkInference returned error: %v", err)
	}
	if len(res.Trials) != 4 {
		t.Fatalf("expected configured 4 trials, got %d", len(res.Trials))
	}
	if !res.Passed || res.AvgThroughputFPS != 0 {
		t.Fatalf("throughput must be advisory without frame reports, got %+v", res)
	}
}

func TestBenchmarkFailsOnThresholds(t *testing.T) {
	b := newTestBenchmarker(t)
	slow := func(context.Context) (any, error) { return frameReport{count: 1, dur: time.Second}, nil }

	res, _ := b.BenchmarkInference(context.Background(), slow, Request{NumRuns: 2, ThroughputThresholdFPS: 5})
	if res.Passed {
		t.Fatal("expected throughput threshold failure at 1 fps")
	}

	res, _ = b.BenchmarkInference(context.Background(), func(context.Context) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}, Request{NumRuns: 1, LatencyThresholdMS: 1})
	if res.Passed {
		t.Fatalf("expected latency threshold failure, got mean %v", res.Latency.Mean)
	}
}

func TestBenchmarkFailedTrialsStillMeasureLatency(t *testing.T) {
	b := newTestBenchmarker(t)
	failing := func(context.Context) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, errors.New("generator crashed")
	}

	res, err := b.BenchmarkInference(context.Background(), failing, Request{NumRuns: 3, LatencyThresholdMS: 1000})
	if err != nil {
		t.Fatalf("BenchmarkInference returned error: %v", err)
	}
	if res.SuccessfulRuns != 0 || res.FailedRuns != 3 {
		t.Fatalf("expected 0/3 split, got %d/%d", res.SuccessfulRuns, res.FailedRuns)
	}
	if res.Latency.Mean < 20 || res.Latency.P95 < 20 || res.Latency.Min < 20 {
		t.Fatalf("expected latency from failed trials, got %+v", res.Latency)
	}
	if res.AvgThroughputFPS != 0 {
		t.Fatalf("failed trials must not report throughput, got %v", res.AvgThroughputFPS)
	}
	if !res.Passed {
		t.Fatalf("expected pass within latency threshold, got %+v", res)
	}

	res, _ = b.BenchmarkInference(context.Background(), failing, Request{NumRuns: 2, LatencyThresholdMS: 5})
	if res.Passed {
		t.Fatalf("expected latency threshold failure, got mean %v", res.Latency.Mean)
	}
}

func TestBenchmarkRecoversPanicsAndTimeouts(t *testing.T) {
	b := newTestBenchmarker(t, WithTrialTimeout(20*time.Millisecond))
	var calls int
	fn := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			panic("decoder exploded")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	res, err := b.BenchmarkInference(context.Background(), fn, Request{NumRuns: 2})
	if err != nil {
		t.Fatalf("BenchmarkInference returned error: %v", err)
	}
	if res.FailedRuns != 2 {
		t.Fatalf("expected both trials failed, got %+v", res.Trials)
	}
	if res.Trials[0].Error == "" || res.Trials[1].Error == "" {
		t.Fatal("expected trial errors recorded")
	}
}

func TestBenchmarkStopsOnCancel(t *testing.T) {
	b := newTestBenchmarker(t)
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(context.Context) (any, error) {
		cancel()
		return nil, nil
	}
	if _, err := b.BenchmarkInference(ctx, fn, Request{NumRuns: 3}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestBenchmarkRejectsInvalidRequest(t *testing.T) {
	b := newTestBenchmarker(t)
	if _, err := b.BenchmarkInference(context.Background(), nil, Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil fn, got %v", err)
	}
	fn := func(context.Context) (any, error) { return nil, nil }
	if _, err := b.BenchmarkInference(context.Background(), fn, Request{NumRuns: -1}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative runs, got %v", err)
	}
}

type recorder struct{ got []Result }

func (r *recorder) RecordBenchmark(_ context.Context, res Result) error {
	r.got = append(r.got, res)
	return errors.New("disk full")
}

func TestBenchmarkRecorderErrorsAreNotFatal(t *testing.T) {
	rec := &recorder{}
	b := newTestBenchmarker(t, WithRecorder(rec))
	if _, err := b.BenchmarkInference(context.Background(), func(context.Context) (any, error) { return nil, nil }, Request{NumRuns: 1}); err != nil {
		t.Fatalf("recorder failure leaked: %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected one recorded result, got %d", len(rec.got))
	}
}

func TestSummarizeUsesObservedLatencies(t *testing.T) {
	latencies := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		latencies = append(latencies, float64(i))
	}
	stats := Summarize(latencies)
	if stats.P95 != 95 || stats.P99 != 99 {
		t.Fatalf("expected empirical p95=95 p99=99, got %v %v", stats.P95, stats.P99)
	}
	if stats.Median != 50.5 || stats.Mean != 50.5 || stats.Min != 1 || stats.Max != 100 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if latencies[0] != 100 {
		t.Fatal("Summarize must not reorder its input")
	}

	few := Summarize([]float64{10, 30, 20})
	if !slices.Contains([]float64{10, 20, 30}, few.P95) || !slices.Contains([]float64{10, 20, 30}, few.P99) {
		t.Fatalf("percentiles must be observed values, got %+v", few)
	}
	if few.Median != 20 {
		t.Fatalf("expected median 20, got %v", few.Median)
	}
	if (Summarize(nil) != LatencyStats{}) {
		t.Fatal("expected zero stats for no observations")
	}
}

func TestMonitorHandsBackSnapshot(t *testing.T) {
	m := NewMonitor(2*time.Millisecond, 4, time.Second, fakeSampler())
	m.Start()
	time.Sleep(20 * time.Millisecond)
	usage, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if usage.Samples == 0 || usage.Samples > 4 {
		t.Fatalf("expected bounded sample count, got %d", usage.Samples)
	}
	if usage.PeakMemoryMB < usage.AvgMemoryMB || usage.AvgMemoryMB <= 0 {
		t.Fatalf("unexpected memory summary %+v", usage)
	}
	if again, err := m.Stop(); err != nil || again.Samples != 0 {
		t.Fatalf("second Stop should be a no-op, got %+v %v", again, err)
	}
}

func TestMonitorJoinTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	var first atomic.Bool
	sampler := func() (ProcessSample, error) {
		if first.CompareAndSwap(false, true) {
			return ProcessSample{}, nil
		}
		<-block
		return ProcessSample{}, nil
	}
	m := NewMonitor(time.Millisecond, 4, 10*time.Millisecond, sampler)
	m.Start()
	time.Sleep(5 * time.Millisecond)
	if _, err := m.Stop(); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected join timeout, got %v", err)
	}
}

func TestRingKeepsMostRecent(t *testing.T) {
	r := newRing(3)
	for i := 1; i <= 5; i++ {
		r.push(float64(i))
	}
	got := r.snapshot()
	slices.Sort(got)
	if !slices.Equal(got, []float64{3, 4, 5}) {
		t.Fatalf("expected last three values, got %v", got)
	}
}

func TestSampleProcessReadsCounters(t *testing.T) {
	sample, err := SampleProcess()
	if err != nil {
		t.Fatalf("SampleProcess returned error: %v", err)
	}
	if sample.RSSBytes == 0 {
		t.Fatal("expected non-zero resident memory")
	}
}

func TestComparePerformance(t *testing.T) {
	base := Result{ModelVersion: "v1", Latency: LatencyStats{Mean: 200}, AvgThroughputFPS: 10, AvgMemoryMB: 400}
	test := Result{ModelVersion: "v2", Latency: LatencyStats{Mean: 150}, AvgThroughputFPS: 12, AvgMemoryMB: 500}
	c := ComparePerformance(base, test)
	if c.LatencyDeltaPct != -25 || !c.Faster {
		t.Fatalf("expected 25%% faster, got %+v", c)
	}
	if c.ThroughputDeltaPct < 19.999 || c.ThroughputDeltaPct > 20.001 || !c.HigherThroughput {
		t.Fatalf("expected +20%% throughput, got %+v", c)
	}
	if c.MemoryDeltaPct != 25 || c.MoreEfficient {
		t.Fatalf("expected +25%% memory, got %+v", c)
	}
	if z := ComparePerformance(Result{}, test); z.LatencyDeltaPct != 0 || z.Faster {
		t.Fatalf("zero baseline should yield zero deltas, got %+v", z)
	}
}

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "INFERENCE_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestCommandInferenceParsesSummary(t *testing.T) {
	stubCommand(t, "success")
	out, err := CommandInference("generate", "--prompt", "cat")(context.Background())
	if err != nil {
		t.Fatalf("CommandInference returned error: %v", err)
	}
	rep, ok := out.(FrameReporter)
	if !ok {
		t.Fatalf("expected FrameReporter, got %T", out)
	}
	if rep.FramesGenerated() != 72 || rep.ProcessingTime() != 3*time.Second {
		t.Fatalf("unexpected summary %+v", out)
	}
}

func TestCommandInferenceWithoutSummary(t *testing.T) {
	stubCommand(t, "plain")
	out, err := CommandInference("generate")(context.Background())
	if err != nil || out != nil {
		t.Fatalf("expected latency-only trial, got %v %v", out, err)
	}
}

func TestCommandInferenceFailure(t *testing.T) {
	stubCommand(t, "failure")
	_, err := CommandInference("generate")(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("INFERENCE_HELPER_MODE") {
	case "success":
		fmt.Println("loading model")
		fmt.Println(`{"frames_generated":72,"processing_time":3}`)
		fmt.Println()
		os.Exit(0)
	case "plain":
		fmt.Println("done")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "CUDA out of memory")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
