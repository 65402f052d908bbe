package regression_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"vqgate/internal/golden"
	"vqgate/internal/logging"
	"vqgate/internal/media/frames"
	"vqgate/internal/metrics"
	"vqgate/internal/regression"
	"vqgate/internal/scenario"
	"vqgate/internal/services"
	"vqgate/internal/testsupport"
)

// fixedMetric returns a preset score per candidate path and remembers the
// reference it was handed.
type fixedMetric struct {
	name   string
	scores map[string]float64

	mu      sync.Mutex
	lastRef metrics.Reference
}

func (m *fixedMetric) Name() string { return m.name }

func (m *fixedMetric) Compute(_ context.Context, clip *frames.Clip, ref metrics.Reference) (metrics.Result, error) {
	m.mu.Lock()
	m.lastRef = ref
	m.mu.Unlock()
	return metrics.Result{Score: m.scores[clip.Path]}, nil
}

type captureRecorder struct {
	mu      sync.Mutex
	results []regression.Result
}

func (r *captureRecorder) RecordRegression(_ context.Context, res regression.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type harness struct {
	dir      string
	source   *testsupport.FakeSource
	store    *golden.Manager
	engine   *metrics.Engine
	ssim     *fixedMetric
	recorder *captureRecorder
	suite    *regression.Suite
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		dir:      testsupport.BaseDir(cfg),
		source:   testsupport.NewFakeSource(),
		ssim:     &fixedMetric{name: metrics.SSIM, scores: map[string]float64{}},
		recorder: &captureRecorder{},
	}
	store, err := golden.FromConfig(cfg, h.source, logging.NewNop())
	if err != nil {
		t.Fatalf("open golden store: %v", err)
	}
	h.store = store

	h.engine = metrics.NewEngine(h.source, cfg.MetricThresholds(), logging.NewNop())
	h.engine.Register(h.ssim)
	h.engine.Register(metrics.NewUnavailable(metrics.InstructionFollowing))
	h.engine.Register(metrics.NewUnavailable(metrics.SemanticSimilarity))

	catalog := scenario.New(
		scenario.Scenario{ID: "S1", Quality: scenario.QualityThresholds{SSIM: 0.75}},
		scenario.Scenario{ID: "S2", Quality: scenario.QualityThresholds{SSIM: 0.95}},
		scenario.Scenario{ID: "S3"},
	)
	h.suite = regression.NewSuite(h.engine, h.store, catalog,
		regression.WithLogger(logging.NewNop()),
		regression.WithRecorder(h.recorder),
	)
	return h
}

func (h *harness) video(t *testing.T, name string, score float64) string {
	t.Helper()
	path := filepath.Join(h.dir, "videos", name)
	testsupport.WriteFile(t, path, 1024, byte(len(name)))
	h.source.Set(path, testsupport.MovingClip(16, 16, 3, 1))
	h.ssim.scores[path] = score
	return path
}

func (h *harness) approvedBaseline(t *testing.T, scenarioID string, scores map[string]float64) golden.Reference {
	t.Helper()
	src := h.video(t, scenarioID+"-baseline.mp4", 0)
	id, err := h.store.AddReference(context.Background(), golden.AddRequest{
		ScenarioID:   scenarioID,
		VideoPath:    src,
		ModelVersion: "v1",
		MetricScores: scores,
		Approved:     true,
		Approver:     "reviewer",
	})
	if err != nil {
		t.Fatalf("add baseline: %v", err)
	}
	ref, _ := h.store.GetReference(id)
	return ref
}

func TestRegressionDegradedEndToEnd(t *testing.T) {
	h := newHarness(t)
	baseline := h.approvedBaseline(t, "S1", map[string]float64{"ssim": 0.85})
	candidate := h.video(t, "candidate.mp4", 0.78)

	res, err := h.suite.RunRegressionTest(context.Background(), "S1", candidate, regression.RunOptions{TestVersion: "v2"})
	if err != nil {
		t.Fatalf("RunRegressionTest returned error: %v", err)
	}
	if res.Status != regression.StatusDegraded {
		t.Fatalf("expected DEGRADED, got %s (%+v)", res.Status, res.Classification)
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != "ssim" {
		t.Fatalf("expected degraded_metrics [ssim], got %v", res.Degraded)
	}
	if len(res.Failing) != 0 {
		t.Fatalf("expected no failing metrics, got %v", res.Failing)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected placeholder metrics skipped, got %v", res.Skipped)
	}
	if res.BaselineReferenceID != baseline.ID || res.BaselineVersion != "v1" || res.TestVersion != "v2" {
		t.Fatalf("unexpected provenance %+v", res)
	}
	if got := h.ssim.lastRef.VideoPath; got != h.store.ArtifactPath(baseline) {
		t.Fatalf("expected baseline artifact as reference, got %q", got)
	}
	if delta := res.Deltas["ssim"]; delta > -0.069 || delta < -0.071 {
		t.Fatalf("unexpected delta %v", delta)
	}
	if res.RunID == "" || len(h.recorder.results) != 1 {
		t.Fatalf("expected recorded result with run id, got %d records", len(h.recorder.results))
	}
}

func TestRegressionFailsBelowThreshold(t *testing.T) {
	h := newHarness(t)
	h.approvedBaseline(t, "S2", map[string]float64{"ssim": 0.97})
	candidate := h.video(t, "candidate.mp4", 0.96)

	res, err := h.suite.RunRegressionTest(context.Background(), "S2", candidate, regression.RunOptions{})
	if err != nil {
		t.Fatalf("RunRegressionTest returned error: %v", err)
	}
	if res.Status != regression.StatusPass {
		t.Fatalf("expected PASS at 0.96 vs 0.95 threshold, got %s", res.Status)
	}

	low := h.video(t, "low.mp4", 0.90)
	res, _ = h.suite.RunRegressionTest(context.Background(), "S2", low, regression.RunOptions{})
	if res.Status != regression.StatusFail || len(res.Failing) != 1 {
		t.Fatalf("expected FAIL under the scenario threshold, got %s %v", res.Status, res.Failing)
	}
}

func TestScenarioThresholdsDoNotLeak(t *testing.T) {
	h := newHarness(t)
	h.approvedBaseline(t, "S2", map[string]float64{"ssim": 0.96})
	h.approvedBaseline(t, "S3", map[string]float64{"ssim": 0.80})
	candidate := h.video(t, "candidate.mp4", 0.80)

	if _, err := h.suite.RunRegressionTest(context.Background(), "S2", candidate, regression.RunOptions{}); err != nil {
		t.Fatalf("S2 run: %v", err)
	}
	res, err := h.suite.RunRegressionTest(context.Background(), "S3", candidate, regression.RunOptions{})
	if err != nil {
		t.Fatalf("S3 run: %v", err)
	}
	ssim := metrics.ByName(res.MetricResults)["ssim"]
	if ssim.Threshold != 0.75 || !ssim.Passed {
		t.Fatalf("expected default ssim threshold for S3, got %+v", ssim)
	}
}

func TestRegressionErrorWithoutApprovedBaseline(t *testing.T) {
	h := newHarness(t)
	src := h.video(t, "pending.mp4", 0)
	if _, err := h.store.AddReference(context.Background(), golden.AddRequest{ScenarioID: "S1", VideoPath: src, ModelVersion: "v1"}); err != nil {
		t.Fatalf("add pending reference: %v", err)
	}
	candidate := h.video(t, "candidate.mp4", 0.9)

	res, err := h.suite.RunRegressionTest(context.Background(), "S1", candidate, regression.RunOptions{})
	if err != nil {
		t.Fatalf("missing baseline must not be an error: %v", err)
	}
	if res.Status != regression.StatusError || res.Notes == "" {
		t.Fatalf("expected ERROR with note, got %+v", res)
	}
	if len(res.MetricResults) != 0 {
		t.Fatal("expected no metric computation without a baseline")
	}
}

func TestRegressionUnknownScenarioIsError(t *testing.T) {
	h := newHarness(t)
	_, err := h.suite.RunRegressionTest(context.Background(), "nope", "x.mp4", regression.RunOptions{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFullSuiteIsolatesScenarios(t *testing.T) {
	h := newHarness(t)
	h.approvedBaseline(t, "S1", map[string]float64{"ssim": 0.80})
	h.approvedBaseline(t, "S3", map[string]float64{"ssim": 0.80})
	good := h.video(t, "good.mp4", 0.81)

	results, err := h.suite.RunFullRegressionSuite(context.Background(), map[string]string{
		"S1": good,
		"S3": filepath.Join(h.dir, "missing.mp4"),
		"S2": good,
	}, regression.RunOptions{})
	if err != nil {
		t.Fatalf("RunFullRegressionSuite returned error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	byScenario := map[string]regression.Result{}
	for _, r := range results {
		byScenario[r.ScenarioID] = r
	}
	if byScenario["S1"].Status != regression.StatusPass {
		t.Fatalf("expected S1 PASS, got %s", byScenario["S1"].Status)
	}
	if byScenario["S2"].Status != regression.StatusError {
		t.Fatalf("expected S2 ERROR (no baseline), got %s", byScenario["S2"].Status)
	}
	if byScenario["S3"].Status != regression.StatusError || byScenario["S3"].Notes == "" {
		t.Fatalf("expected S3 ERROR with cause, got %+v", byScenario["S3"])
	}
	runID := results[0].RunID
	for _, r := range results {
		if r.RunID != runID {
			t.Fatalf("expected shared run id, got %s and %s", runID, r.RunID)
		}
	}
	if len(h.recorder.results) != 3 {
		t.Fatalf("expected every scenario recorded, got %d", len(h.recorder.results))
	}
}
