package regression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"vqgate/internal/golden"
	"vqgate/internal/logging"
	"vqgate/internal/metrics"
	"vqgate/internal/scenario"
	"vqgate/internal/services"
)

// Baselines is the golden set view the suite needs.
type Baselines interface {
	GetLatestReference(scenarioID string, opts golden.LatestOptions) (golden.Reference, bool)
	ArtifactPath(ref golden.Reference) string
}

// Scenarios resolves scenario thresholds.
type Scenarios interface {
	Lookup(id string) (scenario.Scenario, error)
}

// Recorder receives every finished result, for history and telemetry.
type Recorder interface {
	RecordRegression(ctx context.Context, result Result) error
}

// Result is one regression verdict for one scenario.
type Result struct {
	RunID               string           `json:"run_id"`
	ScenarioID          string           `json:"scenario_id"`
	VideoPath           string           `json:"video_path"`
	BaselineReferenceID string           `json:"baseline_reference_id,omitempty"`
	BaselineVersion     string           `json:"baseline_version,omitempty"`
	TestVersion         string           `json:"test_version"`
	MetricResults       []metrics.Result `json:"metric_results,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	StartedAt           time.Time        `json:"started_at"`
	CompletedAt         time.Time        `json:"completed_at"`
	Classification
}

// PassedCount counts metrics that met their threshold without degrading.
func (r Result) PassedCount() int { return len(r.Passed) + len(r.Improved) }

// FailedCount counts metrics below their threshold.
func (r Result) FailedCount() int { return len(r.Failing) }

// DegradedCount counts metrics that dropped by more than the tolerance.
func (r Result) DegradedCount() int { return len(r.Degraded) }

// RunOptions scopes one regression run.
type RunOptions struct {
	// BaselineVersion pins the baseline to a model version.
	BaselineVersion string
	// TestVersion labels the candidate model.
	TestVersion string
	// RunID groups results; generated when empty.
	RunID string
}

// Option configures a Suite.
type Option func(*Suite)

// WithPolicy overrides the classification policy.
func WithPolicy(policy Policy) Option {
	return func(s *Suite) { s.policy = policy }
}

// WithRecorder adds a result recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Suite) {
		if r != nil {
			s.recorders = append(s.recorders, r)
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) { s.logger = logging.NewComponentLogger(logger, "regression") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Suite) {
		if now != nil {
			s.now = now
		}
	}
}

// Suite runs regression tests against the golden set.
type Suite struct {
	engine     *metrics.Engine
	baselines  Baselines
	scenarios  Scenarios
	policy     Policy
	recorders  []Recorder
	logger     *slog.Logger
	now        func() time.Time
	thresholds map[string]float64
}

// NewSuite wires a suite. The engine's current thresholds become the
// defaults that each scenario's thresholds are layered over.
func NewSuite(engine *metrics.Engine, baselines Baselines, scenarios Scenarios, opts ...Option) *Suite {
	s := &Suite{
		engine:     engine,
		baselines:  baselines,
		scenarios:  scenarios,
		policy:     DefaultPolicy(),
		logger:     logging.NewComponentLogger(nil, "regression"),
		now:        time.Now,
		thresholds: engine.Thresholds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRegressionTest scores videoPath for scenarioID and classifies it
// against the latest approved baseline. A missing baseline is an ERROR
// result, not an error; unknown scenarios and unreadable artifacts are.
func (s *Suite) RunRegressionTest(ctx context.Context, scenarioID, videoPath string, opts RunOptions) (Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.TestVersion == "" {
		opts.TestVersion = "candidate"
	}
	ctx = services.WithRunID(services.WithScenario(ctx, scenarioID), opts.RunID)
	logger := logging.WithContext(ctx, s.logger)

	res := Result{
		RunID:       opts.RunID,
		ScenarioID:  scenarioID,
		VideoPath:   videoPath,
		TestVersion: opts.TestVersion,
		StartedAt:   s.now().UTC(),
	}

	sc, err := s.scenarios.Lookup(scenarioID)
	if err != nil {
		return Result{}, fmt.Errorf("regression: %w", err)
	}

	baseline, ok := s.baselines.GetLatestReference(scenarioID, golden.LatestOptions{
		ModelVersion: opts.BaselineVersion,
		ApprovedOnly: true,
	})
	if !ok {
		res.Status = StatusError
		res.Notes = "no approved baseline reference for scenario " + scenarioID
		if opts.BaselineVersion != "" {
			res.Notes += " at version " + opts.BaselineVersion
		}
		res.CompletedAt = s.now().UTC()
		logging.WarnWithContext(logger, "regression baseline missing", "baseline_missing",
			logging.String(logging.FieldErrorHint, "add and approve a golden reference for the scenario"),
			logging.String(logging.FieldImpact, "scenario reported as ERROR"),
		)
		s.record(ctx, res)
		return res, nil
	}
	res.BaselineReferenceID = baseline.ID
	res.BaselineVersion = baseline.ModelVersion

	thresholds := maps.Clone(s.thresholds)
	maps.Copy(thresholds, sc.Quality.MetricMap())
	s.engine.UpdateThresholds(thresholds)

	results, err := s.engine.ComputeAll(ctx, videoPath, metrics.Reference{
		VideoPath: s.baselines.ArtifactPath(baseline),
		Prompt:    sc.Prompt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("regression: %s: %w", scenarioID, err)
	}
	res.MetricResults = results
	res.Classification = Classify(baseline.MetricScores, results, s.policy)
	if res.Compared() == 0 {
		res.Notes = "no metrics in common with baseline " + baseline.ID
	}
	res.CompletedAt = s.now().UTC()

	logger.Info("regression verdict",
		logging.String("status", string(res.Status)),
		logging.String(logging.FieldReferenceID, baseline.ID),
		logging.Float64("overall_delta_pct", res.OverallDeltaPct),
		logging.Int("failing", len(res.Failing)),
		logging.Int("degraded", len(res.Degraded)),
		logging.Int("improved", len(res.Improved)),
		logging.Int("skipped", len(res.Skipped)),
	)
	s.record(ctx, res)
	return res, nil
}

// RunFullRegressionSuite runs every scenario in videos independently under
// one run id. Scenarios that cannot be evaluated are reported as ERROR
// results carrying the cause in Notes.
func (s *Suite) RunFullRegressionSuite(ctx context.Context, videos map[string]string, opts RunOptions) ([]Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.TestVersion == "" {
		opts.TestVersion = "candidate"
	}
	ids := make([]string, 0, len(videos))
	for id := range videos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.RunRegressionTest(ctx, id, videos[id], opts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			now := s.now().UTC()
			res = Result{
				RunID:       opts.RunID,
				ScenarioID:  id,
				VideoPath:   videos[id],
				TestVersion: opts.TestVersion,
				Notes:       err.Error(),
				StartedAt:   now,
				CompletedAt: now,
			}
			res.Status = StatusError
			s.record(ctx, res)
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Suite) record(ctx context.Context, res Result) {
	for _, r := range s.recorders {
		if err := r.RecordRegression(ctx, res); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "failed to record regression result", "record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "result missing from history or telemetry"),
			)
		}
	}
}
