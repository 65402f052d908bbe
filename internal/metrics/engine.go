package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"vqgate/internal/logging"
	"vqgate/internal/media/frames"
	"vqgate/internal/services"
)

// Engine is a registry of metrics plus the thresholds they are judged by.
type Engine struct {
	mu         sync.RWMutex
	metrics    map[string]Metric
	order      []string
	thresholds map[string]float64
	source     frames.Source
	logger     *slog.Logger
}

// NewEngine constructs an empty engine. Missing thresholds fall back to
// DefaultThresholds.
func NewEngine(source frames.Source, thresholds map[string]float64, logger *slog.Logger) *Engine {
	merged := DefaultThresholds()
	maps.Copy(merged, thresholds)
	return &Engine{
		metrics:    make(map[string]Metric),
		thresholds: merged,
		source:     source,
		logger:     logging.NewComponentLogger(logger, "metrics"),
	}
}

// NewDefaultEngine registers the built-in metrics.
func NewDefaultEngine(source frames.Source, thresholds map[string]float64, logger *slog.Logger) *Engine {
	e := NewEngine(source, thresholds, logger)
	e.Register(NewTemporalConsistency())
	e.Register(NewOpticalFlowConsistency())
	e.Register(NewSSIM(source))
	e.Register(NewPerceptualQuality())
	e.Register(NewUnavailable(InstructionFollowing))
	e.Register(NewUnavailable(SemanticSimilarity))
	return e
}

// Register adds or replaces a metric under its name. Replacement keeps the
// original registration position.
func (e *Engine) Register(m Metric) {
	name := m.Name()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.metrics[name]; !exists {
		e.order = append(e.order, name)
	}
	e.metrics[name] = m
}

// Names returns registered metric names in registration order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

// UpdateThresholds merges thresholds into the stored set; metrics not named
// keep their current threshold.
func (e *Engine) UpdateThresholds(thresholds map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	maps.Copy(e.thresholds, thresholds)
}

// Thresholds returns a copy of the thresholds in force.
func (e *Engine) Thresholds() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.thresholds)
}

// ComputeAll decodes videoPath and evaluates the named metrics, or every
// registered metric when names is empty.
func (e *Engine) ComputeAll(ctx context.Context, videoPath string, ref Reference, names ...string) ([]Result, error) {
	if e.source == nil {
		return nil, services.Wrap(services.ErrConfiguration, "metrics", "compute", "no frame source configured", nil)
	}
	clip, err := e.source.Decode(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("metrics: decode %s: %w", videoPath, err)
	}
	return e.ComputeClip(ctx, clip, ref, names...), nil
}

// ComputeClip evaluates metrics over an already decoded clip.
func (e *Engine) ComputeClip(ctx context.Context, clip *frames.Clip, ref Reference, names ...string) []Result {
	selected, thresholds := e.snapshot(names)
	results := make([]Result, 0, len(selected))
	for _, m := range selected {
		results = append(results, e.run(ctx, m, clip, ref, thresholds[m.Name()]))
	}
	return results
}

// Compute evaluates a single metric.
func (e *Engine) Compute(ctx context.Context, clip *frames.Clip, ref Reference, name string) (Result, error) {
	selected, thresholds := e.snapshot([]string{name})
	if len(selected) == 0 {
		return Result{}, fmt.Errorf("metrics: metric %q: %w", name, services.ErrNotFound)
	}
	return e.run(ctx, selected[0], clip, ref, thresholds[name]), nil
}

func (e *Engine) snapshot(names []string) ([]Metric, map[string]float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	thresholds := maps.Clone(e.thresholds)
	if len(names) == 0 {
		out := make([]Metric, 0, len(e.order))
		for _, name := range e.order {
			out = append(out, e.metrics[name])
		}
		return out, thresholds
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	out := make([]Metric, 0, len(names))
	for _, name := range e.order {
		if _, ok := wanted[name]; ok {
			out = append(out, e.metrics[name])
			delete(wanted, name)
		}
	}
	for name := range wanted {
		e.logger.Warn("unknown metric requested",
			logging.String(logging.FieldMetric, name),
			logging.String(logging.FieldEventType, "metric_unknown"),
		)
	}
	return out, thresholds
}

func (e *Engine) run(ctx context.Context, m Metric, clip *frames.Clip, ref Reference, threshold float64) (result Result) {
	name := m.Name()
	ctx = services.WithMetric(ctx, name)
	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = errorResult(fmt.Errorf("panic: %v", r))
			e.finalize(&result, name, threshold)
			logging.WarnWithContext(logger, "metric panicked", "metric_error",
				logging.Any("panic", r),
				logging.String(logging.FieldImpact, "metric scored zero"),
			)
		}
	}()

	res, err := m.Compute(ctx, clip, ref)
	if err != nil {
		res = errorResult(err)
		logging.WarnWithContext(logger, "metric computation failed", "metric_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the artifact or the metric inputs"),
			logging.String(logging.FieldImpact, "metric scored zero"),
		)
	}
	e.finalize(&res, name, threshold)
	logger.Debug("metric computed",
		logging.Float64("score", res.Score),
		logging.Bool("passed", res.Passed),
		logging.Duration("elapsed", time.Since(started)),
	)
	return res
}

// finalize stamps engine-owned fields so passed always agrees with the score.
func (e *Engine) finalize(res *Result, name string, threshold float64) {
	res.Name = name
	res.Threshold = threshold
	if res.Status == "" {
		res.Status = StatusScored
	}
	if res.Details == nil {
		res.Details = map[string]any{}
	}
	switch {
	case res.Status == StatusUnavailable:
		res.Score = 0
		res.Passed = false
	case res.Errored():
		res.Passed = false
	default:
		res.Passed = res.Score >= threshold
	}
}

func errorResult(err error) Result {
	return Result{
		Score:   0,
		Status:  StatusScored,
		Details: map[string]any{"error": err.Error()},
	}
}
