package comparison

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"vqgate/internal/logging"
	"vqgate/internal/metrics"
	"vqgate/internal/scenario"
	"vqgate/internal/services"
)

// Tie is the winner label when neither candidate scores higher.
const Tie = "tie"

// Scenarios resolves scenario thresholds.
type Scenarios interface {
	Lookup(id string) (scenario.Scenario, error)
}

// MetricComparison is one metric scored for both candidates.
type MetricComparison struct {
	Metric string  `json:"metric"`
	ScoreA float64 `json:"score_a"`
	ScoreB float64 `json:"score_b"`
	// Delta is ScoreB - ScoreA.
	Delta  float64 `json:"delta"`
	Winner string  `json:"winner"`
}

// ScenarioComparison holds the per-metric outcome for one scenario.
type ScenarioComparison struct {
	ScenarioID string             `json:"scenario_id"`
	VideoA     string             `json:"video_a"`
	VideoB     string             `json:"video_b"`
	Metrics    []MetricComparison `json:"metrics"`
	Skipped    []string           `json:"skipped_metrics,omitempty"`
	ResultsA   []metrics.Result   `json:"results_a"`
	ResultsB   []metrics.Result   `json:"results_b"`
}

// Report is the outcome of comparing two candidates.
type Report struct {
	LabelA        string               `json:"label_a"`
	LabelB        string               `json:"label_b"`
	Scenarios     []ScenarioComparison `json:"scenarios"`
	OnlyA         []string             `json:"only_a,omitempty"`
	OnlyB         []string             `json:"only_b,omitempty"`
	WinsA         int                  `json:"wins_a"`
	WinsB         int                  `json:"wins_b"`
	Ties          int                  `json:"ties"`
	OverallWinner string               `json:"overall_winner"`
}

// Comparator scores candidates with a shared metrics engine.
type Comparator struct {
	engine     *metrics.Engine
	scenarios  Scenarios
	logger     *slog.Logger
	thresholds map[string]float64
}

// New builds a comparator. The engine's current thresholds are the defaults
// each scenario's thresholds are layered over.
func New(engine *metrics.Engine, scenarios Scenarios, logger *slog.Logger) *Comparator {
	return &Comparator{
		engine:     engine,
		scenarios:  scenarios,
		logger:     logging.NewComponentLogger(logger, "comparison"),
		thresholds: engine.Thresholds(),
	}
}

// Compare scores videosA and videosB on the scenarios present in both and
// reports the per-metric and overall winners. Scenarios present in only one
// map are listed in OnlyA or OnlyB and never scored.
func (c *Comparator) Compare(ctx context.Context, labelA string, videosA map[string]string, labelB string, videosB map[string]string) (Report, error) {
	if labelA == "" || labelB == "" || labelA == labelB {
		return Report{}, services.Wrap(services.ErrValidation, "comparison", "compare",
			fmt.Sprintf("candidate labels must be distinct and non-empty (got %q, %q)", labelA, labelB), nil)
	}
	keysA := slices.Sorted(maps.Keys(videosA))
	keysB := slices.Sorted(maps.Keys(videosB))
	shared := lo.Intersect(keysA, keysB)
	slices.Sort(shared)

	report := Report{
		LabelA:    labelA,
		LabelB:    labelB,
		Scenarios: make([]ScenarioComparison, 0, len(shared)),
		OnlyA:     lo.Without(keysA, shared...),
		OnlyB:     lo.Without(keysB, shared...),
	}

	for _, id := range shared {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		sc, err := c.compareScenario(ctx, id, videosA[id], videosB[id], labelA, labelB)
		if err != nil {
			return Report{}, err
		}
		for _, m := range sc.Metrics {
			switch m.Winner {
			case labelA:
				report.WinsA++
			case labelB:
				report.WinsB++
			default:
				report.Ties++
			}
		}
		report.Scenarios = append(report.Scenarios, sc)
	}

	switch {
	case report.WinsA > report.WinsB:
		report.OverallWinner = labelA
	case report.WinsB > report.WinsA:
		report.OverallWinner = labelB
	default:
		report.OverallWinner = Tie
	}

	c.logger.Info("model comparison complete",
		logging.String("label_a", labelA),
		logging.String("label_b", labelB),
		logging.Int("scenarios", len(shared)),
		logging.Int("wins_a", report.WinsA),
		logging.Int("wins_b", report.WinsB),
		logging.Int("ties", report.Ties),
		logging.String("winner", report.OverallWinner),
	)
	return report, nil
}

func (c *Comparator) compareScenario(ctx context.Context, scenarioID, videoA, videoB, labelA, labelB string) (ScenarioComparison, error) {
	sc, err := c.scenarios.Lookup(scenarioID)
	if err != nil {
		return ScenarioComparison{}, fmt.Errorf("comparison: %w", err)
	}
	thresholds := maps.Clone(c.thresholds)
	maps.Copy(thresholds, sc.Quality.MetricMap())
	c.engine.UpdateThresholds(thresholds)

	ctx = services.WithScenario(ctx, scenarioID)
	ref := metrics.Reference{Prompt: sc.Prompt}

	var resultsA, resultsB []metrics.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resultsA, err = c.engine.ComputeAll(gctx, videoA, ref)
		return err
	})
	g.Go(func() error {
		var err error
		resultsB, err = c.engine.ComputeAll(gctx, videoB, ref)
		return err
	})
	if err := g.Wait(); err != nil {
		return ScenarioComparison{}, fmt.Errorf("comparison: %s: %w", scenarioID, err)
	}

	out := ScenarioComparison{
		ScenarioID: scenarioID,
		VideoA:     videoA,
		VideoB:     videoB,
		ResultsA:   resultsA,
		ResultsB:   resultsB,
	}
	byNameB := metrics.ByName(resultsB)
	for _, a := range resultsA {
		b, ok := byNameB[a.Name]
		if !ok {
			continue
		}
		if !a.Available() || !b.Available() {
			out.Skipped = append(out.Skipped, a.Name)
			continue
		}
		out.Metrics = append(out.Metrics, MetricComparison{
			Metric: a.Name,
			ScoreA: a.Score,
			ScoreB: b.Score,
			Delta:  b.Score - a.Score,
			Winner: winner(a.Score, b.Score, labelA, labelB),
		})
	}
	return out, nil
}

func winner(a, b float64, labelA, labelB string) string {
	switch {
	case a > b:
		return labelA
	case b > a:
		return labelB
	default:
		return Tie
	}
}
