package regression

import (
	"sort"

	"vqgate/internal/config"
	"vqgate/internal/metrics"
)

// Status is a regression verdict.
type Status string

const (
	StatusPass     Status = "PASS"
	StatusFail     Status = "FAIL"
	StatusDegraded Status = "DEGRADED"
	StatusImproved Status = "IMPROVED"
	StatusUnstable Status = "UNSTABLE"
	StatusError    Status = "ERROR"
)

// Policy holds the classification parameters.
type Policy struct {
	// Tolerance is the absolute score band treated as no change.
	Tolerance float64
	// DegradedFraction is the share of degraded metrics above which a run
	// is DEGRADED.
	DegradedFraction float64
}

// DefaultPolicy returns the 5% tolerance and 30% degraded share.
func DefaultPolicy() Policy {
	return Policy{Tolerance: 0.05, DegradedFraction: 0.30}
}

// PolicyFromConfig reads the regression section, keeping defaults for
// unset values.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	if cfg.Regression.DegradationTolerance > 0 {
		p.Tolerance = cfg.Regression.DegradationTolerance
	}
	if cfg.Regression.DegradedFraction > 0 {
		p.DegradedFraction = cfg.Regression.DegradedFraction
	}
	return p
}

// Classification is the outcome of comparing candidate results to baseline
// scores.
type Classification struct {
	Status          Status             `json:"status"`
	Deltas          map[string]float64 `json:"metric_deltas"`
	BaselineScores  map[string]float64 `json:"baseline_scores"`
	TestScores      map[string]float64 `json:"test_scores"`
	Passed          []string           `json:"passed_metrics"`
	Failing         []string           `json:"failing_metrics"`
	Degraded        []string           `json:"degraded_metrics"`
	Improved        []string           `json:"improved_metrics"`
	Skipped         []string           `json:"skipped_metrics"`
	Uncovered       []string           `json:"uncovered_metrics"`
	BaselineAverage float64            `json:"baseline_average"`
	TestAverage     float64            `json:"test_average"`
	OverallDeltaPct float64            `json:"overall_delta_pct"`
}

// Compared returns the number of classified metrics.
func (c Classification) Compared() int {
	return len(c.Passed) + len(c.Failing) + len(c.Degraded) + len(c.Improved)
}

// Classify compares candidate results against baseline scores.
func Classify(baseline map[string]float64, candidate []metrics.Result, policy Policy) Classification {
	ordered := append([]metrics.Result(nil), candidate...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	c := Classification{
		Deltas:         map[string]float64{},
		BaselineScores: map[string]float64{},
		TestScores:     map[string]float64{},
		Passed:         []string{},
		Failing:        []string{},
		Degraded:       []string{},
		Improved:       []string{},
		Skipped:        []string{},
		Uncovered:      []string{},
	}

	var baseSum, testSum float64
	for _, res := range ordered {
		if !res.Available() {
			c.Skipped = append(c.Skipped, res.Name)
			continue
		}
		base, ok := baseline[res.Name]
		if !ok {
			c.Uncovered = append(c.Uncovered, res.Name)
			continue
		}
		delta := res.Score - base
		c.Deltas[res.Name] = delta
		c.BaselineScores[res.Name] = base
		c.TestScores[res.Name] = res.Score
		baseSum += base
		testSum += res.Score

		switch {
		case !res.Passed:
			c.Failing = append(c.Failing, res.Name)
		case delta < -policy.Tolerance:
			c.Degraded = append(c.Degraded, res.Name)
		case delta > policy.Tolerance:
			c.Improved = append(c.Improved, res.Name)
		default:
			c.Passed = append(c.Passed, res.Name)
		}
	}

	if n := c.Compared(); n > 0 {
		c.BaselineAverage = baseSum / float64(n)
		c.TestAverage = testSum / float64(n)
		c.OverallDeltaPct = percentChange(c.BaselineAverage, c.TestAverage)
	}
	c.Status = decide(c, policy)
	return c
}

func decide(c Classification, policy Policy) Status {
	compared := c.Compared()
	switch {
	case len(c.Failing) > 0:
		return StatusFail
	case compared > 0 && float64(len(c.Degraded))/float64(compared) > policy.DegradedFraction:
		return StatusDegraded
	case len(c.Improved) > len(c.Degraded):
		return StatusImproved
	case c.OverallDeltaPct/100 >= -policy.Tolerance:
		return StatusPass
	default:
		return StatusUnstable
	}
}

func percentChange(baseline, current float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (current - baseline) / baseline * 100
}
