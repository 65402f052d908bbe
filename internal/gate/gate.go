package gate

import (
	"fmt"

	"vqgate/internal/benchmark"
	"vqgate/internal/config"
	"vqgate/internal/regression"
)

// Policy bounds what a run may contain and still pass.
type Policy struct {
	MaxFailures          int
	MaxDegraded          int
	MaxBenchmarkFailures int
	MinPassRate          float64
}

// PolicyFromConfig reads the gate section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxFailures:          cfg.Gate.MaxFailures,
		MaxDegraded:          cfg.Gate.MaxDegraded,
		MaxBenchmarkFailures: cfg.Gate.MaxBenchmarkFailures,
		MinPassRate:          cfg.Gate.MinPassRate,
	}
}

// Decision is the gate outcome with the counts it was based on.
type Decision struct {
	Passed            bool     `json:"passed"`
	Total             int      `json:"total"`
	PassCount         int      `json:"pass_count"`
	Failures          int      `json:"failures"`
	Degraded          int      `json:"degraded"`
	Errors            int      `json:"errors"`
	Unstable          int      `json:"unstable"`
	Benchmarks        int      `json:"benchmarks"`
	BenchmarkFailures int      `json:"benchmark_failures"`
	PassRate          float64  `json:"pass_rate"`
	Reasons           []string `json:"reasons,omitempty"`
}

// Evaluate applies policy to a run. PASS and IMPROVED verdicts count toward
// the pass rate; every other status counts against it. A run with neither
// regression nor benchmark results is rejected.
func Evaluate(regressions []regression.Result, benchmarks []benchmark.Result, policy Policy) Decision {
	d := Decision{Total: len(regressions), Benchmarks: len(benchmarks)}
	for _, r := range regressions {
		switch r.Status {
		case regression.StatusPass, regression.StatusImproved:
			d.PassCount++
		case regression.StatusFail:
			d.Failures++
		case regression.StatusDegraded:
			d.Degraded++
		case regression.StatusError:
			d.Errors++
		default:
			d.Unstable++
		}
	}
	for _, b := range benchmarks {
		if !b.Passed {
			d.BenchmarkFailures++
		}
	}
	if d.Total > 0 {
		d.PassRate = float64(d.PassCount) / float64(d.Total)
	}

	if d.Total == 0 && d.Benchmarks == 0 {
		d.Reasons = append(d.Reasons, "no results to evaluate")
	}
	if d.Failures > policy.MaxFailures {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d failing scenarios exceed the limit of %d", d.Failures, policy.MaxFailures))
	}
	if d.Degraded > policy.MaxDegraded {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d degraded scenarios exceed the limit of %d", d.Degraded, policy.MaxDegraded))
	}
	if d.BenchmarkFailures > policy.MaxBenchmarkFailures {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d failing benchmarks exceed the limit of %d", d.BenchmarkFailures, policy.MaxBenchmarkFailures))
	}
	if d.Total > 0 && d.PassRate < policy.MinPassRate {
		d.Reasons = append(d.Reasons, fmt.Sprintf("pass rate %.1f%% is below the minimum %.1f%%", d.PassRate*100, policy.MinPassRate*100))
	}
	d.Passed = len(d.Reasons) == 0
	return d
}
