package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vqgate/internal/benchmark"
	"vqgate/internal/comparison"
	"vqgate/internal/golden"
	"vqgate/internal/regression"
)

// Kind names the document type carried in an Envelope.
type Kind string

const (
	KindRegression Kind = "regression"
	KindComparison Kind = "comparison"
	KindBenchmark  Kind = "benchmark"
	KindGolden     Kind = "golden_summary"
)

// Envelope wraps every report with its type and generation time.
type Envelope struct {
	Kind        Kind      `json:"kind"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        any       `json:"data"`
}

// RegressionReport summarizes one regression run.
type RegressionReport struct {
	RunID    string              `json:"run_id,omitempty"`
	Total    int                 `json:"total"`
	ByStatus map[string]int      `json:"by_status"`
	Results  []regression.Result `json:"results"`
}

// BenchmarkReport carries benchmark results and an optional comparison.
type BenchmarkReport struct {
	Results    []benchmark.Result               `json:"results"`
	Comparison *benchmark.PerformanceComparison `json:"comparison,omitempty"`
}

// Regression builds the regression envelope.
func Regression(results []regression.Result, now time.Time) Envelope {
	rep := RegressionReport{
		Total:    len(results),
		ByStatus: map[string]int{},
		Results:  append([]regression.Result(nil), results...),
	}
	sort.SliceStable(rep.Results, func(i, j int) bool {
		return rep.Results[i].ScenarioID < rep.Results[j].ScenarioID
	})
	for _, r := range results {
		rep.ByStatus[string(r.Status)]++
		if rep.RunID == "" {
			rep.RunID = r.RunID
		}
	}
	return Envelope{Kind: KindRegression, GeneratedAt: now.UTC(), Data: rep}
}

// Comparison builds the model comparison envelope.
func Comparison(rep comparison.Report, now time.Time) Envelope {
	return Envelope{Kind: KindComparison, GeneratedAt: now.UTC(), Data: rep}
}

// Benchmark builds the benchmark envelope.
func Benchmark(results []benchmark.Result, cmp *benchmark.PerformanceComparison, now time.Time) Envelope {
	return Envelope{Kind: KindBenchmark, GeneratedAt: now.UTC(), Data: BenchmarkReport{Results: results, Comparison: cmp}}
}

// Golden builds the golden set summary envelope.
func Golden(summary golden.Summary, now time.Time) Envelope {
	return Envelope{Kind: KindGolden, GeneratedAt: now.UTC(), Data: summary}
}

// Write encodes v as indented JSON.
func Write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// WriteFile writes v to path through a temp file and rename so readers never
// see a partial report.
func WriteFile(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("report: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Write(tmp, v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("report: rename: %w", err)
	}
	return nil
}

// FileName returns a timestamped report file name such as
// regression_20260301T120000Z.json.
func FileName(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s_%s.json", kind, now.UTC().Format("20060102T150405Z"))
}
