package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vqgate/internal/benchmark"
	"vqgate/internal/golden"
	"vqgate/internal/regression"
)

func TestRegressionEnvelope(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	results := []regression.Result{
		{RunID: "run-1", ScenarioID: "static_scene", Classification: regression.Classification{Status: regression.StatusPass}},
		{RunID: "run-1", ScenarioID: "camera_pan", Classification: regression.Classification{Status: regression.StatusDegraded, Degraded: []string{"ssim"}}},
	}
	env := Regression(results, now)

	var buf bytes.Buffer
	if err := Write(&buf, env); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var decoded struct {
		Kind        string    `json:"kind"`
		GeneratedAt time.Time `json:"generated_at"`
		Data        struct {
			RunID    string         `json:"run_id"`
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
			Results  []struct {
				ScenarioID string   `json:"scenario_id"`
				Status     string   `json:"status"`
				Degraded   []string `json:"degraded_metrics"`
			} `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if decoded.Kind != "regression" || !decoded.GeneratedAt.Equal(now) || decoded.GeneratedAt.Location() != time.UTC {
		t.Fatalf("unexpected envelope header %+v", decoded)
	}
	d := decoded.Data
	if d.RunID != "run-1" || d.Total != 2 || d.ByStatus["PASS"] != 1 || d.ByStatus["DEGRADED"] != 1 {
		t.Fatalf("unexpected summary %+v", d)
	}
	if d.Results[0].ScenarioID != "camera_pan" || d.Results[0].Degraded[0] != "ssim" {
		t.Fatalf("expected results sorted by scenario with flattened classification, got %+v", d.Results)
	}
	if results[0].ScenarioID != "static_scene" {
		t.Fatal("input slice must not be reordered")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, FileName(KindBenchmark, now))
	if filepath.Base(path) != "benchmark_20260301T120000Z.json" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}

	cmp := benchmark.ComparePerformance(
		benchmark.Result{Latency: benchmark.LatencyStats{Mean: 100}},
		benchmark.Result{Latency: benchmark.LatencyStats{Mean: 50}},
	)
	if err := WriteFile(path, Benchmark([]benchmark.Result{{ScenarioID: "s"}}, &cmp, now)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the report file, got %d entries", len(entries))
	}
	data, _ := os.ReadFile(path)
	var env struct {
		Data BenchmarkReport `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Comparison == nil || !env.Data.Comparison.Faster {
		t.Fatalf("expected comparison in report, got %+v", env.Data)
	}
}

func TestGoldenEnvelope(t *testing.T) {
	env := Golden(golden.Summary{}, time.Now())
	if env.Kind != KindGolden {
		t.Fatalf("unexpected kind %s", env.Kind)
	}
}
