package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"vqgate/internal/benchmark"
	"vqgate/internal/regression"
)

// RunSummary aggregates the regression rows that share a run id.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	TestVersion string    `json:"test_version"`
	Scenarios   int       `json:"scenarios"`
	Failed      int       `json:"failed"`
	Degraded    int       `json:"degraded"`
	Errored     int       `json:"errored"`
	StartedAt   time.Time `json:"started_at"`
}

// RecordRegression stores one regression result.
func (s *Store) RecordRegression(ctx context.Context, res regression.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("history: marshal regression: %w", err)
	}
	if err := s.execWithRetry(ctx,
		`INSERT INTO regression_results (
            run_id, scenario_id, status, baseline_reference_id, baseline_version,
            test_version, video_path, overall_delta_pct, failing_count, degraded_count,
            notes, result_json, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		res.ScenarioID,
		string(res.Status),
		nullableString(res.BaselineReferenceID),
		nullableString(res.BaselineVersion),
		res.TestVersion,
		nullableString(res.VideoPath),
		res.OverallDeltaPct,
		res.FailedCount(),
		res.DegradedCount(),
		nullableString(res.Notes),
		string(payload),
		formatTime(res.StartedAt),
		formatTime(res.CompletedAt),
	); err != nil {
		return fmt.Errorf("history: insert regression: %w", err)
	}
	return nil
}

// RecordBenchmark stores one benchmark result.
func (s *Store) RecordBenchmark(ctx context.Context, res benchmark.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("history: marshal benchmark: %w", err)
	}
	if err := s.execWithRetry(ctx,
		`INSERT INTO benchmark_results (
            run_id, scenario_id, model_version, passed, num_runs, failed_runs,
            mean_latency_ms, p95_latency_ms, avg_throughput_fps,
            result_json, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID,
		res.ScenarioID,
		nullableString(res.ModelVersion),
		boolToInt(res.Passed),
		res.NumRuns,
		res.FailedRuns,
		res.Latency.Mean,
		res.Latency.P95,
		res.AvgThroughputFPS,
		string(payload),
		formatTime(res.StartedAt),
		formatTime(res.CompletedAt),
	); err != nil {
		return fmt.Errorf("history: insert benchmark: %w", err)
	}
	return nil
}

// ListRegressions returns the newest regression results, optionally limited
// to one scenario. A limit <= 0 returns every row.
func (s *Store) ListRegressions(ctx context.Context, scenarioID string, limit int) ([]regression.Result, error) {
	query := `SELECT result_json FROM regression_results`
	args := []any{}
	if scenarioID != "" {
		query += ` WHERE scenario_id = ?`
		args = append(args, scenarioID)
	}
	query += ` ORDER BY completed_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryJSON[regression.Result](ctx, s.db, "list regressions", query, args...)
}

// RegressionsForRun returns every regression result recorded under runID in
// insertion order.
func (s *Store) RegressionsForRun(ctx context.Context, runID string) ([]regression.Result, error) {
	return queryJSON[regression.Result](ctx, s.db, "regressions for run",
		`SELECT result_json FROM regression_results WHERE run_id = ? ORDER BY id`, runID)
}

// ListBenchmarks returns the newest benchmark results, optionally limited to
// one scenario. A limit <= 0 returns every row.
func (s *Store) ListBenchmarks(ctx context.Context, scenarioID string, limit int) ([]benchmark.Result, error) {
	query := `SELECT result_json FROM benchmark_results`
	args := []any{}
	if scenarioID != "" {
		query += ` WHERE scenario_id = ?`
		args = append(args, scenarioID)
	}
	query += ` ORDER BY completed_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryJSON[benchmark.Result](ctx, s.db, "list benchmarks", query, args...)
}

// BenchmarksForRun returns every benchmark result recorded under runID.
func (s *Store) BenchmarksForRun(ctx context.Context, runID string) ([]benchmark.Result, error) {
	return queryJSON[benchmark.Result](ctx, s.db, "benchmarks for run",
		`SELECT result_json FROM benchmark_results WHERE run_id = ? ORDER BY id`, runID)
}

// Runs summarizes the most recent regression runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, MAX(test_version), COUNT(1),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            MIN(started_at)
        FROM regression_results
        GROUP BY run_id
        ORDER BY MIN(started_at) DESC`
	args := []any{string(regression.StatusFail), string(regression.StatusDegraded), string(regression.StatusError)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			summary    RunSummary
			startedRaw string
		)
		if err := rows.Scan(&summary.RunID, &summary.TestVersion, &summary.Scenarios,
			&summary.Failed, &summary.Degraded, &summary.Errored, &startedRaw); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if t, err := time.Parse(timeLayout, startedRaw); err == nil {
			summary.StartedAt = t
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}

func queryJSON[T any](ctx context.Context, db *sql.DB, op, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %s: %w", op, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("history: %s: scan: %w", op, err)
		}
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("history: %s: decode: %w", op, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %s: %w", op, err)
	}
	return out, nil
}

var (
	_ regression.Recorder = (*Store)(nil)
	_ benchmark.Recorder  = (*Store)(nil)
)
