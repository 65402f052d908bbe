package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vqgate/internal/benchmark"
	"vqgate/internal/history"
	"vqgate/internal/regression"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var scenarioID string
	var benchmarks bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded regression and benchmark runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(h *history.Store) error {
				switch {
				case benchmarks:
					results, err := h.ListBenchmarks(cmd.Context(), scenarioID, limit)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, results)
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderBenchmarkHistory(results, shouldColorize(cmd.OutOrStdout())))
				case scenarioID != "":
					results, err := h.ListRegressions(cmd.Context(), scenarioID, limit)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, results)
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderRegressionHistory(results, shouldColorize(cmd.OutOrStdout())))
				default:
					runs, err := h.Runs(cmd.Context(), limit)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, runs)
					}
					if len(runs) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scenarioID, "scenario", "", "List regression results for this scenario")
	cmd.Flags().BoolVar(&benchmarks, "benchmarks", false, "List benchmark results instead")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	return cmd
}

func renderRuns(runs []history.RunSummary) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.TestVersion,
			strconv.Itoa(r.Scenarios),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Degraded),
			strconv.Itoa(r.Errored),
		})
	}
	return renderTable(
		[]column{
			textCol("Run"), textCol("Started"), textCol("Version"),
			numberCol("Scenarios"), numberCol("Fail"), numberCol("Degraded"), numberCol("Error"),
		},
		rows,
		false,
	)
}

func renderRegressionHistory(results []regression.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.RunID,
			r.CompletedAt.Local().Format("2006-01-02 15:04"),
			string(r.Status),
			r.TestVersion,
			formatPercent(r.OverallDeltaPct),
			strings.Join(append(append([]string{}, r.Failing...), r.Degraded...), ","),
		})
	}
	return renderTable(
		[]column{
			textCol("Run"), textCol("Completed"), verdictCol("Status"),
			textCol("Version"), numberCol("Delta"), textCol("Flagged"),
		},
		rows,
		colorize,
	)
}

func renderBenchmarkHistory(results []benchmark.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.RunID,
			r.ScenarioID,
			r.ModelVersion,
			fmt.Sprintf("%.1f", r.Latency.Mean),
			fmt.Sprintf("%.1f", r.Latency.P95),
			fmt.Sprintf("%.2f", r.AvgThroughputFPS),
			passLabel(r.Passed),
		})
	}
	return renderTable(
		[]column{
			textCol("Run"), textCol("Scenario"), textCol("Version"),
			numberCol("Mean ms"), numberCol("P95 ms"), numberCol("FPS"), verdictCol("Result"),
		},
		rows,
		colorize,
	)
}
