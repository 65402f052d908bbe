package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vqgate/internal/benchmark"
	"vqgate/internal/history"
	"vqgate/internal/report"
	"vqgate/internal/services"
)

func newBenchCommand(ctx *commandContext) *cobra.Command {
	var req benchmark.Request
	var baselineRun string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "bench [flags] -- <command> [args...]",
		Short: "Benchmark an inference command",
		Long: "Runs the inference command repeatedly and measures latency, throughput and resource usage.\n" +
			"When the command prints {\"frames_generated\": N, \"processing_time\": S} as its last stdout line,\n" +
			"throughput is derived from it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ScenarioID == "" {
				return services.Wrap(services.ErrValidation, "cli", "bench", "--scenario is required", nil)
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			sc, err := catalog.Lookup(req.ScenarioID)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("latency-ms") {
				req.LatencyThresholdMS = sc.Performance.MaxLatencyMS
			}
			if !cmd.Flags().Changed("throughput-fps") {
				req.ThroughputThresholdFPS = sc.Performance.MinThroughputFPS
			}

			var (
				res        benchmark.Result
				comparison *benchmark.PerformanceComparison
			)
			err = ctx.withHistory(func(h *history.Store) error {
				b := benchmark.FromConfig(ctx.configValue(), ctx.log(),
					benchmark.WithRecorder(h),
					benchmark.WithRecorder(ctx.telemetry()),
				)
				var runErr error
				res, runErr = b.BenchmarkInference(cmd.Context(), benchmark.CommandInference(args[0], args[1:]...), req)
				if runErr != nil || baselineRun == "" {
					return runErr
				}
				baseline, err := h.BenchmarksForRun(cmd.Context(), baselineRun)
				if err != nil {
					return err
				}
				for _, prior := range baseline {
					if prior.ScenarioID == res.ScenarioID {
						c := benchmark.ComparePerformance(prior, res)
						comparison = &c
						break
					}
				}
				if comparison == nil {
					return services.Wrap(services.ErrNotFound, "cli", "bench",
						fmt.Sprintf("no benchmark for %s in run %s", res.ScenarioID, baselineRun), nil)
				}
				return nil
			})
			ctx.flushTelemetry()
			if err != nil {
				return err
			}

			if reportPath != "" {
				env := report.Benchmark([]benchmark.Result{res}, comparison, time.Now())
				if err := report.WriteFile(reportPath, env); err != nil {
					return err
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, benchOutput{Result: res, Comparison: comparison})
			}
			printBenchmark(cmd, res, comparison)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ScenarioID, "scenario", "", "Scenario being benchmarked (required)")
	cmd.Flags().StringVar(&req.ModelVersion, "model-version", "", "Model version under test")
	cmd.Flags().IntVar(&req.NumRuns, "runs", 0, "Number of trials (defaults to benchmark.num_runs)")
	cmd.Flags().Float64Var(&req.LatencyThresholdMS, "latency-ms", 0, "Maximum mean latency in ms (defaults to the scenario's)")
	cmd.Flags().Float64Var(&req.ThroughputThresholdFPS, "throughput-fps", 0, "Minimum mean throughput (defaults to the scenario's)")
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().StringVar(&baselineRun, "baseline-run", "", "Compare against this run's benchmark for the same scenario")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON report to this path")
	return cmd
}

type benchOutput struct {
	Result     benchmark.Result                 `json:"result"`
	Comparison *benchmark.PerformanceComparison `json:"comparison,omitempty"`
}

func printBenchmark(cmd *cobra.Command, res benchmark.Result, cmp *benchmark.PerformanceComparison) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Benchmark "+res.ScenarioID, colorize) {
		fmt.Fprintln(out, line)
	}
	rows := [][]string{
		{"Run", res.RunID},
		{"Model version", res.ModelVersion},
		{"Trials", fmt.Sprintf("%d ok / %d failed", res.SuccessfulRuns, res.FailedRuns)},
		{"Latency mean", fmt.Sprintf("%.1f ms", res.Latency.Mean)},
		{"Latency p50/p95/p99", fmt.Sprintf("%.1f / %.1f / %.1f ms", res.Latency.Median, res.Latency.P95, res.Latency.P99)},
		{"Latency min/max", fmt.Sprintf("%.1f / %.1f ms", res.Latency.Min, res.Latency.Max)},
		{"Throughput avg/peak", fmt.Sprintf("%.2f / %.2f fps", res.AvgThroughputFPS, res.PeakThroughputFPS)},
		{"Memory avg/peak", fmt.Sprintf("%.1f / %.1f MB", res.AvgMemoryMB, res.PeakMemoryMB)},
		{"CPU avg", fmt.Sprintf("%.1f%%", res.AvgCPUPercent)},
		{"Result", colorStatus(passLabel(res.Passed), colorize)},
	}
	fmt.Fprintln(out, renderTable([]column{textCol("Field"), textCol("Value")}, rows, false))
	if cmp == nil {
		return
	}
	fmt.Fprintf(out, "Against %s: latency %s, throughput %s, memory %s\n",
		cmp.BaselineVersion,
		formatPercent(cmp.LatencyDeltaPct),
		formatPercent(cmp.ThroughputDeltaPct),
		formatPercent(cmp.MemoryDeltaPct),
	)
}
