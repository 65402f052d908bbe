package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vqgate/internal/gate"
	"vqgate/internal/history"
	"vqgate/internal/regression"
	"vqgate/internal/report"
)

func newRegressCommand(ctx *commandContext) *cobra.Command {
	var videos map[string]string
	var opts regression.RunOptions
	var reportPath string
	var applyGate bool

	cmd := &cobra.Command{
		Use:   "regress",
		Short: "Run regression tests against approved golden references",
		Example: "  vqgate regress --video simple_motion=out/motion.mp4 --video camera_pan=out/pan.mp4 \\\n" +
			"    --test-version v2 --gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioVideos, err := videoMap("video", videos)
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()

			var results []regression.Result
			err = ctx.withHistory(func(h *history.Store) error {
				suite := regression.NewSuite(ctx.engine(), store, catalog,
					regression.WithPolicy(regression.PolicyFromConfig(cfg)),
					regression.WithRecorder(h),
					regression.WithRecorder(ctx.telemetry()),
					regression.WithLogger(ctx.log()),
				)
				var runErr error
				results, runErr = suite.RunFullRegressionSuite(cmd.Context(), scenarioVideos, opts)
				return runErr
			})
			ctx.flushTelemetry()
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := report.WriteFile(reportPath, report.Regression(results, time.Now())); err != nil {
					return err
				}
			}

			var decision *gate.Decision
			if applyGate {
				d := gate.Evaluate(results, nil, gate.PolicyFromConfig(cfg))
				decision = &d
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, regressOutput{Results: results, Gate: decision}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderRegressionResults(results, shouldColorize(out)))
				if len(results) > 0 {
					fmt.Fprintf(out, "Run %s: %d scenarios\n", results[0].RunID, len(results))
				}
				if decision != nil {
					printDecision(cmd, *decision)
				}
			}
			if decision != nil {
				return gateError(*decision)
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&videos, "video", nil, "Candidate video as scenario=path (repeatable)")
	cmd.Flags().StringVar(&opts.BaselineVersion, "baseline-version", "", "Pin the baseline to this model version")
	cmd.Flags().StringVar(&opts.TestVersion, "test-version", "", "Label for the candidate model")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON report to this path")
	cmd.Flags().BoolVar(&applyGate, "gate", false, "Apply the CI gate and exit non-zero on rejection")
	return cmd
}

type regressOutput struct {
	Results []regression.Result `json:"results"`
	Gate    *gate.Decision      `json:"gate,omitempty"`
}

func renderRegressionResults(results []regression.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		delta := "-"
		if r.Compared() > 0 {
			delta = formatPercent(r.OverallDeltaPct)
		}
		rows = append(rows, []string{
			r.ScenarioID,
			string(r.Status),
			r.BaselineVersion,
			delta,
			strconv.Itoa(r.PassedCount()),
			strings.Join(r.Failing, ","),
			strings.Join(r.Degraded, ","),
			strings.Join(r.Improved, ","),
			truncate(r.Notes, 48),
		})
	}
	return renderTable(
		[]column{
			textCol("Scenario"), verdictCol("Status"), textCol("Baseline"),
			numberCol("Delta"), numberCol("Passed"),
			textCol("Failing"), textCol("Degraded"), textCol("Improved"), textCol("Notes"),
		},
		rows,
		colorize,
	)
}
