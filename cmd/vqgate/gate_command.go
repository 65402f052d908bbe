package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vqgate/internal/benchmark"
	"vqgate/internal/gate"
	"vqgate/internal/history"
	"vqgate/internal/regression"
	"vqgate/internal/services"
)

func newGateCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var benchRunID string

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Accept or reject a recorded run against the CI policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				regs    []regression.Result
				benches []benchmark.Result
			)
			err := ctx.withHistory(func(h *history.Store) error {
				var err error
				if regs, err = h.RegressionsForRun(cmd.Context(), runID); err != nil {
					return err
				}
				id := benchRunID
				if id == "" {
					id = runID
				}
				benches, err = h.BenchmarksForRun(cmd.Context(), id)
				return err
			})
			if err != nil {
				return err
			}

			d := gate.Evaluate(regs, benches, gate.PolicyFromConfig(ctx.configValue()))
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, d); err != nil {
					return err
				}
			} else {
				printDecision(cmd, d)
			}
			return gateError(d)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Regression run id (required)")
	cmd.Flags().StringVar(&benchRunID, "bench-run", "", "Benchmark run id (defaults to --run)")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func printDecision(cmd *cobra.Command, d gate.Decision) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("CI gate", colorize) {
		fmt.Fprintln(out, line)
	}
	verdict := "PASS"
	if !d.Passed {
		verdict = "FAIL"
	}
	fmt.Fprintf(out, "Verdict: %s\n", colorStatus(verdict, colorize))
	fmt.Fprintf(out, "Scenarios: %d (fail %d, degraded %d, error %d, unstable %d)\n",
		d.Total, d.Failures, d.Degraded, d.Errors, d.Unstable)
	fmt.Fprintf(out, "Pass rate: %.1f%%\n", d.PassRate*100)
	if d.Benchmarks > 0 {
		fmt.Fprintf(out, "Benchmarks: %d (%d failing)\n", d.Benchmarks, d.BenchmarkFailures)
	}
	for _, reason := range d.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
}

func gateError(d gate.Decision) error {
	if d.Passed {
		return nil
	}
	return fmt.Errorf("%w: %s", services.ErrGateRejected, strings.Join(d.Reasons, "; "))
}
