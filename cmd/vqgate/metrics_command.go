package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vqgate/internal/metrics"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var referencePath string
	var prompt string
	var scenarioID string
	var names []string

	cmd := &cobra.Command{
		Use:   "metrics <video>",
		Short: "Score a video with the registered quality metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := ctx.engine()
			if scenarioID != "" {
				catalog, err := ctx.catalog()
				if err != nil {
					return err
				}
				sc, err := catalog.Lookup(scenarioID)
				if err != nil {
					return err
				}
				engine.UpdateThresholds(sc.Quality.MetricMap())
				if prompt == "" {
					prompt = sc.Prompt
				}
			}
			results, err := engine.ComputeAll(cmd.Context(), args[0], metrics.Reference{
				VideoPath: referencePath,
				Prompt:    prompt,
			}, names...)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMetricResults(results, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().StringVar(&referencePath, "reference", "", "Reference video for SSIM reference mode")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Generation prompt for prompt-aware metrics")
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "Apply this scenario's thresholds")
	cmd.Flags().StringSliceVar(&names, "metric", nil, "Restrict to the named metrics (repeatable)")
	return cmd
}

func renderMetricResults(results []metrics.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := passLabel(r.Passed)
		score := formatScore(r.Score)
		if !r.Available() {
			status = "n/a"
			score = "-"
		}
		rows = append(rows, []string{
			r.Name,
			score,
			formatScore(r.Threshold),
			status,
			detailSummary(r.Details),
		})
	}
	return renderTable(
		[]column{
			textCol("Metric"), numberCol("Score"), numberCol("Threshold"),
			verdictCol("Result"), textCol("Details"),
		},
		rows,
		colorize,
	)
}

func detailSummary(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := details[k].(type) {
		case float64:
			parts = append(parts, fmt.Sprintf("%s=%.3f", k, v))
		case []float64:
			parts = append(parts, fmt.Sprintf("%s=[%d values]", k, len(v)))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}
