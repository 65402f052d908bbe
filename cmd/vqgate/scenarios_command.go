package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vqgate/internal/metrics"
)

func newScenariosCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenario catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			all := catalog.All()
			if ctx.jsonOutput() {
				return writeJSON(cmd, all)
			}
			rows := make([][]string, 0, len(all))
			for _, sc := range all {
				thresholds := sc.Quality.MetricMap()
				parts := make([]string, 0, len(thresholds))
				for _, name := range []string{
					metrics.TemporalConsistency, metrics.OpticalFlowConsistency, metrics.SSIM,
					metrics.PerceptualQuality, metrics.InstructionFollowing, metrics.SemanticSimilarity,
				} {
					if v, ok := thresholds[name]; ok {
						parts = append(parts, fmt.Sprintf("%s>=%.2f", name, v))
					}
				}
				rows = append(rows, []string{
					sc.ID,
					sc.Name,
					strings.Join(parts, " "),
					fmt.Sprintf("%.0f", sc.Performance.MaxLatencyMS),
					fmt.Sprintf("%.1f", sc.Performance.MinThroughputFPS),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{
					textCol("ID"), textCol("Name"), textCol("Quality"),
					numberCol("Max ms"), numberCol("Min fps"),
				},
				rows,
				false,
			))
			return nil
		},
	}
}
