package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vqgate/internal/comparison"
	"vqgate/internal/report"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var labelA, labelB string
	var rawA, rawB map[string]string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two model versions on the scenarios both produced",
		Example: "  vqgate compare --label-a v1 --a simple_motion=v1/motion.mp4 \\\n" +
			"    --label-b v2 --b simple_motion=v2/motion.mp4",
		RunE: func(cmd *cobra.Command, args []string) error {
			videosA, err := videoMap("a", rawA)
			if err != nil {
				return err
			}
			videosB, err := videoMap("b", rawB)
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}

			rep, err := comparison.New(ctx.engine(), catalog, ctx.log()).
				Compare(cmd.Context(), labelA, videosA, labelB, videosB)
			if err != nil {
				return err
			}
			if reportPath != "" {
				if err := report.WriteFile(reportPath, report.Comparison(rep, time.Now())); err != nil {
					return err
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, rep)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderComparison(rep))
			for _, id := range rep.OnlyA {
				fmt.Fprintf(out, "Only %s: %s\n", rep.LabelA, id)
			}
			for _, id := range rep.OnlyB {
				fmt.Fprintf(out, "Only %s: %s\n", rep.LabelB, id)
			}
			fmt.Fprintf(out, "Wins: %s %d, %s %d, ties %d\n", rep.LabelA, rep.WinsA, rep.LabelB, rep.WinsB, rep.Ties)
			fmt.Fprintf(out, "Overall winner: %s\n", rep.OverallWinner)
			return nil
		},
	}

	cmd.Flags().StringVar(&labelA, "label-a", "A", "Label for the first candidate")
	cmd.Flags().StringVar(&labelB, "label-b", "B", "Label for the second candidate")
	cmd.Flags().StringToStringVar(&rawA, "a", nil, "First candidate video as scenario=path (repeatable)")
	cmd.Flags().StringToStringVar(&rawB, "b", nil, "Second candidate video as scenario=path (repeatable)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON report to this path")
	return cmd
}

func renderComparison(rep comparison.Report) string {
	var rows [][]string
	for _, sc := range rep.Scenarios {
		for _, m := range sc.Metrics {
			rows = append(rows, []string{
				sc.ScenarioID,
				m.Metric,
				formatScore(m.ScoreA),
				formatScore(m.ScoreB),
				formatSigned(m.Delta),
				m.Winner,
			})
		}
		for _, name := range sc.Skipped {
			rows = append(rows, []string{sc.ScenarioID, name, "-", "-", "-", "skipped"})
		}
	}
	return renderTable(
		[]column{
			textCol("Scenario"), textCol("Metric"),
			numberCol(rep.LabelA), numberCol(rep.LabelB), numberCol("Delta"),
			textCol("Winner"),
		},
		rows,
		false,
	)
}
