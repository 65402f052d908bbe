package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vqgate/internal/golden"
	"vqgate/internal/metrics"
	"vqgate/internal/report"
	"vqgate/internal/services"
)

func newGoldenCommand(ctx *commandContext) *cobra.Command {
	goldenCmd := &cobra.Command{
		Use:   "golden",
		Short: "Manage golden reference videos",
	}
	goldenCmd.AddCommand(newGoldenAddCommand(ctx))
	goldenCmd.AddCommand(newGoldenListCommand(ctx))
	goldenCmd.AddCommand(newGoldenLatestCommand(ctx))
	goldenCmd.AddCommand(newGoldenApproveCommand(ctx))
	goldenCmd.AddCommand(newGoldenCompareCommand(ctx))
	goldenCmd.AddCommand(newGoldenSummaryCommand(ctx))
	return goldenCmd
}

func newGoldenAddCommand(ctx *commandContext) *cobra.Command {
	var req golden.AddRequest
	var scores map[string]string
	var compute bool

	cmd := &cobra.Command{
		Use:   "add <video>",
		Short: "Store a video as a golden reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.VideoPath = args[0]
			parsed, err := parseScores(scores)
			if err != nil {
				return err
			}
			req.MetricScores = parsed
			if compute {
				results, err := ctx.engine().ComputeAll(cmd.Context(), req.VideoPath, metrics.Reference{})
				if err != nil {
					return err
				}
				computed := make(map[string]float64, len(results))
				for _, r := range results {
					if r.Available() && !r.Errored() {
						computed[r.Name] = r.Score
					}
				}
				for name, v := range req.MetricScores {
					computed[name] = v
				}
				req.MetricScores = computed
			}
			if req.Approved && strings.TrimSpace(req.Approver) == "" {
				return services.Wrap(services.ErrValidation, "golden", "add", "--approver is required with --approve", nil)
			}

			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			id, err := store.AddReference(cmd.Context(), req)
			if err != nil {
				return err
			}
			ref, err := store.GetReference(id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ref)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added reference %s\n", id)
			fmt.Fprintf(out, "  sha256: %s\n", ref.VideoHash)
			fmt.Fprintf(out, "  sampled frames: %d\n", len(ref.FrameHashes))
			fmt.Fprintf(out, "  approved: %s\n", yesNo(ref.Approval.Approved))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ScenarioID, "scenario", "", "Scenario id (required)")
	cmd.Flags().StringVar(&req.ModelVersion, "model-version", "", "Model version that produced the video (required)")
	cmd.Flags().StringToStringVar(&scores, "score", nil, "Recorded metric score as name=value (repeatable)")
	cmd.Flags().BoolVar(&compute, "compute", false, "Compute metric scores now and record them")
	cmd.Flags().BoolVar(&req.Approved, "approve", false, "Mark the reference as expert approved")
	cmd.Flags().StringVar(&req.Approver, "approver", "", "Approver identity")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Review notes")
	_ = cmd.MarkFlagRequired("scenario")
	_ = cmd.MarkFlagRequired("model-version")
	return cmd
}

func parseScores(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "golden", "add", fmt.Sprintf("score %s=%q is not a number", name, value), nil)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func newGoldenListCommand(ctx *commandContext) *cobra.Command {
	var scenarioID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List golden references",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			refs := store.References()
			if scenarioID != "" {
				refs = store.GetReferencesByScenario(scenarioID)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, refs)
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No golden references")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReferences(refs))
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "Only list this scenario")
	return cmd
}

func renderReferences(refs []golden.Reference) string {
	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		hash := ref.VideoHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows = append(rows, []string{
			ref.ID,
			ref.ScenarioID,
			ref.ModelVersion,
			yesNo(ref.Approval.Approved),
			ref.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			hash,
		})
	}
	return renderTable(
		[]column{
			textCol("ID"), textCol("Scenario"), textCol("Version"),
			textCol("Approved"), textCol("Created"), textCol("SHA-256"),
		},
		rows,
		false,
	)
}

func newGoldenLatestCommand(ctx *commandContext) *cobra.Command {
	var scenarioID string
	var opts golden.LatestOptions
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent reference for a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			ref, ok := store.GetLatestReference(scenarioID, opts)
			if !ok {
				return services.Wrap(services.ErrNotFound, "golden", "latest", "no matching reference for scenario "+scenarioID, nil)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ref)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReferences([]golden.Reference{ref}))
			return nil
		},
	}
	cmd.Flags().StringVar(&scenarioID, "scenario", "", "Scenario id (required)")
	cmd.Flags().StringVar(&opts.ModelVersion, "model-version", "", "Restrict to a model version")
	cmd.Flags().BoolVar(&opts.ApprovedOnly, "approved-only", false, "Only consider approved references")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newGoldenApproveCommand(ctx *commandContext) *cobra.Command {
	var approver, notes string
	var reject bool
	cmd := &cobra.Command{
		Use:   "approve <reference-id>",
		Short: "Approve or reject a golden reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			ref, err := store.ValidateReference(cmd.Context(), args[0], approver, !reject, notes)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ref)
			}
			verb := "Approved"
			if reject {
				verb = "Rejected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s as %s\n", verb, ref.ID, approver)
			return nil
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "Approver identity (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "Review notes")
	cmd.Flags().BoolVar(&reject, "reject", false, "Withdraw approval instead of granting it")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func newGoldenCompareCommand(ctx *commandContext) *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "compare <video-a> <video-b>",
		Short: "Compare two videos by content hash or sampled frames",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			res, err := store.CompareVideos(cmd.Context(), args[0], args[1], golden.ComparisonLevel(level))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Level: %s\n", res.Level)
			fmt.Fprintf(out, "Match: %s\n", yesNo(res.Match))
			fmt.Fprintf(out, "Similarity: %.3f\n", res.Similarity)
			if res.Reason != "" {
				fmt.Fprintf(out, "Reason: %s\n", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", string(golden.LevelHash), "Comparison level: hash or frame")
	return cmd
}

func newGoldenSummaryCommand(ctx *commandContext) *cobra.Command {
	var markdown bool
	var reportPath string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the golden set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.goldenManager()
			if err != nil {
				return err
			}
			summary := store.ExportSummary()
			if reportPath != "" {
				if err := report.WriteFile(reportPath, report.Golden(summary, time.Now())); err != nil {
					return err
				}
			}
			switch {
			case markdown:
				return store.ExportMarkdown(cmd.OutOrStdout())
			case ctx.jsonOutput():
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "References: %d (%d approved, %d pending)\n", summary.Total, summary.Approved, summary.Pending)
			rows := make([][]string, 0, len(summary.ByScenario))
			for _, id := range sortedKeys(summary.ByScenario) {
				s := summary.ByScenario[id]
				rows = append(rows, []string{
					id,
					strconv.Itoa(s.Total),
					strconv.Itoa(s.Approved),
					strings.Join(s.Versions, ", "),
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]column{textCol("Scenario"), numberCol("Total"), numberCol("Approved"), textCol("Versions")},
					rows,
					false,
				))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render the summary as Markdown")
	cmd.Flags().StringVar(&reportPath, "report", "", "Also write a JSON report to this path")
	return cmd
}
