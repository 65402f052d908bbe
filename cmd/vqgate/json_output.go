package main

import (
	"github.com/spf13/cobra"

	"vqgate/internal/report"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	return report.Write(cmd.OutOrStdout(), v)
}
