package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/export"
)

func newExportCmd(configPath *string) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <plan-id>",
		Short: "Export a plan as a spreadsheet",
		Long:  "Writes the plan's jobs (and, for xlsx, its conflicts) to a file, or to stdout for csv.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			if output == "" {
				if format != export.FormatCSV {
					output = fmt.Sprintf("plan-%d.%s", planID, format)
				}
			}
			return withApp(*configPath, func(a *app) error {
				if output == "" {
					return export.Plan(a.svc.DB, cmd.OutOrStdout(), planID, format)
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := export.Plan(a.svc.DB, f, planID, format); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", export.FormatXLSX, "xlsx or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default plan-<id>.xlsx; csv goes to stdout)")
	return cmd
}
