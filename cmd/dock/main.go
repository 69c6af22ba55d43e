package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "dock",
		Short:        "Drydock maintenance planning and conflict detection",
		Long:         "Drydock plans weekly maintenance work, checks crews against capacity, skills and equipment rules, and publishes validated plans.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "drydock.yaml", "path to Drydock config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd(&configPath))
	cmd.AddCommand(newPlanCmd(&configPath))
	cmd.AddCommand(newJobCmd(&configPath))
	cmd.AddCommand(newDepCmd(&configPath))
	cmd.AddCommand(newConflictCmd(&configPath))
	cmd.AddCommand(newValidateCmd(&configPath))
	cmd.AddCommand(newCapacityCmd(&configPath))
	cmd.AddCommand(newTemplateCmd(&configPath))
	cmd.AddCommand(newExportCmd(&configPath))
	cmd.AddCommand(newReportCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dock %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
