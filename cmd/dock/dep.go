package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/dependency"
)

func newDepCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage job dependencies",
	}

	cmd.AddCommand(newDepAddCmd(configPath))
	cmd.AddCommand(newDepRemoveCmd(configPath))
	cmd.AddCommand(newDepListCmd(configPath))
	cmd.AddCommand(newDepChainCmd(configPath))
	return cmd
}

func newDepAddCmd(configPath *string) *cobra.Command {
	var (
		depType string
		lag     int
	)

	cmd := &cobra.Command{
		Use:   "add <job-id> <depends-on-id>",
		Short: "Make a job depend on another",
		Long:  "Records that the first job cannot start before the second. Cycles are rejected.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			dependsOn, err := parseID(args[1], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				dep, err := a.svc.AddDependency(cmd.Context(), dependency.AddOpts{
					JobID:      jobID,
					DependsOn:  dependsOn,
					Type:       depType,
					LagMinutes: lag,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d now depends on job %d (%s)\n", dep.JobID, dep.DependsOnJobID, dep.Type)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&depType, "type", "finish_to_start", "finish_to_start or start_to_start")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in minutes")
	return cmd
}

func newDepRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <job-id> <depends-on-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			dependsOn, err := parseID(args[1], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				if err := a.svc.RemoveDependency(cmd.Context(), jobID, dependsOn); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed dependency %d -> %d\n", jobID, dependsOn)
				return nil
			})
		},
	}
}

func newDepListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <job-id>",
		Short: "List a job's prerequisites and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				pre, post, err := dependency.List(a.svc.DB, jobID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DIRECTION\tJOB\tTYPE\tLAG")
				for _, d := range pre {
					fmt.Fprintf(w, "needs\t%d\t%s\t%dm\n", d.DependsOnJobID, d.Type, d.LagMinutes)
				}
				for _, d := range post {
					fmt.Fprintf(w, "blocks\t%d\t%s\t%dm\n", d.JobID, d.Type, d.LagMinutes)
				}
				return w.Flush()
			})
		},
	}
}

func newDepChainCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <job-id>",
		Short: "Show every prerequisite of a job, transitively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				links, err := dependency.Chain(a.svc.DB, jobID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(links) == 0 {
					fmt.Fprintf(out, "Job %d has no prerequisites.\n", jobID)
					return nil
				}
				fmt.Fprintf(out, "job %d\n", jobID)
				for _, l := range links {
					fmt.Fprintf(out, "%s└─ job %d\n", strings.Repeat("   ", l.Depth-1), l.JobID)
				}
				return nil
			})
		},
	}
}
