package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/models"
)

func newConflictCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Conflict detection and review",
	}

	cmd.AddCommand(newConflictScanCmd(configPath))
	cmd.AddCommand(newConflictListCmd(configPath))
	cmd.AddCommand(newConflictReviewCmd(configPath, "resolve"))
	cmd.AddCommand(newConflictReviewCmd(configPath, "ignore"))
	return cmd
}

func newConflictScanCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <plan-id>",
		Short: "Scan a plan for conflicts",
		Long:  "Regenerates the plan's open conflicts. Findings that match an ignored conflict stay suppressed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				scan, err := a.svc.DetectConflicts(cmd.Context(), planID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scan %s: %d errors, %d warnings, %d suppressed (%s)\n", scan.ID,
					len(scan.Errors()), len(scan.Warnings()), scan.Suppressed, scan.Duration.Round(time.Millisecond))
				printConflicts(cmd, scan.Conflicts)
				return nil
			})
		},
	}
}

func newConflictListCmd(configPath *string) *cobra.Command {
	var filters conflict.ListFilters

	cmd := &cobra.Command{
		Use:   "list <plan-id>",
		Short: "List a plan's conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				cs, err := conflict.List(a.svc.DB, planID, filters)
				if err != nil {
					return err
				}
				if len(cs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conflicts found.")
					return nil
				}
				printConflicts(cmd, cs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (open, resolved, ignored)")
	cmd.Flags().StringVar(&filters.Type, "type", "", "filter by conflict type")
	cmd.Flags().StringVar(&filters.Severity, "severity", "", "filter by severity (error, warning)")
	cmd.Flags().UintVar(&filters.DayID, "day", 0, "filter by day id")
	return cmd
}

func printConflicts(cmd *cobra.Command, cs []models.Conflict) {
	out := cmd.OutOrStdout()
	s := newStyler(out)
	descWidth := max(20, width(out)-50)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tTYPE\tSTATUS\tJOBS\tDESCRIPTION")
	for _, c := range cs {
		jobs := make([]string, 0, len(c.AffectedJobIDs))
		for _, id := range c.AffectedJobIDs {
			jobs = append(jobs, fmt.Sprint(id))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", c.ID, s.severity(c.Severity), c.Type, c.Status,
			strings.Join(jobs, ","), truncate(c.Description, descWidth))
	}
	w.Flush()
}

func newConflictReviewCmd(configPath *string, action string) *cobra.Command {
	var by uint

	cmd := &cobra.Command{
		Use:   action + " <conflict-id> <note>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " an open conflict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "conflict id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				var c *models.Conflict
				if action == "resolve" {
					c, err = a.svc.ResolveConflict(cmd.Context(), id, args[1], by)
				} else {
					c, err = a.svc.IgnoreConflict(cmd.Context(), id, args[1], by)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conflict %d is now %s\n", c.ID, c.Status)
				return nil
			})
		},
	}

	cmd.Flags().UintVar(&by, "by", 0, "id of the reviewing user (required)")
	cmd.MarkFlagRequired("by")
	return cmd
}
