package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/template"
)

func newTemplateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Job template commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <templates.yaml>",
		Short: "Create or update templates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return withApp(*configPath, func(a *app) error {
				ts, err := template.Import(a.svc.DB, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d templates\n", len(ts))
				return nil
			})
		},
	})

	var jobType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(a *app) error {
				ts, err := template.List(a.svc.DB, jobType)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tHOURS\tCREW\tRECURRENCE")
				for _, t := range ts {
					rec := t.Recurrence
					if rec == "" {
						rec = "-"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%d\t%s\n", t.ID, t.Name, t.JobType, t.EstimatedHours, t.DefaultTeamSize, rec)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&jobType, "type", "", "filter by job type")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "schedule <template-id> <plan-id>",
		Short: "Add a template's recurring occurrences to a plan",
		Long:  "Creates a job on every day of the plan the template's cron recurrence fires on, skipping days that already have one.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			templateID, err := parseID(args[0], "template id")
			if err != nil {
				return err
			}
			planID, err := parseID(args[1], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				jobs, err := a.svc.ScheduleRecurring(cmd.Context(), templateID, planID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %d jobs\n", len(jobs))
				return nil
			})
		},
	})
	return cmd
}
