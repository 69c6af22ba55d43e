package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/restriction"
	"github.com/zulandar/drydock/internal/skill"
)

func newValidateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate plans, assignments and equipment access",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "plan <plan-id>",
		Short: "Run full plan validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				v, err := a.svc.ValidatePlan(cmd.Context(), planID)
				if err != nil {
					return err
				}
				printVerdict(cmd.OutOrStdout(), v)
				if !v.Valid {
					return fmt.Errorf("plan %d has %d errors", planID, len(v.Errors))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "assignment <job-id> <user-id>",
		Short: "Check whether a worker could be assigned to a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			userID, err := parseID(args[1], "user id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				check, err := a.svc.ValidateAssignment(cmd.Context(), jobID, userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				s := newStyler(out)
				fmt.Fprintf(out, "User %d on job %d: %s\n", userID, jobID, s.verdict(check.Allowed))
				if c := check.Capacity; c != nil {
					fmt.Fprintf(out, "  capacity: %.1fh of %.1fh, %d jobs already assigned (max %d)\n", c.TotalHours, c.LimitHours, c.AssignedJobs, c.MaxJobs)
				}
				printIssues(out, append(check.Errors, check.Warnings...))
				return nil
			})
		},
	})

	cmd.AddCommand(newValidateEquipmentCmd(configPath))
	cmd.AddCommand(newValidateSkillsCmd(configPath))
	return cmd
}

func newValidateEquipmentCmd(configPath *string) *cobra.Command {
	var (
		date  string
		users []uint
	)

	cmd := &cobra.Command{
		Use:   "equipment <equipment-id>",
		Short: "Check a crew against an equipment's restrictions on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			equipmentID, err := parseID(args[0], "equipment id")
			if err != nil {
				return err
			}
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				res, err := restriction.Check(a.svc.DB, equipmentID, d, users)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				s := newStyler(out)
				fmt.Fprintf(out, "Equipment %d on %s: %s\n", equipmentID, date, s.verdict(res.Allowed))
				for _, v := range res.Violations {
					fmt.Fprintf(out, "  %s  %s\n", s.severity(v.Severity), v.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD (required)")
	cmd.Flags().UintSliceVar(&users, "user", nil, "crew member id (repeatable)")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newValidateSkillsCmd(configPath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "skills <skill>...",
		Short: "List workers holding every named skill on a date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				users, err := skill.QualifiedWorkers(a.svc.DB, args, d)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintf(out, "Nobody holds %s on %s.\n", strings.Join(args, ", "), date)
					return nil
				}
				for _, u := range users {
					fmt.Fprintf(out, "%d\t%s\t%s\n", u.ID, u.Name, u.Role)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("date")
	return cmd
}
