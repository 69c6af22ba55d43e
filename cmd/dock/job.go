package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/split"
)

func newJobCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job commands",
	}

	cmd.AddCommand(newJobAddCmd(configPath))
	cmd.AddCommand(newJobMoveCmd(configPath))
	cmd.AddCommand(newJobAssignCmd(configPath))
	cmd.AddCommand(newJobUnassignCmd(configPath))
	cmd.AddCommand(newJobSplitCmd(configPath))
	cmd.AddCommand(newJobMergeCmd(configPath))
	cmd.AddCommand(newJobProgressCmd(configPath, "start"))
	cmd.AddCommand(newJobProgressCmd(configPath, "complete"))
	cmd.AddCommand(newJobProgressCmd(configPath, "cancel"))
	cmd.AddCommand(newJobRemoveCmd(configPath))
	return cmd
}

func newJobAddCmd(configPath *string) *cobra.Command {
	var (
		opts        plan.AddJobOpts
		equipmentID uint
		templateID  uint
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a job to a plan day",
		Long:  "Adds a job to a day, either from explicit fields or instantiated from a template with --template.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(a *app) error {
				var (
					job *models.Job
					err error
				)
				if templateID != 0 {
					job, err = a.svc.AddJobFromTemplate(cmd.Context(), templateID, opts.DayID)
				} else {
					if equipmentID != 0 {
						opts.EquipmentID = &equipmentID
					}
					job, err = a.svc.AddJob(cmd.Context(), opts)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created job %d (%s, %.1fh)\n", job.ID, job.JobType, job.EstimatedHours)
				return nil
			})
		},
	}

	cmd.Flags().UintVar(&opts.DayID, "day", 0, "day id (required)")
	cmd.Flags().UintVar(&templateID, "template", 0, "create from this template")
	cmd.Flags().StringVar(&opts.JobType, "type", "", "job type (preventive, defect, inspection)")
	cmd.Flags().UintVar(&equipmentID, "equipment", 0, "equipment id")
	cmd.Flags().StringVar(&opts.Description, "description", "", "work description")
	cmd.Flags().StringVar(&opts.Berth, "berth", "", "berth")
	cmd.Flags().Float64Var(&opts.EstimatedHours, "hours", 0, "estimated hours")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, normal, high, urgent)")
	cmd.Flags().StringVar(&opts.StartTime, "start", "", "slot start, HH:MM")
	cmd.Flags().StringVar(&opts.EndTime, "end", "", "slot end, HH:MM")
	cmd.MarkFlagRequired("day")
	return cmd
}

func newJobMoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "move <job-id> <day-id>",
		Short: "Move a job to another day of the same plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			dayID, err := parseID(args[1], "day id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				if _, err := a.svc.MoveJob(cmd.Context(), jobID, dayID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved job %d to day %d\n", jobID, dayID)
				return nil
			})
		},
	}
}

func newJobAssignCmd(configPath *string) *cobra.Command {
	var lead bool

	cmd := &cobra.Command{
		Use:   "assign <job-id> <user-id>",
		Short: "Assign a worker to a job",
		Long:  "Stores the assignment and reports any capacity, skill, leave or restriction problems it causes.",
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
				check, err := a.svc.Assign(cmd.Context(), jobID, userID, lead)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Assigned user %d to job %d\n", userID, jobID)
				printIssues(out, append(check.Errors, check.Warnings...))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&lead, "lead", false, "make the worker crew lead")
	return cmd
}

func newJobUnassignCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <job-id> <user-id>",
		Short: "Remove a worker from a job",
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
				if err := a.svc.Unassign(cmd.Context(), jobID, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed user %d from job %d\n", userID, jobID)
				return nil
			})
		},
	}
}

func newJobSplitCmd(configPath *string) *cobra.Command {
	var rawParts []string

	cmd := &cobra.Command{
		Use:   "split <job-id>",
		Short: "Split a job across days",
		Long: `Splits a job into parts. Each --part is DAY_ID:HOURS and the hours must
add up to the job's estimate.`,
		Example: "  dock job split 12 --part 3:4 --part 4:4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			parts, err := parseParts(rawParts)
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				jobs, err := a.svc.Split(cmd.Context(), jobID, parts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Split job %d into %d parts\n", jobID, len(jobs))
				for _, j := range jobs {
					fmt.Fprintf(out, "  part %d: job %d on day %d, %.2fh\n", j.SplitPart, j.ID, j.DayID, j.EstimatedHours)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&rawParts, "part", nil, "DAY_ID:HOURS (repeatable, at least two)")
	return cmd
}

func parseParts(raw []string) ([]split.Part, error) {
	parts := make([]split.Part, 0, len(raw))
	for _, r := range raw {
		day, hours, ok := strings.Cut(r, ":")
		if !ok {
			return nil, fmt.Errorf("invalid part %q (want DAY_ID:HOURS)", r)
		}
		dayID, err := parseID(day, "day id")
		if err != nil {
			return nil, err
		}
		h, err := strconv.ParseFloat(hours, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hours in part %q", r)
		}
		parts = append(parts, split.Part{DayID: dayID, Hours: h})
	}
	return parts, nil
}

func newJobMergeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <job-id>",
		Short: "Merge the parts of a split job back together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				job, err := a.svc.Merge(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Merged job %d (%.1fh)\n", job.ID, job.EstimatedHours)
				return nil
			})
		},
	}
}

func newJobProgressCmd(configPath *string, action string) *cobra.Command {
	var actual float64

	cmd := &cobra.Command{
		Use:   action + " <job-id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				var job *models.Job
				switch action {
				case "start":
					job, err = a.svc.StartJob(cmd.Context(), jobID)
				case "complete":
					job, err = a.svc.CompleteJob(cmd.Context(), jobID, actual)
				default:
					job, err = a.svc.CancelJob(cmd.Context(), jobID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d is now %s\n", job.ID, job.Status)
				return nil
			})
		},
	}

	if action == "complete" {
		cmd.Flags().Float64Var(&actual, "actual-hours", 0, "hours actually worked")
	}
	return cmd
}

func newJobRemoveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <job-id>",
		Short: "Remove a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				if err := a.svc.RemoveJob(cmd.Context(), jobID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %d\n", jobID)
				return nil
			})
		},
	}
}
