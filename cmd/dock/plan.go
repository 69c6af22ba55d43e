package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/validation"
	"github.com/zulandar/drydock/internal/version"
)

func newPlanCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Weekly plan commands",
	}

	cmd.AddCommand(newPlanCreateCmd(configPath))
	cmd.AddCommand(newPlanListCmd(configPath))
	cmd.AddCommand(newPlanShowCmd(configPath))
	cmd.AddCommand(newPlanPublishCmd(configPath))
	cmd.AddCommand(newPlanArchiveCmd(configPath))
	cmd.AddCommand(newPlanVersionCmd(configPath))
	return cmd
}

func newPlanCreateCmd(configPath *string) *cobra.Command {
	var (
		weekOf string
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft plan for the week containing a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(weekOf)
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				p, err := a.svc.CreatePlan(cmd.Context(), date, notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created plan %d for %s to %s\n", p.ID,
					p.WeekStart.Format("2006-01-02"), p.WeekEnd.Format("2006-01-02"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&weekOf, "week", "", "any date in the week, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.MarkFlagRequired("week")
	return cmd
}

func newPlanListCmd(configPath *string) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, func(a *app) error {
				plans, err := plan.List(a.svc.DB, status)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(plans) == 0 {
					fmt.Fprintln(out, "No plans found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tWEEK\tSTATUS\tVALIDATED")
				for _, p := range plans {
					validated := "-"
					if p.ValidatedAt != nil {
						validated = p.ValidatedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.WeekStart.Format("2006-01-02"), p.Status, validated)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, published, archived)")
	return cmd
}

func newPlanShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan's days, jobs and crews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				p, err := plan.GetTree(a.svc.DB, id)
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func printPlan(out io.Writer, p *models.Plan) {
	s := newStyler(out)
	fmt.Fprintf(out, "%s  %s\n", s.heading(fmt.Sprintf("Plan %d: week of %s", p.ID, p.WeekStart.Format("2006-01-02"))), p.Status)
	if p.Notes != "" {
		fmt.Fprintf(out, "%s\n", s.dim(p.Notes))
	}
	descWidth := max(20, width(out)-60)
	for _, d := range p.Days {
		fmt.Fprintf(out, "\n%s\n", s.heading(d.Date.Format("Mon 2006-01-02")))
		if len(d.Jobs) == 0 {
			fmt.Fprintln(out, s.dim("  no jobs"))
			continue
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, j := range d.Jobs {
			slot := "-"
			if j.StartTime != "" {
				slot = j.StartTime + "-" + j.EndTime
			}
			kind := j.JobType
			if j.IsSplit {
				kind += " (split)"
			} else if j.SplitFromID != nil {
				kind += fmt.Sprintf(" (part %d of job %d)", j.SplitPart, *j.SplitFromID)
			}
			fmt.Fprintf(w, "  %d\t%s\t%.1fh\t%s\t%s\t%s\t%s\n", j.ID, kind, j.EstimatedHours, slot,
				j.Status, crew(j.Assignments), truncate(j.Description, descWidth))
		}
		w.Flush()
	}
}

func crew(as []models.JobAssignment) string {
	if len(as) == 0 {
		return "unassigned"
	}
	ids := make([]string, 0, len(as))
	for _, a := range as {
		id := strconv.FormatUint(uint64(a.UserID), 10)
		if a.IsLead {
			id += "*"
		}
		ids = append(ids, id)
	}
	return "crew " + strings.Join(ids, ",")
}

func newPlanPublishCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <plan-id>",
		Short: "Validate and publish a plan",
		Long:  "Runs full validation. The plan is published only when no error-severity issues remain.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				p, v, err := a.svc.Publish(cmd.Context(), id)
				out := cmd.OutOrStdout()
				if v != nil {
					printVerdict(out, v)
				}
				if err != nil {
					if apperr.Is(err, apperr.KindBusiness) && v != nil {
						return errors.New("plan not published: resolve the errors above first")
					}
					return err
				}
				fmt.Fprintf(out, "Published plan %d at %s\n", p.ID, p.PublishedAt.Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
}

func newPlanArchiveCmd(configPath *string) *cobra.Command {
	var elapsed bool

	cmd := &cobra.Command{
		Use:   "archive [plan-id]",
		Short: "Archive a published plan, or every elapsed one with --elapsed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if elapsed == (len(args) == 1) {
				return errors.New("give either a plan id or --elapsed")
			}
			return withApp(*configPath, func(a *app) error {
				out := cmd.OutOrStdout()
				if elapsed {
					n, err := a.svc.ArchiveElapsed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Archived %d elapsed plans\n", n)
					return nil
				}
				id, err := parseID(args[0], "plan id")
				if err != nil {
					return err
				}
				p, err := a.svc.Archive(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Archived plan %d\n", p.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&elapsed, "elapsed", false, "archive every published plan whose week has ended")
	return cmd
}

func printVerdict(out io.Writer, v *validation.Verdict) {
	s := newStyler(out)
	fmt.Fprintf(out, "Plan %d: %s (%d errors, %d warnings)\n", v.PlanID, s.verdict(v.Valid), len(v.Errors), len(v.Warnings))
	printIssues(out, append(append([]validation.Issue{}, v.Errors...), v.Warnings...))
}

func printIssues(out io.Writer, issues []validation.Issue) {
	s := newStyler(out)
	for _, i := range issues {
		fmt.Fprintf(out, "  %s  %-18s %s\n", s.severity(i.Severity), i.Type, i.Message)
	}
}

func newPlanVersionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Plan snapshot commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <plan-id> [summary]",
		Short: "Snapshot the plan as a new version",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			summary := ""
			if len(args) == 2 {
				summary = args[1]
			}
			return withApp(*configPath, func(a *app) error {
				v, err := a.svc.CreateVersion(cmd.Context(), id, summary)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created version %d of plan %d\n", v.VersionNumber, id)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <plan-id>",
		Short: "List the versions of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				vs, err := version.List(a.svc.DB, id)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tCHANGE\tCREATED\tSUMMARY")
				for _, v := range vs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.VersionNumber, v.ChangeType, v.CreatedAt.Format("2006-01-02 15:04"), v.Summary)
				}
				return w.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <plan-id> <version>",
		Short: "Replace the plan's jobs with a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
			return withApp(*configPath, func(a *app) error {
				v, err := a.svc.RestoreVersion(cmd.Context(), id, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored version %d; recorded as version %d\n", n, v.VersionNumber)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <plan-id> <from> <to>",
		Short: "Compare two versions of a plan",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "plan id")
			if err != nil {
				return err
			}
			from, err1 := strconv.Atoi(args[1])
			to, err2 := strconv.Atoi(args[2])
			if err1 != nil || err2 != nil {
				return errors.New("versions must be numbers")
			}
			return withApp(*configPath, func(a *app) error {
				d, err := version.Compare(a.svc.DB, id, from, to)
				if err != nil {
					return err
				}
				printDiff(cmd.OutOrStdout(), d)
				return nil
			})
		},
	})
	return cmd
}

func printDiff(out io.Writer, d *version.Diff) {
	fmt.Fprintf(out, "v%d -> v%d: %d added, %d removed, %d changed\n", d.From, d.To, len(d.Added), len(d.Removed), len(d.Changed))
	for _, j := range d.Added {
		fmt.Fprintf(out, "  + job %d %s %.1fh\n", j.ID, j.JobType, j.EstimatedHours)
	}
	for _, j := range d.Removed {
		fmt.Fprintf(out, "  - job %d %s %.1fh\n", j.ID, j.JobType, j.EstimatedHours)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(out, "  ~ job %d\n", c.JobID)
		for _, f := range c.Fields {
			fmt.Fprintf(out, "      %s: %v -> %v\n", f.Field, f.From, f.To)
		}
		if len(c.AddedUsers) > 0 {
			fmt.Fprintf(out, "      crew +%v\n", c.AddedUsers)
		}
		if len(c.RemovedUsers) > 0 {
			fmt.Fprintf(out, "      crew -%v\n", c.RemovedUsers)
		}
	}
}
