package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/drydock/internal/report"
)

func newReportCmd(configPath *string) *cobra.Command {
	var (
		planID   uint
		from, to string
	)

	cmd := &cobra.Command{
		Use:       "report <completion|accuracy|workers>",
		Short:     "Completion, estimate accuracy and worker reports",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"completion", "accuracy", "workers"},
		RunE: func(cmd *cobra.Command, args []string) error {
			f := report.Filter{PlanID: planID}
			var err error
			if from != "" {
				if f.From, err = parseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseDate(to); err != nil {
					return err
				}
			}
			return withApp(*configPath, func(a *app) error {
				out := cmd.OutOrStdout()
				switch args[0] {
				case "completion":
					c, err := report.CompletionReport(a.svc.DB, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d jobs: %d completed, %d in progress, %d cancelled (rate %.1f%%)\n",
						c.Total, c.Completed, c.InProgress, c.Cancelled, c.Rate*100)
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					for _, t := range c.ByType {
						fmt.Fprintf(w, "  %s\t%d/%d\t%.1f%%\n", t.JobType, t.Completed, t.Total, t.Rate*100)
					}
					return w.Flush()
				case "accuracy":
					r, err := report.TimeAccuracyReport(a.svc.DB, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d completed jobs: %.1fh estimated, %.1fh actual\n", r.Jobs, r.EstimatedHours, r.ActualHours)
					fmt.Fprintf(out, "mean estimate/actual %.3f, MAPE %.1f%%, %d under, %d over\n",
						r.MeanRatio, r.MAPE, r.Underestimated, r.Overestimated)
					return nil
				case "workers":
					ws, err := report.WorkerPerformance(a.svc.DB, f)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "USER\tNAME\tASSIGNED\tCOMPLETED\tEST\tACTUAL\tRATE")
					for _, s := range ws {
						fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1fh\t%.1fh\t%.1f%%\n", s.UserID, s.Name, s.AssignedJobs,
							s.CompletedJobs, s.EstimatedHours, s.ActualHours, s.CompletionRate*100)
					}
					return w.Flush()
				}
				return fmt.Errorf("unknown report %q (want completion, accuracy or workers)", args[0])
			})
		},
	}

	cmd.Flags().UintVar(&planID, "plan", 0, "only this plan")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	return cmd
}
