package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCapacityCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Worker capacity commands",
	}

	var hours float64
	check := &cobra.Command{
		Use:   "check <user-id> <day-id>",
		Short: "Check whether extra hours would breach a worker's daily limits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			dayID, err := parseID(args[1], "day id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				v, err := a.svc.Capacity.CheckViolation(a.svc.DB, userID, dayID, hours)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				s := newStyler(out)
				fmt.Fprintf(out, "User %d on day %d: %s\n", userID, dayID, s.verdict(!v.Violated))
				fmt.Fprintf(out, "  hours: %.1f assigned + %.1f = %.1f (limit %.1f, overtime %.1f)\n",
					v.AssignedHours, v.AdditionalHours, v.TotalHours, v.LimitHours, v.OvertimeHours)
				fmt.Fprintf(out, "  jobs:  %d assigned (max %d)\n", v.AssignedJobs, v.MaxJobs)
				return nil
			})
		},
	}
	check.Flags().Float64Var(&hours, "hours", 0, "hours to add")
	cmd.AddCommand(check)

	var role, shift string
	available := &cobra.Command{
		Use:   "available <day-id>",
		Short: "List workers with capacity left on a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dayID, err := parseID(args[0], "day id")
			if err != nil {
				return err
			}
			return withApp(*configPath, func(a *app) error {
				list, err := a.svc.Capacity.Available(a.svc.DB, dayID, role, shift)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "USER\tNAME\tROLE\tSHIFT\tASSIGNED\tLEFT\tLEFT+OT\tJOBS LEFT")
				for _, av := range list {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1fh\t%.1fh\t%.1fh\t%d\n", av.UserID, av.Name, av.Role, av.Shift,
						av.AssignedHours, av.RemainingHours, av.RemainingWithOvertime, av.RemainingJobs)
				}
				return w.Flush()
			})
		},
	}
	available.Flags().StringVar(&role, "role", "", "only this role")
	available.Flags().StringVar(&shift, "shift", "", "only this shift")
	cmd.AddCommand(available)
	return cmd
}
