package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	var summary, optimize bool

	cmd := &cobra.Command{
		Use:   "schedule <date>",
		Short: "Show (or optimize) a day's production schedule",
		Long:  "Show the tasks scheduled for a YYYY-MM-DD date. --summary aggregates utilization; --optimize reruns the day through the optimizer first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := args[0]

			if optimize {
				report, err := client.OptimizeSchedule(date)
				if err != nil {
					return fmt.Errorf("optimize schedule: %w", err)
				}
				if report.Improved {
					fmt.Printf("Optimized %s: fitness %.1f after %d generations\n",
						date, report.Fitness, report.Generations)
				} else {
					fmt.Printf("No improvement for %s (fitness %.1f)\n", date, report.Fitness)
				}
			}

			if summary {
				return showSummary(date)
			}
			return showSchedule(date)
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Show the daily summary instead of the task list")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "Optimize the day before showing it")
	return cmd
}

func showSchedule(date string) error {
	tasks, err := client.Schedule(date)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Printf("Nothing scheduled on %s.\n", date)
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%s - %s  %-12s  order %s (batch of %d)\n",
			t.StartTime.Format("15:04"),
			t.EndTime.Format("15:04"),
			t.Step, t.OrderID, t.BatchSize)
	}
	return nil
}

func showSummary(date string) error {
	s, err := client.DailySummary(date)
	if err != nil {
		return fmt.Errorf("get summary: %w", err)
	}

	fmt.Printf("Schedule for %s: %d orders, %d tasks\n", s.Date, s.TotalOrders, s.TotalTasks)
	if s.StartTime != nil && s.EndTime != nil {
		fmt.Printf("  Production: %s - %s\n",
			s.StartTime.Format("15:04"), s.EndTime.Format("15:04"))
	}
	for _, u := range s.Utilization {
		fmt.Printf("  %-8s  %4d / %4d min  (%.0f%%)\n",
			u.Resource, u.BusyMinutes, u.TotalMinutes, u.Percent)
	}
	return nil
}
