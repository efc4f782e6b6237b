package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <order.yaml>",
		Short: "Submit an order for scheduling",
		Long:  "Validate an order file, schedule its production and persist it on the server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := readOrderFile(args[0])
			if err != nil {
				return err
			}

			logger.Info("submitting order", "path", args[0], "items", len(order.Items))
			result, err := client.SubmitOrder(order)
			if err != nil {
				return fmt.Errorf("submit order: %w", err)
			}

			fmt.Printf("Order scheduled: %s (%d tasks)\n", result.Order.ID, len(result.Schedule.Tasks))
			for _, w := range result.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			for _, t := range result.Schedule.Tasks {
				fmt.Printf("  %s  %s - %s  %s (batch of %d)\n",
					t.Step,
					t.StartTime.Format("2006-01-02 15:04"),
					t.EndTime.Format("15:04"),
					t.BatchID,
					t.BatchSize,
				)
			}
			return nil
		},
	}
}
