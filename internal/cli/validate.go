package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <order.yaml>",
		Short: "Validate an order without scheduling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := readOrderFile(args[0])
			if err != nil {
				return err
			}

			result, err := client.ValidateOrder(order)
			if err != nil {
				return fmt.Errorf("validate order: %w", err)
			}

			if result.Valid {
				fmt.Println("Order: valid")
			} else {
				fmt.Println("Order: INVALID")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}
			for _, w := range result.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			return nil
		},
	}
}
