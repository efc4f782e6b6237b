package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOrdersCmd() *cobra.Command {
	var status string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "orders [id]",
		Short: "List orders, or show one order with its tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showOrder(args[0])
			}

			page, err := client.Orders(status, limit, offset)
			if err != nil {
				return fmt.Errorf("list orders: %w", err)
			}

			if len(page.Orders) == 0 {
				fmt.Println("No orders.")
				return nil
			}
			for _, o := range page.Orders {
				fmt.Printf("%s  %-10s  %s %s  %s (%d items)\n",
					o.ID, o.Status, o.DeliveryDate, o.DeliverySlot,
					o.CustomerName, len(o.Items))
			}
			if pg := page.Pagination; pg != nil && pg.HasMore {
				fmt.Printf("(%d of %d, use --offset to page)\n", len(page.Orders), pg.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by order status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return cmd
}

func showOrder(id string) error {
	detail, err := client.Order(id)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	o := detail.Order
	fmt.Printf("Order %s\n", o.ID)
	fmt.Printf("  Customer: %s\n", o.CustomerName)
	fmt.Printf("  Status:   %s\n", o.Status)
	fmt.Printf("  Delivery: %s %s\n", o.DeliveryDate, o.DeliverySlot)
	for _, item := range o.Items {
		fmt.Printf("  Item: %d x %s\n", item.Quantity, item.Product)
	}
	if len(detail.Tasks) > 0 {
		fmt.Println("  Tasks:")
		for _, t := range detail.Tasks {
			fmt.Printf("    %s  %s - %s  (batch of %d)\n",
				t.Step,
				t.StartTime.Format("2006-01-02 15:04"),
				t.EndTime.Format("15:04"),
				t.BatchSize,
			)
		}
	}
	return nil
}
