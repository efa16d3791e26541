package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
)

func newOrderCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect payment orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <order-id>",
		Short: "Show a stored payment order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			o, err := deps.Repo.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "order_id:   %s\n", o.OrderID)
			fmt.Fprintf(out, "user_id:    %s\n", o.UserID)
			fmt.Fprintf(out, "plan:       %s\n", o.PlanCode)
			fmt.Fprintf(out, "amount:     %s %s\n", money.Format(o.AmountMinor, o.Currency), o.Currency)
			fmt.Fprintf(out, "status:     %s\n", o.Status)
			fmt.Fprintf(out, "created_at: %s\n", o.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "updated_at: %s\n", o.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	})
	return cmd
}
