package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/catalog"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/money"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List plans and coupons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tPRICE\tDAYS\tDESCRIPTION")
			for _, p := range deps.Catalog.Plans() {
				days := "-"
				if d, ok := catalog.Duration(p.PlanCode); ok {
					days = fmt.Sprint(int(d / (24 * time.Hour)))
				}
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", p.PlanCode, money.Format(p.PriceMinor, p.Currency), p.Currency, days, p.Description)
			}
			if coupons := deps.Catalog.Coupons(); len(coupons) > 0 {
				fmt.Fprintln(tw, "\nCOUPON\tREMAINING\tDURATION\t")
				for _, c := range coupons {
					fmt.Fprintf(tw, "%s\t%d\t%s\t\n", c.Code, c.RemainingQuantity, c.GrantedDuration)
				}
			}
			return tw.Flush()
		},
	}
}
