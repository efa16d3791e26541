package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

func newSweepCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Revoke access of every expired user now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				expired, checked, err := deps.Sweeper.Expired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "checked %d users, %d expired\n", checked, len(expired))
				printUsers(cmd, expired)
				return nil
			}

			report, err := deps.Sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Fprintln(out, "sweep skipped: another sweep is running")
				return nil
			}
			fmt.Fprintf(out, "checked %d, revoked %d, failed %d\n", report.Checked, report.Revoked, report.Failed)
			for _, id := range report.Renewed {
				fmt.Fprintf(out, "user %s renewed after revocation, restore the account with 'user assign'\n", id)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d users could not be revoked", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list expired users")
	return cmd
}

func printUsers(cmd *cobra.Command, users []models.User) {
	if len(users) == 0 {
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER_ID\tSSH_NAME\tEXPIRE_AT")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.UserID, u.SSHName, models.FormatTimestamp(u.ExpireAt))
	}
	_ = tw.Flush()
}
