package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and update users",
	}
	cmd.AddCommand(newUserShowCmd(opts), newUserAssignCmd(opts))
	return cmd
}

func newUserShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			u, err := deps.Repo.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printUser(cmd, u)
			return nil
		},
	}
}

func newUserAssignCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "assign <user-id> <ssh-name>",
		Short: "Record the host account created for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			u, err := deps.Accounts.AssignAccess(cmd.Context(), args[0], args[1], password)
			if err != nil {
				return err
			}
			printUser(cmd, u)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Initial ssh password handed to the user")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printUser(cmd *cobra.Command, u *models.User) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user_id:      %s\n", u.UserID)
	fmt.Fprintf(out, "display_name: %s\n", u.DisplayName)
	fmt.Fprintf(out, "language:     %s\n", u.Language)
	fmt.Fprintf(out, "ssh_name:     %s\n", u.SSHName)
	fmt.Fprintf(out, "password_set: %t\n", u.SSHPassword != "")
	fmt.Fprintf(out, "expire_at:    %s\n", models.FormatTimestamp(u.ExpireAt))
}
