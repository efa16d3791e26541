package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/ssh-subscription/internal/lib/jwt"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			token, err := deps.Tokens.GenerateToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "chatbot", "Token subject")
	cmd.Flags().StringVar(&role, "role", jwt.RoleChat, "Token role: chat or operator")
	return cmd
}
