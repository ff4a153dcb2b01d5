package client

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/peerchan/internal/cmd/client/transports"
)

// NewTokenCommand constructs the `token` command group.
func NewTokenCommand(baseURL BaseURLFunc) *cobra.Command {
	tokenCmd := &cobra.Command{Use: "token", Short: "Channel access tokens (account scoped)"}
	tokenCmd.PersistentFlags().String("account", "", "Account id (default $PEERCHAN_ACCOUNT)")

	createCmd := &cobra.Command{
		Use:   "create <channel>",
		Short: "Issue a token on a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			var req transports.TokenCreate
			req.Description, _ = cmd.Flags().GetString("description")
			req.CanRead, _ = cmd.Flags().GetBool("can-read")
			req.CanWrite, _ = cmd.Flags().GetBool("can-write")
			tok, err := newTransport(baseURL).CreateToken(cmd.Context(), acct, args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd, tok)
		},
	}
	createCmd.Flags().String("description", "", "Token description")
	createCmd.Flags().Bool("can-read", true, "Token may read")
	createCmd.Flags().Bool("can-write", false, "Token may write")

	listCmd := &cobra.Command{
		Use:   "list <channel>",
		Short: "List live tokens of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			match, _ := cmd.Flags().GetString("match")
			toks, err := newTransport(baseURL).ListTokens(cmd.Context(), acct, args[0], match)
			if err != nil {
				return err
			}
			return printJSON(cmd, toks)
		},
	}
	listCmd.Flags().String("match", "", "Only the token with this value")

	revokeCmd := &cobra.Command{
		Use:   "revoke <channel> <token-id>",
		Short: "Expire a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token id %q", args[1])
			}
			if err := newTransport(baseURL).RevokeToken(cmd.Context(), acct, args[0], id); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}

	tokenCmd.AddCommand(createCmd, listCmd, revokeCmd)
	return tokenCmd
}
