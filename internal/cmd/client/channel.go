package client

import (
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/peerchan/internal/cmd/client/transports"
)

// NewChannelCommand constructs the `channel` command group.
func NewChannelCommand(baseURL BaseURLFunc) *cobra.Command {
	channelCmd := &cobra.Command{Use: "channel", Short: "Channel operations (account scoped)"}
	channelCmd.PersistentFlags().String("account", "", "Account id (default $PEERCHAN_ACCOUNT)")
	channelCmd.AddCommand(
		newChannelCreateCommand(baseURL),
		newChannelListCommand(baseURL),
		newChannelGetCommand(baseURL),
		newChannelAmendCommand(baseURL),
		newChannelDeleteCommand(baseURL),
	)
	return channelCmd
}

func newChannelCreateCommand(baseURL BaseURLFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a channel; prints it with its owner token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			var req transports.ChannelCreate
			req.PublicRead, _ = cmd.Flags().GetBool("public-read")
			req.PublicWrite, _ = cmd.Flags().GetBool("public-write")
			req.Sequenced, _ = cmd.Flags().GetBool("sequenced")
			req.Retention.MinAgeDays, _ = cmd.Flags().GetInt("min-age-days")
			req.Retention.MaxAgeDays, _ = cmd.Flags().GetInt("max-age-days")
			req.Retention.AutoPrune, _ = cmd.Flags().GetBool("auto-prune")
			ch, err := newTransport(baseURL).CreateChannel(cmd.Context(), acct, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, ch)
		},
	}
	createCmd.Flags().Bool("public-read", false, "Any channel token may read")
	createCmd.Flags().Bool("public-write", false, "Any channel token may write")
	createCmd.Flags().Bool("sequenced", false, "Reject writes from tokens with unread messages")
	createCmd.Flags().Int("min-age-days", 0, "Messages younger than this cannot be deleted")
	createCmd.Flags().Int("max-age-days", 0, "Messages older than this are pruned (with --auto-prune)")
	createCmd.Flags().Bool("auto-prune", false, "Enable scheduled pruning")
	return createCmd
}

func newChannelListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account's channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			list, err := newTransport(baseURL).ListChannels(cmd.Context(), acct)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
}

func newChannelGetCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <channel>",
		Short: "Show a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			ch, err := newTransport(baseURL).GetChannel(cmd.Context(), acct, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, ch)
		},
	}
}

func newChannelAmendCommand(baseURL BaseURLFunc) *cobra.Command {
	amendCmd := &cobra.Command{
		Use:   "amend <channel>",
		Short: "Change channel flags; unset flags are left alone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			var req transports.ChannelAmend
			req.PublicRead = changedBool(cmd, "public-read")
			req.PublicWrite = changedBool(cmd, "public-write")
			req.Locked = changedBool(cmd, "locked")
			if req.PublicRead == nil && req.PublicWrite == nil && req.Locked == nil {
				return fmt.Errorf("nothing to amend")
			}
			ch, err := newTransport(baseURL).AmendChannel(cmd.Context(), acct, args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd, ch)
		},
	}
	amendCmd.Flags().Bool("public-read", false, "Any channel token may read")
	amendCmd.Flags().Bool("public-write", false, "Any channel token may write")
	amendCmd.Flags().Bool("locked", false, "Reject all writes")
	return amendCmd
}

func changedBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func newChannelDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <channel>",
		Short: "Delete a channel with its messages and tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			if err := newTransport(baseURL).DeleteChannel(cmd.Context(), acct, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}
