package client

import (
	"encoding/json"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/peerchan/internal/cmd/client/transports"
)

// NewNotifyCommand constructs `notify`, which tails a channel's websocket
// and prints one JSON line per frame.
func NewNotifyCommand(baseURL BaseURLFunc) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify <channel>",
		Short: "Stream new-message notifications for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			enc := json.NewEncoder(cmd.OutOrStdout())
			seen := 0
			return newTransport(baseURL).Notify(cmd.Context(), args[0], tok, filter, func(n transports.Notification) error {
				if err := enc.Encode(n); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return transports.ErrStop
				}
				return nil
			})
		},
	}
	notifyCmd.Flags().String("token", "", "Channel token (default $PEERCHAN_TOKEN)")
	notifyCmd.Flags().String("filter", "", "CEL filter, e.g. content_type == \"application/json\"")
	notifyCmd.Flags().Int("limit", 0, "Stop after N frames (0 = until interrupted)")
	return notifyCmd
}
