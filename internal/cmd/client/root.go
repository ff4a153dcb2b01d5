package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the peerchan client.
// It registers the channel, token, message, notify and health commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "peerchan",
		Short: "peerchan client commands",
	}
	AddCommands(root, baseURL)
	return root
}

// AddCommands attaches the client command groups to parent.
func AddCommands(parent *cobra.Command, baseURL BaseURLFunc) {
	parent.AddCommand(
		NewChannelCommand(baseURL),
		NewTokenCommand(baseURL),
		NewMessageCommand(baseURL),
		NewNotifyCommand(baseURL),
		NewHealthCommand(),
	)
}
