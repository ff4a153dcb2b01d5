package client

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewMessageCommand constructs the `message` command group. All subcommands
// authenticate with a channel token.
func NewMessageCommand(baseURL BaseURLFunc) *cobra.Command {
	messageCmd := &cobra.Command{Use: "message", Short: "Read and write channel messages"}
	messageCmd.PersistentFlags().String("token", "", "Channel token (default $PEERCHAN_TOKEN)")
	messageCmd.AddCommand(
		newMessageWriteCommand(baseURL),
		newMessageReadCommand(baseURL),
		newMessageHeadCommand(baseURL),
		newMessageMarkCommand(baseURL),
		newMessageDeleteCommand(baseURL),
	)
	return messageCmd
}

func newMessageWriteCommand(baseURL BaseURLFunc) *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write <channel>",
		Short: "Write a message from --data, --file, or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			data, _ := cmd.Flags().GetString("data")
			file, _ := cmd.Flags().GetString("file")
			ct, _ := cmd.Flags().GetString("content-type")
			var payload []byte
			switch {
			case data != "":
				payload = []byte(data)
			case file == "-":
				payload, err = io.ReadAll(cmd.InOrStdin())
			case file != "":
				payload, err = os.ReadFile(file)
			default:
				return fmt.Errorf("one of --data or --file is required")
			}
			if err != nil {
				return err
			}
			m, err := newTransport(baseURL).WriteMessage(cmd.Context(), args[0], tok, ct, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd, decodedMessage(m))
		},
	}
	writeCmd.Flags().String("data", "", "Message payload")
	writeCmd.Flags().String("file", "", "Read payload from file (- for stdin)")
	writeCmd.Flags().String("content-type", "application/octet-stream", "Payload content type")
	return writeCmd
}

func newMessageReadCommand(baseURL BaseURLFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read <channel>",
		Short: "List messages visible to the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			unread, _ := cmd.Flags().GetBool("unread")
			msgs, err := newTransport(baseURL).ReadMessages(cmd.Context(), args[0], tok, unread)
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(msgs))
			for _, m := range msgs {
				out = append(out, decodedMessage(m))
			}
			return printJSON(cmd, out)
		},
	}
	readCmd.Flags().Bool("unread", false, "Only unread messages")
	return readCmd
}

func newMessageHeadCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "head <channel>",
		Short: "Print the newest sequence written by other tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			seq, err := newTransport(baseURL).MaxSequence(cmd.Context(), args[0], tok)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "max_sequence:", seq)
			return nil
		},
	}
}

func newMessageMarkCommand(baseURL BaseURLFunc) *cobra.Command {
	markCmd := &cobra.Command{
		Use:   "mark <channel> <sequence>",
		Short: "Mark a message read (or unread with --unread)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			seq, err := parseSeq(args[1])
			if err != nil {
				return err
			}
			older, _ := cmd.Flags().GetBool("older")
			unread, _ := cmd.Flags().GetBool("unread")
			if err := newTransport(baseURL).MarkMessages(cmd.Context(), args[0], tok, seq, older, !unread); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	markCmd.Flags().Bool("older", false, "Also mark every earlier message")
	markCmd.Flags().Bool("unread", false, "Mark unread instead of read")
	return markCmd
}

func newMessageDeleteCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <channel> <sequence>",
		Short: "Delete a message for every recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFlag(cmd)
			if err != nil {
				return err
			}
			seq, err := parseSeq(args[1])
			if err != nil {
				return err
			}
			if err := newTransport(baseURL).DeleteMessage(cmd.Context(), args[0], tok, seq); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}
