package client

import (
	"fmt"

	"github.com/spf13/cobra"

	transports "github.com/rzbill/peerchan/internal/cmd/client/transports"
)

// NewHealthCommand constructs `health`, which queries the gRPC health
// service at $PEERCHAN_GRPC.
func NewHealthCommand() *cobra.Command {
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _ := cmd.Flags().GetString("service")
			status, err := transports.NewGrpcHealth(dialGRPCContext).Check(cmd.Context(), service)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", status)
			return nil
		},
	}
	healthCmd.Flags().String("service", "", "Health service name (empty for the server)")
	return healthCmd
}
