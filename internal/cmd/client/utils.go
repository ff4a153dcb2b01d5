package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/peerchan/internal/cmd/client/transports"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// grpcAddrFromEnv returns the gRPC server address from PEERCHAN_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("PEERCHAN_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// dialGRPCContext dials the gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(ctx context.Context) (*grpc.ClientConn, error) {
	return grpc.DialContext(ctx, grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

var newTransport = func(baseURL BaseURLFunc) transports.ChannelsTransport {
	return transports.NewHTTPTransport(baseURL, nil)
}

// accountFlag reads --account, falling back to PEERCHAN_ACCOUNT.
func accountFlag(cmd *cobra.Command) (int64, error) {
	raw, _ := cmd.Flags().GetString("account")
	if raw == "" {
		raw = os.Getenv("PEERCHAN_ACCOUNT")
	}
	if raw == "" {
		return 0, fmt.Errorf("--account or PEERCHAN_ACCOUNT is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return id, nil
}

// tokenFlag reads --token, falling back to PEERCHAN_TOKEN.
func tokenFlag(cmd *cobra.Command) (string, error) {
	tok, _ := cmd.Flags().GetString("token")
	if tok == "" {
		tok = os.Getenv("PEERCHAN_TOKEN")
	}
	if tok == "" {
		return "", fmt.Errorf("--token or PEERCHAN_TOKEN is required")
	}
	return tok, nil
}

func parseSeq(raw string) (uint64, error) {
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || seq == 0 {
		return 0, fmt.Errorf("invalid sequence %q", raw)
	}
	return seq, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// decodedMessage returns a map with sequence metadata and one of
// payload_json, payload_text, or payload_b64.
func decodedMessage(m transports.Message) map[string]any {
	out := map[string]any{
		"sequence":     m.Sequence,
		"received":     m.Received,
		"content_type": m.ContentType,
	}
	var s string
	if isJSONType(m.ContentType) || json.Unmarshal(m.Payload, &s) != nil {
		var v any
		_ = json.Unmarshal(m.Payload, &v)
		out["payload_json"] = v
		return out
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		out["payload_b64"] = s
		return out
	}
	if utf8.Valid(raw) {
		out["payload_text"] = string(raw)
		return out
	}
	out["payload_b64"] = s
	return out
}

func isJSONType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}
