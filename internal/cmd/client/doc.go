// Package client provides the `peerchan` command-line client.
//
// The CLI talks to the peerchan HTTP API for channel, token and message
// operations, to the notify websocket for live notifications, and to the
// gRPC health service.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it
// defaults to http://127.0.0.1:8080 (override with PEERCHAN_HTTP). The gRPC
// address is read from PEERCHAN_GRPC (default 127.0.0.1:50051).
//
// Account commands take --account or PEERCHAN_ACCOUNT; message commands
// take --token or PEERCHAN_TOKEN.
//
// Usage
//
//	peerchan channel create --account 1 --sequenced
//	peerchan token create <channel> --account 1 --description peer --can-write
//
//	peerchan message write <channel> --token $TOK \
//	    --content-type application/json --data '{"hello":"world"}'
//	peerchan message read <channel> --token $TOK --unread
//	peerchan message mark <channel> 3 --token $TOK --older
//
//	peerchan notify <channel> --token $TOK --filter 'content_type == "application/json"'
//	peerchan health
package client
