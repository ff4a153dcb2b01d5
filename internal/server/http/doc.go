// Package httpserver serves the peerchan REST API on a gorilla/mux router.
//
// Account routes live under /api/v1/account/{accountid} and require a
// matching X-Account-Id header set by the fronting gateway. Channel routes
// live under /api/v1/channel/{channelid} and authenticate with a channel
// bearer token. GET /api/v1/channel/{channelid}/notify upgrades to a
// websocket that receives one frame per committed message.
//
// Health is served at /v1/healthz and Prometheus metrics at /metrics.
package httpserver
