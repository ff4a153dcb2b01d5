// Package runtime wires storage, config, and facades into a single-node
// peerchan instance. It owns the Pebble handle, the message-box store and
// the notification hub, and exposes Open/Close and a basic health check.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	ch, _ := rt.Store().CreateChannel(ctx, accountID, msgbox.ChannelCreate{Sequenced: true})
package runtime
