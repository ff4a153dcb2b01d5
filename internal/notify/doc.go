// Package notify pushes message-written events to live channel
// subscribers.
//
// A Publisher accepts events from the write path without blocking and a
// dispatcher goroutine hands them to the Hub, which keeps one buffered
// writer per connection. Frames use the GeneralNotification envelope:
//
//	{"message_type":"bsvapi.channels.notification",
//	 "result":{"sequence":3,"received":"...","content_type":"application/json","channel_id":"..."}}
//
// Example:
//
//	hub := notify.NewHub(notify.HubOptions{Logger: logger})
//	pub := notify.NewPublisher(hub, notify.PublisherOptions{QueueSize: 1024})
//	defer pub.Close()
//	subID, _ := hub.Subscribe(channelID, wsConn, notify.Filter{})
//	defer hub.Remove(subID)
//	pub.Publish(notify.Event{ChannelID: channelID, Sequence: 1, Received: time.Now()})
package notify
