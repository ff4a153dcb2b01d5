package notify

import "time"

// MessageType tags every push frame sent to channel subscribers.
const MessageType = "bsvapi.channels.notification"

// Event announces a committed message. It carries no payload; subscribers
// fetch the message through the read API.
type Event struct {
	ChannelID   string
	Sequence    uint64
	Received    time.Time
	ContentType string
}

// Data is the wire form of an Event.
type Data struct {
	Sequence    uint64 `json:"sequence"`
	Received    string `json:"received"`
	ContentType string `json:"content_type"`
	ChannelID   string `json:"channel_id"`
}

// GeneralNotification is the envelope written to websocket subscribers.
// Result holds either a Data value or a plain status string.
type GeneralNotification struct {
	MessageType string `json:"message_type"`
	Result      any    `json:"result"`
}

// WebsocketError is sent before a subscriber connection is closed by the
// server.
type WebsocketError struct {
	Reason     string `json:"reason"`
	StatusCode int    `json:"status_code"`
}

// Envelope wraps the event for the wire.
func (e Event) Envelope() GeneralNotification {
	return GeneralNotification{
		MessageType: MessageType,
		Result: Data{
			Sequence:    e.Sequence,
			Received:    e.Received.UTC().Format(time.RFC3339Nano),
			ContentType: e.ContentType,
			ChannelID:   e.ChannelID,
		},
	}
}
