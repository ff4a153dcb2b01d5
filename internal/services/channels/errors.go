package channelsvc

import "errors"

var (
	// ErrUnauthorized means the bearer token is unknown, expired, foreign
	// to the channel, or lacks the needed permission. Transports report it
	// like a missing channel.
	ErrUnauthorized = errors.New("channels: unauthorized")
	// ErrPayloadTooLarge rejects a message body above the configured limit.
	ErrPayloadTooLarge = errors.New("channels: payload too large")
	// ErrUnsupportedContentType rejects a content type outside the allow list.
	ErrUnsupportedContentType = errors.New("channels: unsupported content type")
	// ErrRetentionMinAge rejects deleting a message younger than the
	// channel's minimum age.
	ErrRetentionMinAge = errors.New("channels: message younger than retention minimum")
)
