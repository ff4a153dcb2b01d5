package transports

import (
	"context"
	"encoding/json"
	"fmt"
)

// Retention mirrors the channel retention policy.
type Retention struct {
	MinAgeDays int  `json:"min_age_days"`
	MaxAgeDays int  `json:"max_age_days"`
	AutoPrune  bool `json:"auto_prune"`
}

// Token is an access token as returned by the server.
type Token struct {
	ID          uint64 `json:"id"`
	Token       string `json:"token"`
	Description string `json:"description"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

// Channel is a channel as returned by the account API.
type Channel struct {
	ID           string    `json:"id"`
	Href         string    `json:"href"`
	PublicRead   bool      `json:"public_read"`
	PublicWrite  bool      `json:"public_write"`
	Sequenced    bool      `json:"sequenced"`
	Locked       bool      `json:"locked"`
	HeadSequence uint64    `json:"head_sequence"`
	Retention    Retention `json:"retention"`
	AccessTokens []Token   `json:"access_tokens"`
}

// Message is a channel message. Payload is raw JSON for JSON content types
// and a base64 string otherwise.
type Message struct {
	Sequence    uint64          `json:"sequence"`
	Received    string          `json:"received"`
	ContentType string          `json:"content_type"`
	Payload     json.RawMessage `json:"payload"`
}

// Notification is one websocket frame from the notify endpoint.
type Notification struct {
	MessageType string          `json:"message_type"`
	Result      json.RawMessage `json:"result"`
	Reason      string          `json:"reason,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
}

// ChannelCreate carries channel creation flags.
type ChannelCreate struct {
	PublicRead  bool      `json:"public_read"`
	PublicWrite bool      `json:"public_write"`
	Sequenced   bool      `json:"sequenced"`
	Retention   Retention `json:"retention"`
}

// ChannelAmend is a partial update; nil fields are left unchanged.
type ChannelAmend struct {
	PublicRead  *bool `json:"public_read,omitempty"`
	PublicWrite *bool `json:"public_write,omitempty"`
	Locked      *bool `json:"locked,omitempty"`
}

// TokenCreate carries token creation flags.
type TokenCreate struct {
	Description string `json:"description"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// ChannelsTransport abstracts the transport used by the CLI.
type ChannelsTransport interface {
	CreateChannel(ctx context.Context, account int64, req ChannelCreate) (Channel, error)
	ListChannels(ctx context.Context, account int64) ([]Channel, error)
	GetChannel(ctx context.Context, account int64, channel string) (Channel, error)
	AmendChannel(ctx context.Context, account int64, channel string, req ChannelAmend) (Channel, error)
	DeleteChannel(ctx context.Context, account int64, channel string) error

	CreateToken(ctx context.Context, account int64, channel string, req TokenCreate) (Token, error)
	ListTokens(ctx context.Context, account int64, channel, token string) ([]Token, error)
	RevokeToken(ctx context.Context, account int64, channel string, tokenID uint64) error

	WriteMessage(ctx context.Context, channel, bearer, contentType string, payload []byte) (Message, error)
	ReadMessages(ctx context.Context, channel, bearer string, unread bool) ([]Message, error)
	MaxSequence(ctx context.Context, channel, bearer string) (uint64, error)
	MarkMessages(ctx context.Context, channel, bearer string, seq uint64, older, read bool) error
	DeleteMessage(ctx context.Context, channel, bearer string, seq uint64) error
	Notify(ctx context.Context, channel, bearer, filter string, onFrame func(Notification) error) error
}
