package msgbox

import "time"

// Retention is a channel's message age policy in days.
type Retention struct {
	MinAgeDays int  `json:"minAgeDays"`
	MaxAgeDays int  `json:"maxAgeDays"`
	AutoPrune  bool `json:"autoPrune"`
}

// Channel is a token-guarded message box.
type Channel struct {
	ID          uint64
	AccountID   int64
	ExternalID  string
	PublicRead  bool
	PublicWrite bool
	Locked      bool
	Sequenced   bool
	Retention   Retention

	// HeadMessageSequence is the highest committed seq, 0 when empty. It is
	// computed on read.
	HeadMessageSequence uint64
	Tokens              []Token
}

// Token is a bearer credential scoped to one channel.
type Token struct {
	ID          uint64
	AccountID   int64
	ChannelID   uint64
	Token       string
	Description string
	CanRead     bool
	CanWrite    bool
	ValidFrom   time.Time
	ValidTo     *time.Time
}

// LiveAt reports whether the token is usable at now.
func (t Token) LiveAt(now time.Time) bool {
	return t.ValidTo == nil || !t.ValidTo.Before(now)
}

// Message is an immutable channel entry.
type Message struct {
	ID          uint64
	FromToken   uint64
	ChannelID   uint64
	Seq         uint64
	ReceivedAt  time.Time
	ContentType string
	Payload     []byte
}

// MessageView is the caller-facing projection of a message.
type MessageView struct {
	Sequence    uint64
	Received    time.Time
	ContentType string
	Payload     []byte
}

func (m Message) View() MessageView {
	return MessageView{Sequence: m.Seq, Received: m.ReceivedAt, ContentType: m.ContentType, Payload: m.Payload}
}

// MessageStatus is the per-recipient delivery state of a message.
type MessageStatus struct {
	ID        uint64
	MessageID uint64
	TokenID   uint64
	Seq       uint64
	IsRead    bool
	IsDeleted bool
}

// MessageMetadata describes a message without its payload.
type MessageMetadata struct {
	ID          uint64
	ChannelID   uint64
	FromToken   uint64
	Seq         uint64
	ContentType string
	ReceivedAt  time.Time
}

// OptionalSeq is a sequence number that may be absent. Valid is false when
// there is nothing to report, which is distinct from a present zero.
type OptionalSeq struct {
	Value uint64
	Valid bool
}

// MessagePage is the result of GetMessages.
type MessagePage struct {
	Messages    []MessageView
	MaxSequence OptionalSeq
}

// ChannelCreate carries the parameters of CreateChannel.
type ChannelCreate struct {
	PublicRead  bool
	PublicWrite bool
	Sequenced   bool
	Retention   Retention
}

// ChannelAmend is a partial update; nil fields are left unchanged.
type ChannelAmend struct {
	PublicRead  *bool
	PublicWrite *bool
	Locked      *bool
}

// TokenCreate carries the parameters of CreateToken.
type TokenCreate struct {
	Description string
	CanRead     bool
	CanWrite    bool
}

// NewMessage is the input of WriteMessage. A zero ReceivedAt is stamped with
// the store clock.
type NewMessage struct {
	ChannelID   uint64
	FromToken   uint64
	ContentType string
	Payload     []byte
	ReceivedAt  time.Time
}
