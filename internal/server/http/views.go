package httpserver

import (
	"encoding/json"
	"mime"
	"strings"
	"time"

	"github.com/rzbill/peerchan/internal/msgbox"
)

type retentionView struct {
	MinAgeDays int  `json:"min_age_days"`
	MaxAgeDays int  `json:"max_age_days"`
	AutoPrune  bool `json:"auto_prune"`
}

type tokenView struct {
	ID          uint64 `json:"id"`
	Token       string `json:"token"`
	Description string `json:"description"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

type channelView struct {
	ID           string        `json:"id"`
	Href         string        `json:"href"`
	PublicRead   bool          `json:"public_read"`
	PublicWrite  bool          `json:"public_write"`
	Sequenced    bool          `json:"sequenced"`
	Locked       bool          `json:"locked"`
	Head         uint64        `json:"head_sequence"`
	Retention    retentionView `json:"retention"`
	AccessTokens []tokenView   `json:"access_tokens"`
}

type messageView struct {
	Sequence    uint64          `json:"sequence"`
	Received    string          `json:"received"`
	ContentType string          `json:"content_type"`
	Payload     json.RawMessage `json:"payload"`
}

func toTokenView(t msgbox.Token) tokenView {
	return tokenView{ID: t.ID, Token: t.Token, Description: t.Description, CanRead: t.CanRead, CanWrite: t.CanWrite}
}

func toChannelView(ch msgbox.Channel) channelView {
	v := channelView{
		ID:          ch.ExternalID,
		Href:        "/api/v1/channel/" + ch.ExternalID,
		PublicRead:  ch.PublicRead,
		PublicWrite: ch.PublicWrite,
		Sequenced:   ch.Sequenced,
		Locked:      ch.Locked,
		Head:        ch.HeadMessageSequence,
		Retention: retentionView{
			MinAgeDays: ch.Retention.MinAgeDays,
			MaxAgeDays: ch.Retention.MaxAgeDays,
			AutoPrune:  ch.Retention.AutoPrune,
		},
		AccessTokens: []tokenView{},
	}
	now := time.Now()
	for _, t := range ch.Tokens {
		if t.LiveAt(now) {
			v.AccessTokens = append(v.AccessTokens, toTokenView(t))
		}
	}
	return v
}

// toMessageView embeds JSON payloads as-is and base64-encodes anything else.
func toMessageView(m msgbox.MessageView) messageView {
	v := messageView{
		Sequence:    m.Sequence,
		Received:    m.Received.UTC().Format(time.RFC3339Nano),
		ContentType: m.ContentType,
	}
	if isJSON(m.ContentType) && json.Valid(m.Payload) {
		v.Payload = json.RawMessage(m.Payload)
		return v
	}
	enc, _ := json.Marshal(m.Payload)
	v.Payload = enc
	return v
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

type createChannelRequest struct {
	PublicRead  bool          `json:"public_read"`
	PublicWrite bool          `json:"public_write"`
	Sequenced   bool          `json:"sequenced"`
	Retention   retentionView `json:"retention"`
}

type amendChannelRequest struct {
	PublicRead  *bool `json:"public_read"`
	PublicWrite *bool `json:"public_write"`
	Locked      *bool `json:"locked"`
}

type createTokenRequest struct {
	Description string `json:"description"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

type markRequest struct {
	Read bool `json:"read"`
}
