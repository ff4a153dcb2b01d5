package channelsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/peerchan/internal/msgbox"
	"github.com/rzbill/peerchan/internal/notify"
	"github.com/rzbill/peerchan/internal/runtime"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Service is the transport-facing facade over the message-box store. It
// resolves bearer tokens, enforces channel permissions and request limits,
// and publishes a notification after every committed write.
type Service struct {
	rt     *runtime.Runtime
	store  *msgbox.Store
	pub    *notify.Publisher
	hub    *notify.Hub
	logger logpkg.Logger
}

// New returns a Service using the runtime logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, rt.Logger().With(logpkg.Component("channels")))
}

// NewWithLogger returns a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	return &Service{rt: rt, store: rt.Store(), pub: rt.Publisher(), hub: rt.Hub(), logger: logger}
}

// Access is the permission a bearer operation needs.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

// Caller is an authorized bearer on one channel.
type Caller struct {
	Channel msgbox.Channel
	Token   msgbox.Token
}

// Authorize resolves bearer and checks it against the channel. Public flags
// widen what any live channel token may do.
func (s *Service) Authorize(ctx context.Context, externalID, bearer string, need Access) (Caller, error) {
	ch, ok, err := s.store.ChannelByExternalID(ctx, externalID)
	if err != nil {
		return Caller{}, err
	}
	if !ok {
		return Caller{}, msgbox.ErrNotFound
	}
	tok, ok, err := s.store.ResolveToken(ctx, bearer)
	if err != nil {
		return Caller{}, err
	}
	if !ok {
		return Caller{}, ErrUnauthorized
	}
	member, err := s.store.Authorize(ctx, externalID, tok.ID)
	if err != nil {
		return Caller{}, err
	}
	if !member {
		return Caller{}, ErrUnauthorized
	}
	switch need {
	case AccessRead:
		if !tok.CanRead && !ch.PublicRead {
			return Caller{}, ErrUnauthorized
		}
	case AccessWrite:
		if !tok.CanWrite && !ch.PublicWrite {
			return Caller{}, ErrUnauthorized
		}
	}
	return Caller{Channel: ch, Token: tok}, nil
}

// WriteMessage appends payload to the channel as the bearer and notifies
// subscribers once the write has committed.
func (s *Service) WriteMessage(ctx context.Context, externalID, bearer, contentType string, payload []byte) (msgbox.MessageView, error) {
	cfg := s.rt.Config()
	if int64(len(payload)) > cfg.MaxPayload.Int64() {
		return msgbox.MessageView{}, fmt.Errorf("%w: %d bytes, limit %s", ErrPayloadTooLarge, len(payload), cfg.MaxPayload)
	}
	if !cfg.ContentTypeAllowed(contentType) {
		return msgbox.MessageView{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	c, err := s.Authorize(ctx, externalID, bearer, AccessWrite)
	if err != nil {
		return msgbox.MessageView{}, err
	}
	_, view, err := s.store.WriteMessage(ctx, msgbox.NewMessage{
		ChannelID:   c.Channel.ID,
		FromToken:   c.Token.ID,
		ContentType: contentType,
		Payload:     payload,
	})
	if err != nil {
		return msgbox.MessageView{}, err
	}
	s.pub.Publish(notify.Event{
		ChannelID:   externalID,
		Sequence:    view.Sequence,
		Received:    view.Received,
		ContentType: view.ContentType,
	})
	return view, nil
}

// ReadMessages lists the bearer's messages, optionally only unread ones.
func (s *Service) ReadMessages(ctx context.Context, externalID, bearer string, onlyUnread bool) (msgbox.MessagePage, error) {
	c, err := s.Authorize(ctx, externalID, bearer, AccessRead)
	if err != nil {
		return msgbox.MessagePage{}, err
	}
	page, ok, err := s.store.GetMessages(ctx, c.Token.ID, onlyUnread)
	if err != nil {
		return msgbox.MessagePage{}, err
	}
	if !ok {
		return msgbox.MessagePage{}, msgbox.ErrNotFound
	}
	return page, nil
}

// GetMessage returns one message with its payload.
func (s *Service) GetMessage(ctx context.Context, externalID, bearer string, seq uint64) (msgbox.MessageView, error) {
	c, err := s.Authorize(ctx, externalID, bearer, AccessRead)
	if err != nil {
		return msgbox.MessageView{}, err
	}
	view, ok, err := s.store.GetMessage(ctx, externalID, c.Token.ID, seq)
	if err != nil {
		return msgbox.MessageView{}, err
	}
	if !ok {
		return msgbox.MessageView{}, msgbox.ErrNotFound
	}
	return view, nil
}

// MaxSequence returns the ETag value for HEAD requests.
func (s *Service) MaxSequence(ctx context.Context, externalID, bearer string) (uint64, error) {
	if _, err := s.Authorize(ctx, externalID, bearer, AccessRead); err != nil {
		return 0, err
	}
	return s.store.GetMaxSequence(ctx, bearer, externalID)
}

// MarkMessages sets the bearer's read flag at seq, and below it when older
// is set.
func (s *Service) MarkMessages(ctx context.Context, externalID, bearer string, seq uint64, older, read bool) error {
	c, err := s.Authorize(ctx, externalID, bearer, AccessRead)
	if err != nil {
		return err
	}
	exists, err := s.store.SequenceExists(ctx, c.Token.ID, seq)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("sequence %d: %w", seq, msgbox.ErrNotFound)
	}
	_, err = s.store.MarkMessages(ctx, externalID, c.Token.ID, seq, older, read)
	return err
}

// DeleteMessage soft-deletes the message at seq for every recipient. The
// channel's MinAgeDays protects recent messages.
func (s *Service) DeleteMessage(ctx context.Context, externalID, bearer string, seq uint64) error {
	c, err := s.Authorize(ctx, externalID, bearer, AccessRead)
	if err != nil {
		return err
	}
	if ok, err := s.store.SequenceExists(ctx, c.Token.ID, seq); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("sequence %d: %w", seq, msgbox.ErrNotFound)
	}
	md, ok, err := s.store.GetMessageMetadata(ctx, externalID, seq)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sequence %d: %w", seq, msgbox.ErrNotFound)
	}
	if minAge := c.Channel.Retention.MinAgeDays; minAge > 0 {
		if s.store.Now().Sub(md.ReceivedAt) < time.Duration(minAge)*24*time.Hour {
			return ErrRetentionMinAge
		}
	}
	if _, err := s.store.DeleteMessage(ctx, md.ID); err != nil {
		return err
	}
	s.logger.Debug("message deleted", logpkg.Str("channel_id", externalID), logpkg.Uint64("seq", seq))
	return nil
}

// Subscribe attaches conn to the channel's notification stream after
// checking read access. The returned id is released with Unsubscribe.
func (s *Service) Subscribe(ctx context.Context, externalID, bearer string, conn notify.Conn, filterExpr string) (string, error) {
	if _, err := s.Authorize(ctx, externalID, bearer, AccessRead); err != nil {
		return "", err
	}
	f, err := notify.NewFilter(filterExpr)
	if err != nil {
		return "", fmt.Errorf("filter: %w", err)
	}
	return s.hub.Subscribe(externalID, conn, f)
}

var notifyChannelDeleted = notify.WebsocketError{Reason: "channel deleted", StatusCode: 404}

// Unsubscribe drops a subscriber. It has no storage effect.
func (s *Service) Unsubscribe(subscriberID string) { s.hub.Remove(subscriberID) }
