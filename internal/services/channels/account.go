package channelsvc

import (
	"context"

	"github.com/rzbill/peerchan/internal/msgbox"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Account-scoped operations. The account id is trusted from the upstream
// gateway; a channel owned by another account is reported as missing.

// CreateChannel creates a channel for the account, enforcing its channel
// limit.
func (s *Service) CreateChannel(ctx context.Context, accountID int64, p msgbox.ChannelCreate) (msgbox.Channel, error) {
	meta, err := s.rt.EnsureAccount(accountID)
	if err != nil {
		return msgbox.Channel{}, err
	}
	if meta.MaxChannels > 0 {
		owned, err := s.store.ListChannels(ctx, accountID)
		if err != nil {
			return msgbox.Channel{}, err
		}
		if err := meta.CheckChannelQuota(len(owned)); err != nil {
			return msgbox.Channel{}, err
		}
	}
	return s.store.CreateChannel(ctx, accountID, p)
}

// ListChannels returns the account's channels.
func (s *Service) ListChannels(ctx context.Context, accountID int64) ([]msgbox.Channel, error) {
	return s.store.ListChannels(ctx, accountID)
}

// GetChannel returns one of the account's channels.
func (s *Service) GetChannel(ctx context.Context, accountID int64, externalID string) (msgbox.Channel, error) {
	ch, ok, err := s.store.GetChannel(ctx, accountID, externalID)
	if err != nil {
		return msgbox.Channel{}, err
	}
	if !ok {
		return msgbox.Channel{}, msgbox.ErrNotFound
	}
	return ch, nil
}

// AmendChannel updates the channel flags.
func (s *Service) AmendChannel(ctx context.Context, accountID int64, externalID string, a msgbox.ChannelAmend) (msgbox.Channel, error) {
	if _, err := s.GetChannel(ctx, accountID, externalID); err != nil {
		return msgbox.Channel{}, err
	}
	ch, ok, err := s.store.AmendChannel(ctx, externalID, a)
	if err != nil {
		return msgbox.Channel{}, err
	}
	if !ok {
		return msgbox.Channel{}, msgbox.ErrNotFound
	}
	return ch, nil
}

// DeleteChannel removes the channel and disconnects its subscribers.
func (s *Service) DeleteChannel(ctx context.Context, accountID int64, externalID string) error {
	if _, err := s.GetChannel(ctx, accountID, externalID); err != nil {
		return err
	}
	ok, err := s.store.DeleteChannel(ctx, externalID)
	if err != nil {
		return err
	}
	if !ok {
		return msgbox.ErrNotFound
	}
	live := s.hub.Count(externalID)
	s.hub.CloseChannel(externalID, notifyChannelDeleted)
	s.logger.Info("channel deleted",
		logpkg.Str("channel_id", externalID),
		logpkg.Int64("account_id", accountID),
		logpkg.Int("subscribers_closed", live))
	return nil
}

// CreateToken issues a token on the account's channel.
func (s *Service) CreateToken(ctx context.Context, accountID int64, externalID string, p msgbox.TokenCreate) (msgbox.Token, error) {
	ch, err := s.GetChannel(ctx, accountID, externalID)
	if err != nil {
		return msgbox.Token{}, err
	}
	return s.store.CreateToken(ctx, ch.ID, accountID, p)
}

// ListTokens returns the channel's live tokens, optionally only the one
// matching token.
func (s *Service) ListTokens(ctx context.Context, accountID int64, externalID, token string) ([]msgbox.Token, error) {
	if _, err := s.GetChannel(ctx, accountID, externalID); err != nil {
		return nil, err
	}
	return s.store.ListTokens(ctx, externalID, token)
}

// GetToken returns a live token of the channel.
func (s *Service) GetToken(ctx context.Context, accountID int64, externalID string, tokenID uint64) (msgbox.Token, error) {
	ch, err := s.GetChannel(ctx, accountID, externalID)
	if err != nil {
		return msgbox.Token{}, err
	}
	tok, ok, err := s.store.GetTokenByID(ctx, tokenID)
	if err != nil {
		return msgbox.Token{}, err
	}
	if !ok || tok.ChannelID != ch.ID {
		return msgbox.Token{}, msgbox.ErrNotFound
	}
	return tok, nil
}

// RevokeToken expires a token of the channel.
func (s *Service) RevokeToken(ctx context.Context, accountID int64, externalID string, tokenID uint64) error {
	if _, err := s.GetToken(ctx, accountID, externalID, tokenID); err != nil {
		return err
	}
	return s.store.RevokeToken(ctx, tokenID)
}
