package msgbox

import (
	"context"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// ResolveToken maps a bearer string to its live token. Expired tokens are
// reported as absent even though their rows remain.
func (s *Store) ResolveToken(ctx context.Context, token string) (Token, bool, error) {
	if token == "" {
		return Token{}, false, nil
	}
	now := s.clock.Now()
	var (
		out   Token
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		tokID, ok, err := getU64(r, keyTokenString(token))
		if err != nil || !ok {
			return err
		}
		row, ok, err := loadToken(r, tokID)
		if err != nil || !ok || !row.liveAt(now) {
			return err
		}
		out, found = row.token(), true
		return nil
	})
	return out, found, err
}

// GetTokenByID returns a live token by internal id.
func (s *Store) GetTokenByID(ctx context.Context, tokenID uint64) (Token, bool, error) {
	now := s.clock.Now()
	var (
		out   Token
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		row, ok, err := loadToken(r, tokenID)
		if err != nil || !ok || !row.liveAt(now) {
			return err
		}
		out, found = row.token(), true
		return nil
	})
	return out, found, err
}

// Authorize reports whether the token belongs to the channel.
func (s *Store) Authorize(ctx context.Context, externalID string, tokenID uint64) (bool, error) {
	var allowed bool
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		chID, ok, err := channelIDByExternal(r, externalID)
		if err != nil || !ok {
			return err
		}
		row, ok, err := loadToken(r, tokenID)
		if err != nil || !ok {
			return err
		}
		allowed = row.ChannelID == chID
		return nil
	})
	return allowed, err
}

// RevokeToken expires a token by setting its ValidTo to now. Revoking an
// already expired token keeps its original ValidTo.
func (s *Store) RevokeToken(ctx context.Context, tokenID uint64) error {
	row, ok, err := loadToken(s.db, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	unlock := s.locks.lock(row.ChannelID)
	defer unlock()

	var revoked bool
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		row, ok, err := loadToken(tx, tokenID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		if row.ValidToNs != nil {
			return nil
		}
		now := s.clock.Now().UnixNano()
		row.ValidToNs = &now
		revoked = true
		return putJSON(tx, keyToken(tokenID), row)
	})
	if err == nil && revoked {
		s.logger.Info("token revoked", logpkg.Uint64("token_id", tokenID), logpkg.Uint64("channel_id", row.ChannelID))
	}
	return err
}

// CreateToken issues a new token on the channel. Tokens only receive status
// rows for messages written after they exist.
func (s *Store) CreateToken(ctx context.Context, channelID uint64, accountID int64, p TokenCreate) (Token, error) {
	tokenString, err := s.newToken()
	if err != nil {
		return Token{}, err
	}
	unlock := s.locks.lock(channelID)
	defer unlock()

	var row tokenRow
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		if _, ok, err := loadChannel(tx, channelID); err != nil {
			return err
		} else if !ok {
			return ErrNotFound
		}
		tokID, err := s.ids.next(kindToken)
		if err != nil {
			return err
		}
		row = tokenRow{
			ID:          tokID,
			AccountID:   accountID,
			ChannelID:   channelID,
			Token:       tokenString,
			Description: p.Description,
			CanRead:     p.CanRead,
			CanWrite:    p.CanWrite,
			ValidFromNs: s.clock.Now().UnixNano(),
		}
		return s.putToken(tx, row)
	})
	if err != nil {
		return Token{}, err
	}
	return row.token(), nil
}

// ListTokens returns the live tokens of a channel, optionally narrowed to a
// single token string.
func (s *Store) ListTokens(ctx context.Context, externalID string, token string) ([]Token, error) {
	now := s.clock.Now()
	var out []Token
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		chID, ok, err := channelIDByExternal(r, externalID)
		if err != nil || !ok {
			return err
		}
		rows, err := channelTokens(r, chID)
		if err != nil {
			return err
		}
		for _, t := range rows {
			if !t.liveAt(now) || (token != "" && t.Token != token) {
				continue
			}
			out = append(out, t.token())
		}
		return nil
	})
	return out, err
}
