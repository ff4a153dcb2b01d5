package msgbox

import (
	"context"
	"fmt"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

const ownerTokenDescription = "Owner"

// externalIDAttempts bounds retries on a generated external id collision.
const externalIDAttempts = 3

func validateRetention(r Retention) error {
	if r.MinAgeDays < 0 || r.MaxAgeDays < 0 {
		return fmt.Errorf("%w: negative age", ErrInvalidRetention)
	}
	if r.MinAgeDays > 0 && r.MaxAgeDays > 0 && r.MinAgeDays > r.MaxAgeDays {
		return fmt.Errorf("%w: min age %d exceeds max age %d", ErrInvalidRetention, r.MinAgeDays, r.MaxAgeDays)
	}
	return nil
}

// CreateChannel creates a channel and its owner token in one transaction.
func (s *Store) CreateChannel(ctx context.Context, accountID int64, p ChannelCreate) (Channel, error) {
	if err := validateRetention(p.Retention); err != nil {
		return Channel{}, err
	}
	chID, err := s.ids.next(kindChannel)
	if err != nil {
		return Channel{}, err
	}
	tokID, err := s.ids.next(kindToken)
	if err != nil {
		return Channel{}, err
	}
	tokenString, err := s.newToken()
	if err != nil {
		return Channel{}, err
	}

	row := channelRow{
		ID:          chID,
		AccountID:   accountID,
		PublicRead:  p.PublicRead,
		PublicWrite: p.PublicWrite,
		Sequenced:   p.Sequenced,
		Retention:   p.Retention,
	}
	owner := tokenRow{
		ID:          tokID,
		AccountID:   accountID,
		ChannelID:   chID,
		Token:       tokenString,
		Description: ownerTokenDescription,
		CanRead:     true,
		CanWrite:    true,
		ValidFromNs: s.clock.Now().UnixNano(),
	}

	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		for attempt := 0; ; attempt++ {
			ext, err := s.newExternalID()
			if err != nil {
				return err
			}
			_, taken, err := channelIDByExternal(tx, ext)
			if err != nil {
				return err
			}
			if !taken {
				row.ExternalID = ext
				break
			}
			if attempt+1 >= externalIDAttempts {
				return fmt.Errorf("%w: external id collision", ErrInternalWrite)
			}
		}
		if err := putJSON(tx, keyChannel(chID), row); err != nil {
			return err
		}
		if err := tx.Set(keyExternal(row.ExternalID), appendBE8(nil, chID)); err != nil {
			return err
		}
		if err := tx.Set(keyAccountChannel(uint64(accountID), chID), nil); err != nil {
			return err
		}
		return s.putToken(tx, owner)
	})
	if err != nil {
		return Channel{}, err
	}

	s.logger.Info("channel created",
		logpkg.Str("external_id", row.ExternalID),
		logpkg.Int64("account_id", accountID),
		logpkg.Bool("sequenced", row.Sequenced))
	ch := row.channel()
	ch.Tokens = []Token{owner.token()}
	return ch, nil
}

func (s *Store) putToken(tx *pebblestore.Txn, t tokenRow) error {
	if err := putJSON(tx, keyToken(t.ID), t); err != nil {
		return err
	}
	if err := tx.Set(keyTokenString(t.Token), appendBE8(nil, t.ID)); err != nil {
		return err
	}
	return tx.Set(keyChannelToken(t.ChannelID, t.ID), nil)
}

// GetChannel returns the channel owned by accountID, including all of its
// token rows and the computed head sequence.
func (s *Store) GetChannel(ctx context.Context, accountID int64, externalID string) (Channel, bool, error) {
	var (
		ch    Channel
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		row, ok, err := loadChannelByExternal(r, externalID)
		if err != nil || !ok || row.AccountID != accountID {
			return err
		}
		ch, err = hydrateChannel(r, row)
		found = err == nil
		return err
	})
	return ch, found, err
}

// ChannelByExternalID looks a channel up without account scoping.
func (s *Store) ChannelByExternalID(ctx context.Context, externalID string) (Channel, bool, error) {
	var (
		ch    Channel
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		row, ok, err := loadChannelByExternal(r, externalID)
		if err != nil || !ok {
			return err
		}
		ch, err = hydrateChannel(r, row)
		found = err == nil
		return err
	})
	return ch, found, err
}

// ListChannels returns every channel of the account in creation order.
func (s *Store) ListChannels(ctx context.Context, accountID int64) ([]Channel, error) {
	var out []Channel
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		var ids []uint64
		err := scanPrefix(r, prefixAccountChannels(uint64(accountID)), func(k, _ []byte) error {
			ids = append(ids, lastU64(k))
			return nil
		})
		if err != nil {
			return err
		}
		for _, chID := range ids {
			row, ok, err := loadChannel(r, chID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ch, err := hydrateChannel(r, row)
			if err != nil {
				return err
			}
			out = append(out, ch)
		}
		return nil
	})
	return out, err
}

// AmendChannel applies a partial update to the flags. It reports false when
// no channel matched.
func (s *Store) AmendChannel(ctx context.Context, externalID string, a ChannelAmend) (Channel, bool, error) {
	chID, ok, err := channelIDByExternal(s.db, externalID)
	if err != nil || !ok {
		return Channel{}, false, err
	}
	unlock := s.locks.lock(chID)
	defer unlock()

	var (
		ch    Channel
		found bool
	)
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		row, ok, err := loadChannel(tx, chID)
		if err != nil || !ok {
			return err
		}
		if a.PublicRead != nil {
			row.PublicRead = *a.PublicRead
		}
		if a.PublicWrite != nil {
			row.PublicWrite = *a.PublicWrite
		}
		if a.Locked != nil {
			row.Locked = *a.Locked
		}
		if err := putJSON(tx, keyChannel(chID), row); err != nil {
			return err
		}
		ch, err = hydrateChannel(tx, row)
		found = err == nil
		return err
	})
	if err != nil {
		return Channel{}, false, err
	}
	return ch, found, nil
}

// DeleteChannel removes the channel with its status rows, messages, and
// tokens, in that order, in one transaction.
func (s *Store) DeleteChannel(ctx context.Context, externalID string) (bool, error) {
	chID, ok, err := channelIDByExternal(s.db, externalID)
	if err != nil || !ok {
		return false, err
	}
	unlock := s.locks.lock(chID)
	defer unlock()

	var deleted bool
	var counts struct{ statuses, messages, tokens int }
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		row, ok, err := loadChannel(tx, chID)
		if err != nil || !ok {
			return err
		}
		toks, err := channelTokens(tx, chID)
		if err != nil {
			return err
		}

		for _, t := range toks {
			var seqs []uint64
			var msgIDs []uint64
			err := scanPrefix(tx, prefixTokenStatus(t.ID), func(k, v []byte) error {
				st, err := decodeStatus(v)
				if err != nil {
					return err
				}
				seqs = append(seqs, lastU64(k))
				msgIDs = append(msgIDs, st.MessageID)
				return nil
			})
			if err != nil {
				return err
			}
			for i := range seqs {
				if err := tx.Delete(keyStatus(t.ID, seqs[i])); err != nil {
					return err
				}
				if err := tx.Delete(keyMessageStatus(msgIDs[i], t.ID)); err != nil {
					return err
				}
				counts.statuses++
			}
		}

		var msgs []Message
		err = scanPrefix(tx, prefixChannelMessages(chID), func(k, v []byte) error {
			m, err := decodeMessage(chID, lastU64(k), v)
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
			return nil
		})
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := tx.Delete(keyMessage(chID, m.Seq)); err != nil {
				return err
			}
			if err := tx.Delete(keyMessageID(m.ID)); err != nil {
				return err
			}
			counts.messages++
		}

		for _, t := range toks {
			for _, k := range [][]byte{keyToken(t.ID), keyTokenString(t.Token), keyChannelToken(chID, t.ID)} {
				if err := tx.Delete(k); err != nil {
					return err
				}
			}
			counts.tokens++
		}

		for _, k := range [][]byte{keyChannel(chID), keyExternal(row.ExternalID), keyAccountChannel(uint64(row.AccountID), chID)} {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("channel deleted",
			logpkg.Str("external_id", externalID),
			logpkg.Int("statuses", counts.statuses),
			logpkg.Int("messages", counts.messages),
			logpkg.Int("tokens", counts.tokens))
	}
	return deleted, nil
}
