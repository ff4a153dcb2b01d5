package msgbox

import (
	"context"
	"fmt"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// WriteMessage appends a message to a channel and fans out one status row per
// live token. The channel lock is held from the flag checks through commit, so
// sequence assignment and the unread check are linearizable per channel. Any
// failure discards the whole batch.
func (s *Store) WriteMessage(ctx context.Context, in NewMessage) (uint64, MessageView, error) {
	unlock := s.locks.lock(in.ChannelID)
	defer unlock()

	var (
		msg        Message
		recipients int
	)
	err := s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		ch, ok, err := loadChannel(tx, in.ChannelID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("channel %d: %w", in.ChannelID, ErrNotFound)
		}
		if ch.Locked {
			return ErrChannelLocked
		}

		now := s.clock.Now()
		from, ok, err := loadToken(tx, in.FromToken)
		if err != nil {
			return err
		}
		if !ok || from.ChannelID != ch.ID || !from.liveAt(now) {
			return fmt.Errorf("token %d: %w", in.FromToken, ErrNotFound)
		}

		if ch.Sequenced {
			unread, err := unreadCount(tx, from.ID)
			if err != nil {
				return err
			}
			if unread > 0 {
				return ErrSequencingFailure
			}
		}

		head, err := headSequence(tx, ch.ID)
		if err != nil {
			return err
		}
		seq := head + 1
		if _, err := tx.Get(keyMessage(ch.ID, seq)); err == nil {
			return fmt.Errorf("%w: seq %d already present in channel %d", ErrInternalWrite, seq, ch.ID)
		} else if !pebblestore.IsNotFound(err) {
			return err
		}

		msgID, err := s.ids.next(kindMessage)
		if err != nil {
			return err
		}
		received := in.ReceivedAt
		if received.IsZero() {
			received = now
		}
		msg = Message{
			ID:          msgID,
			FromToken:   from.ID,
			ChannelID:   ch.ID,
			Seq:         seq,
			ReceivedAt:  received.UTC(),
			ContentType: in.ContentType,
			Payload:     in.Payload,
		}
		enc, err := encodeMessage(msg)
		if err != nil {
			return err
		}
		if err := tx.Set(keyMessage(ch.ID, seq), enc); err != nil {
			return err
		}
		if err := tx.Set(keyMessageID(msgID), withU64(nil, ch.ID, seq)); err != nil {
			return err
		}

		toks, err := channelTokens(tx, ch.ID)
		if err != nil {
			return err
		}
		for _, t := range toks {
			if !t.liveAt(now) {
				continue
			}
			statusID, err := s.ids.next(kindStatus)
			if err != nil {
				return err
			}
			var flags byte
			if t.ID == from.ID {
				flags = flagRead
			}
			st := statusRow{ID: statusID, MessageID: msgID, Flags: flags}
			if err := tx.Set(keyStatus(t.ID, seq), encodeStatus(st)); err != nil {
				return err
			}
			if err := tx.Set(keyMessageStatus(msgID, t.ID), nil); err != nil {
				return err
			}
			recipients++
		}
		if recipients == 0 {
			return fmt.Errorf("%w: no status rows for seq %d", ErrInternalWrite, seq)
		}
		return nil
	})
	if err != nil {
		return 0, MessageView{}, err
	}

	s.logger.Debug("wrote message",
		logpkg.Uint64("channel_id", msg.ChannelID),
		logpkg.Uint64("seq", msg.Seq),
		logpkg.Int("recipients", recipients))
	return msg.ID, msg.View(), nil
}

// unreadCount counts the token's status rows that are neither read nor
// deleted.
func unreadCount(r pebblestore.Reader, tokenID uint64) (int, error) {
	n := 0
	err := scanPrefix(r, prefixTokenStatus(tokenID), func(_, v []byte) error {
		st, err := decodeStatus(v)
		if err != nil {
			return err
		}
		if !st.read() && !st.deleted() {
			n++
		}
		return nil
	})
	return n, err
}
