package msgbox

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
)

func loadMessage(r pebblestore.Reader, channelID, seq uint64) (Message, bool, error) {
	b, err := r.Get(keyMessage(channelID, seq))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	m, err := decodeMessage(channelID, seq, b)
	if err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}

func loadStatus(r pebblestore.Reader, tokenID, seq uint64) (statusRow, bool, error) {
	b, err := r.Get(keyStatus(tokenID, seq))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return statusRow{}, false, nil
		}
		return statusRow{}, false, err
	}
	st, err := decodeStatus(b)
	return st, err == nil, err
}

// hasLiveStatus reports whether any recipient still has the message
// undeleted.
func hasLiveStatus(r pebblestore.Reader, msgID, seq uint64) (bool, error) {
	live := false
	err := scanPrefix(r, prefixMessageStatus(msgID), func(k, _ []byte) error {
		st, ok, err := loadStatus(r, lastU64(k), seq)
		if err != nil {
			return err
		}
		if ok && !st.deleted() {
			live = true
			return errStopScan
		}
		return nil
	})
	if err == errStopScan {
		err = nil
	}
	return live, err
}

// GetMessages returns the token's non-deleted messages in seq order, or only
// the unread ones. MaxSequence is the highest seq the token still holds a
// non-deleted status row for; it is absent when there is none. The bool is
// false for an unknown token, and for an unsequenced channel when the store
// runs with SequencedReadsOnly.
func (s *Store) GetMessages(ctx context.Context, tokenID uint64, onlyUnread bool) (MessagePage, bool, error) {
	var (
		page  MessagePage
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		tok, ok, err := loadToken(r, tokenID)
		if err != nil || !ok {
			return err
		}
		ch, ok, err := loadChannel(r, tok.ChannelID)
		if err != nil || !ok {
			return err
		}
		if s.sequencedReadsOnly && !ch.Sequenced {
			return nil
		}
		found = true

		var want []uint64
		err = scanPrefix(r, prefixTokenStatus(tokenID), func(k, v []byte) error {
			st, err := decodeStatus(v)
			if err != nil {
				return err
			}
			if st.deleted() {
				return nil
			}
			seq := lastU64(k)
			page.MaxSequence = OptionalSeq{Value: seq, Valid: true}
			if onlyUnread && st.read() {
				return nil
			}
			want = append(want, seq)
			return nil
		})
		if err != nil {
			return err
		}
		page.Messages = make([]MessageView, 0, len(want))
		for _, seq := range want {
			m, ok, err := loadMessage(r, ch.ID, seq)
			if err != nil {
				return err
			}
			if ok {
				page.Messages = append(page.Messages, m.View())
			}
		}
		return nil
	})
	if err != nil {
		return MessagePage{}, false, err
	}
	return page, found, nil
}

// MarkMessages sets the read flag of the token's status row at seq, and of all
// older rows when markOlder is set. It returns the number of rows matched; a
// token outside the channel matches nothing.
func (s *Store) MarkMessages(ctx context.Context, externalID string, tokenID uint64, seq uint64, markOlder bool, setReadTo bool) (int, error) {
	chID, ok, err := channelIDByExternal(s.db, externalID)
	if err != nil || !ok {
		return 0, err
	}
	unlock := s.locks.lock(chID)
	defer unlock()

	matched := 0
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		tok, ok, err := loadToken(tx, tokenID)
		if err != nil || !ok || tok.ChannelID != chID {
			return err
		}
		apply := func(k []byte, st statusRow) error {
			matched++
			flags := setFlag(st.Flags, flagRead, setReadTo)
			if flags == st.Flags {
				return nil
			}
			st.Flags = flags
			return tx.Set(k, encodeStatus(st))
		}
		if !markOlder {
			st, ok, err := loadStatus(tx, tokenID, seq)
			if err != nil || !ok {
				return err
			}
			return apply(keyStatus(tokenID, seq), st)
		}

		type row struct {
			key []byte
			st  statusRow
		}
		var rows []row
		err = scanRange(tx, prefixTokenStatus(tokenID), keyStatus(tokenID, seq+1), func(k, v []byte) error {
			st, err := decodeStatus(v)
			if err != nil {
				return err
			}
			rows = append(rows, row{key: append([]byte(nil), k...), st: st})
			return nil
		})
		if err != nil {
			return err
		}
		for _, rw := range rows {
			if err := apply(rw.key, rw.st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// DeleteMessage soft-deletes a message for every recipient. It reports
// whether any status row was affected.
func (s *Store) DeleteMessage(ctx context.Context, messageID uint64) (bool, error) {
	loc, err := s.db.Get(keyMessageID(messageID))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if len(loc) != 16 {
		return false, fmt.Errorf("msgbox: corrupt message location for %d", messageID)
	}
	chID, seq := be8(loc[:8]), be8(loc[8:])
	unlock := s.locks.lock(chID)
	defer unlock()

	affected := 0
	err = s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		n, _, err := softDelete(tx, messageID, seq)
		affected = n
		return err
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// softDelete flags every status row of the message as deleted. It returns the
// rows matched and the rows that changed.
func softDelete(tx *pebblestore.Txn, messageID, seq uint64) (matched, changed int, err error) {
	var toks []uint64
	err = scanPrefix(tx, prefixMessageStatus(messageID), func(k, _ []byte) error {
		toks = append(toks, lastU64(k))
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	for _, tokID := range toks {
		st, ok, err := loadStatus(tx, tokID, seq)
		if err != nil {
			return matched, changed, err
		}
		if !ok {
			continue
		}
		matched++
		if st.deleted() {
			continue
		}
		st.Flags = setFlag(st.Flags, flagDeleted, true)
		if err := tx.Set(keyStatus(tokID, seq), encodeStatus(st)); err != nil {
			return matched, changed, err
		}
		changed++
	}
	return matched, changed, nil
}

// GetMessageMetadata describes the message at seq, provided at least one
// recipient has not deleted it.
func (s *Store) GetMessageMetadata(ctx context.Context, externalID string, seq uint64) (MessageMetadata, bool, error) {
	var (
		md    MessageMetadata
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		chID, ok, err := channelIDByExternal(r, externalID)
		if err != nil || !ok {
			return err
		}
		m, ok, err := loadMessage(r, chID, seq)
		if err != nil || !ok {
			return err
		}
		live, err := hasLiveStatus(r, m.ID, seq)
		if err != nil || !live {
			return err
		}
		md = MessageMetadata{
			ID:          m.ID,
			ChannelID:   chID,
			FromToken:   m.FromToken,
			Seq:         m.Seq,
			ContentType: m.ContentType,
			ReceivedAt:  m.ReceivedAt,
		}
		found = true
		return nil
	})
	return md, found, err
}

// SequenceExists reports whether the token has a status row at seq.
func (s *Store) SequenceExists(ctx context.Context, tokenID uint64, seq uint64) (bool, error) {
	var exists bool
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		_, ok, err := loadStatus(r, tokenID, seq)
		exists = ok
		return err
	})
	return exists, err
}

// GetMaxSequence returns the highest seq on a sequenced channel that was
// written by someone other than token and is still undeleted for at least one
// recipient. It is 0 for unsequenced channels and unknown tokens.
func (s *Store) GetMaxSequence(ctx context.Context, token string, externalID string) (uint64, error) {
	tok, ok, err := s.ResolveToken(ctx, token)
	if err != nil || !ok {
		return 0, err
	}
	var max uint64
	err = s.db.View(ctx, func(r pebblestore.Reader) error {
		ch, ok, err := loadChannelByExternal(r, externalID)
		if err != nil || !ok || !ch.Sequenced {
			return err
		}
		prefix := prefixChannelMessages(ch.ID)
		it, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
		if err != nil {
			return err
		}
		defer it.Close()
		for valid := it.Last(); valid; valid = it.Prev() {
			seq := lastU64(it.Key())
			m, err := decodeMessage(ch.ID, seq, it.Value())
			if err != nil {
				return err
			}
			if m.FromToken == tok.ID {
				continue
			}
			live, err := hasLiveStatus(r, m.ID, seq)
			if err != nil {
				return err
			}
			if live {
				max = seq
				return nil
			}
		}
		return it.Error()
	})
	return max, err
}

// GetMessage returns the message at seq if the token holds an undeleted
// status row for it.
func (s *Store) GetMessage(ctx context.Context, externalID string, tokenID uint64, seq uint64) (MessageView, bool, error) {
	var (
		view  MessageView
		found bool
	)
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		chID, ok, err := channelIDByExternal(r, externalID)
		if err != nil || !ok {
			return err
		}
		st, ok, err := loadStatus(r, tokenID, seq)
		if err != nil || !ok || st.deleted() {
			return err
		}
		m, ok, err := loadMessage(r, chID, seq)
		if err != nil || !ok || m.ID != st.MessageID {
			return err
		}
		view, found = m.View(), true
		return nil
	})
	return view, found, err
}

// MessageStatuses returns the per-recipient status rows of a message,
// including rows of tokens that have since expired.
func (s *Store) MessageStatuses(ctx context.Context, messageID uint64) ([]MessageStatus, error) {
	var out []MessageStatus
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		loc, err := r.Get(keyMessageID(messageID))
		if err != nil {
			if pebblestore.IsNotFound(err) {
				return nil
			}
			return err
		}
		if len(loc) != 16 {
			return fmt.Errorf("msgbox: corrupt message location for %d", messageID)
		}
		seq := be8(loc[8:])
		return scanPrefix(r, prefixMessageStatus(messageID), func(k, _ []byte) error {
			tokID := lastU64(k)
			st, ok, err := loadStatus(r, tokID, seq)
			if err != nil || !ok {
				return err
			}
			out = append(out, MessageStatus{
				ID:        st.ID,
				MessageID: messageID,
				TokenID:   tokID,
				Seq:       seq,
				IsRead:    st.read(),
				IsDeleted: st.deleted(),
			})
			return nil
		})
	})
	return out, err
}
