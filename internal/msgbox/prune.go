package msgbox

import (
	"context"
	"encoding/json"
	"time"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// PruneCandidates returns the channels whose retention policy asks for
// automatic pruning.
func (s *Store) PruneCandidates(ctx context.Context) ([]Channel, error) {
	var out []Channel
	err := s.db.View(ctx, func(r pebblestore.Reader) error {
		return scanPrefix(r, pfxChannel, func(_, v []byte) error {
			var row channelRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.Retention.AutoPrune && row.Retention.MaxAgeDays > 0 {
				out = append(out, row.channel())
			}
			return nil
		})
	})
	return out, err
}

// PruneChannel soft-deletes, for every recipient, the channel's messages
// received before cutoff. Rows are never physically removed. It returns the
// number of messages newly deleted.
func (s *Store) PruneChannel(ctx context.Context, channelID uint64, cutoff time.Time) (int, error) {
	unlock := s.locks.lock(channelID)
	defer unlock()

	pruned := 0
	err := s.db.Update(ctx, func(tx *pebblestore.Txn) error {
		var msgs []Message
		err := scanPrefix(tx, prefixChannelMessages(channelID), func(k, v []byte) error {
			m, err := decodeMessage(channelID, lastU64(k), v)
			if err != nil {
				return err
			}
			if m.ReceivedAt.Before(cutoff) {
				msgs = append(msgs, m)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, m := range msgs {
			_, changed, err := softDelete(tx, m.ID, m.Seq)
			if err != nil {
				return err
			}
			if changed > 0 {
				pruned++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.Info("pruned messages", logpkg.Uint64("channel_id", channelID), logpkg.Int("count", pruned))
	}
	return pruned, nil
}
