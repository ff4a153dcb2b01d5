package msgbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	"github.com/rzbill/peerchan/pkg/id"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Options configures a Store.
type Options struct {
	Logger logpkg.Logger

	// Now overrides the wall clock; timestamps are still forced to be
	// strictly increasing.
	Now func() time.Time

	// SequencedReadsOnly restricts GetMessages to sequenced channels.
	SequencedReadsOnly bool

	// NewExternalID and NewToken override the opaque string generators.
	NewExternalID func() (string, error)
	NewToken      func() (string, error)
}

// Store is the message-box repository over a Pebble database. It is safe for
// concurrent use; committing operations on one channel are linearized by a
// per-channel lock held across the transaction.
type Store struct {
	db     *pebblestore.DB
	logger logpkg.Logger
	clock  *clock
	locks  *channelLocks
	ids    *idAllocator

	sequencedReadsOnly bool
	newExternalID      func() (string, error)
	newToken           func() (string, error)
}

// New builds a Store over db.
func New(db *pebblestore.DB, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	s := &Store{
		db:                 db,
		logger:             logger.WithComponent("msgbox"),
		clock:              newClock(opts.Now),
		locks:              newChannelLocks(),
		ids:                newIDAllocator(db),
		sequencedReadsOnly: opts.SequencedReadsOnly,
		newExternalID:      opts.NewExternalID,
		newToken:           opts.NewToken,
	}
	if s.newExternalID == nil {
		s.newExternalID = id.NewExternalID
	}
	if s.newToken == nil {
		s.newToken = id.NewToken
	}
	return s
}

// Now returns the store clock reading used for validity checks.
func (s *Store) Now() time.Time { return s.clock.Now() }

func getJSON(r pebblestore.Reader, key []byte, v any) (bool, error) {
	b, err := r.Get(key)
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("msgbox: decode %q: %w", key, err)
	}
	return true, nil
}

func putJSON(tx *pebblestore.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, b)
}

func getU64(r pebblestore.Reader, key []byte) (uint64, bool, error) {
	b, err := r.Get(key)
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, fmt.Errorf("msgbox: corrupt index value at %q", key)
	}
	return be8(b), true, nil
}

func loadChannel(r pebblestore.Reader, channelID uint64) (channelRow, bool, error) {
	var row channelRow
	ok, err := getJSON(r, keyChannel(channelID), &row)
	return row, ok, err
}

func channelIDByExternal(r pebblestore.Reader, externalID string) (uint64, bool, error) {
	if externalID == "" {
		return 0, false, nil
	}
	return getU64(r, keyExternal(externalID))
}

func loadChannelByExternal(r pebblestore.Reader, externalID string) (channelRow, bool, error) {
	chID, ok, err := channelIDByExternal(r, externalID)
	if err != nil || !ok {
		return channelRow{}, false, err
	}
	return loadChannel(r, chID)
}

func loadToken(r pebblestore.Reader, tokenID uint64) (tokenRow, bool, error) {
	var row tokenRow
	ok, err := getJSON(r, keyToken(tokenID), &row)
	return row, ok, err
}

// scanPrefix calls fn for every key under prefix in ascending order. Key and
// value are only valid for the duration of the call.
func scanPrefix(r pebblestore.Reader, prefix []byte, fn func(k, v []byte) error) error {
	return scanRange(r, prefix, prefixUpperBound(prefix), fn)
}

func scanRange(r pebblestore.Reader, lower, upper []byte, fn func(k, v []byte) error) error {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	for ok := it.First(); ok; ok = it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			_ = it.Close()
			return err
		}
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return err
	}
	return it.Close()
}

var errStopScan = errors.New("stop scan")

// headSequence returns max(seq) of the channel, 0 when empty. Deleted
// messages still count.
func headSequence(r pebblestore.Reader, channelID uint64) (uint64, error) {
	prefix := prefixChannelMessages(channelID)
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	if !it.Last() {
		return 0, it.Error()
	}
	return lastU64(it.Key()), nil
}

// channelTokens returns every token row of the channel, live or not.
func channelTokens(r pebblestore.Reader, channelID uint64) ([]tokenRow, error) {
	var ids []uint64
	err := scanPrefix(r, prefixChannelTokens(channelID), func(k, _ []byte) error {
		ids = append(ids, lastU64(k))
		return nil
	})
	if err != nil {
		return nil, err
	}
	rows := make([]tokenRow, 0, len(ids))
	for _, tid := range ids {
		row, ok, err := loadToken(r, tid)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// hydrateChannel fills the computed and joined parts of a channel.
func hydrateChannel(r pebblestore.Reader, row channelRow) (Channel, error) {
	ch := row.channel()
	head, err := headSequence(r, row.ID)
	if err != nil {
		return Channel{}, err
	}
	ch.HeadMessageSequence = head
	toks, err := channelTokens(r, row.ID)
	if err != nil {
		return Channel{}, err
	}
	ch.Tokens = make([]Token, 0, len(toks))
	for _, t := range toks {
		ch.Tokens = append(ch.Tokens, t.token())
	}
	return ch, nil
}
