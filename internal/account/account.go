package account

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
)

// ErrChannelLimit is returned when an account already holds its maximum
// number of channels.
var ErrChannelLimit = errors.New("account: channel limit reached")

// Meta holds account metadata and limits. Accounts are created implicitly
// the first time they are seen; authentication happens upstream.
type Meta struct {
	ID          int64 `json:"id"`
	CreatedAtMs int64 `json:"createdAtMs"`
	// MaxChannels caps the channels an account may own; 0 means unlimited.
	MaxChannels int `json:"maxChannels"`
}

// Defaults returns the limits applied to new accounts.
func Defaults(maxChannels int) Meta {
	return Meta{MaxChannels: maxChannels}
}

var metaPrefix = []byte("acct/meta/")

func metaKey(id int64) []byte {
	k := make([]byte, 0, len(metaPrefix)+20)
	k = append(k, metaPrefix...)
	return strconv.AppendInt(k, id, 10)
}

// Ensure creates the account meta record if absent and returns the
// effective meta. Idempotent: an existing record is returned unchanged.
func Ensure(db *pebblestore.DB, id int64, defaults Meta) (Meta, error) {
	key := metaKey(id)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// rewrite a corrupt record
	} else if err != nil && !pebblestore.IsNotFound(err) {
		return Meta{}, err
	}
	m := defaults
	m.ID = id
	m.CreatedAtMs = time.Now().UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Get returns the account meta if present.
func Get(db *pebblestore.DB, id int64) (Meta, bool, error) {
	b, err := db.Get(metaKey(id))
	if pebblestore.IsNotFound(err) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// CheckChannelQuota reports ErrChannelLimit when owned has reached the
// account's limit.
func (m Meta) CheckChannelQuota(owned int) error {
	if m.MaxChannels > 0 && owned >= m.MaxChannels {
		return ErrChannelLimit
	}
	return nil
}
