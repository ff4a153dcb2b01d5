package msgbox

import (
	"fmt"
	"sync"

	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
)

const idBlockSize = 256

const (
	kindChannel = "channel"
	kindToken   = "token"
	kindMessage = "message"
	kindStatus  = "status"
)

// idAllocator hands out internal ids from blocks reserved up front. Only the
// block's upper bound is persisted, so transactions committing out of order
// can never make the high-water mark regress. Ids lost at shutdown leave gaps.
type idAllocator struct {
	db     *pebblestore.DB
	mu     sync.Mutex
	blocks map[string]*idBlock
}

type idBlock struct {
	next  uint64
	limit uint64 // inclusive
}

func newIDAllocator(db *pebblestore.DB) *idAllocator {
	return &idAllocator{db: db, blocks: make(map[string]*idBlock)}
}

func (a *idAllocator) next(kind string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.blocks[kind]
	if b == nil || b.next > b.limit {
		key := keyIDAlloc(kind)
		var high uint64
		v, err := a.db.Get(key)
		switch {
		case err == nil && len(v) == 8:
			high = be8(v)
		case err == nil:
			return 0, fmt.Errorf("msgbox: corrupt id high-water for %s", kind)
		case !pebblestore.IsNotFound(err):
			return 0, err
		}
		limit := high + idBlockSize
		if err := a.db.Set(key, appendBE8(nil, limit)); err != nil {
			return 0, err
		}
		b = &idBlock{next: high + 1, limit: limit}
		a.blocks[kind] = b
	}
	id := b.next
	b.next++
	return id, nil
}
