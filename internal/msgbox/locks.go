package msgbox

import "sync"

// channelLocks serializes committing operations per channel. Pebble batches
// carry no row locks, so every read-check-write window on a channel runs
// under its entry here.
type channelLocks struct {
	mu      sync.Mutex
	entries map[uint64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{entries: make(map[uint64]*lockEntry)}
}

// lock acquires the channel's mutex and returns its release func. Entries are
// dropped once no goroutine holds or waits on them.
func (l *channelLocks) lock(channelID uint64) func() {
	l.mu.Lock()
	e, ok := l.entries[channelID]
	if !ok {
		e = &lockEntry{}
		l.entries[channelID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, channelID)
		}
		l.mu.Unlock()
	}
}
