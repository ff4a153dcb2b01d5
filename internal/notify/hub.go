package notify

import (
	"sync"
	"time"

	"github.com/rzbill/peerchan/pkg/id"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Conn is the write side of a subscriber connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// HubOptions configures a Hub.
type HubOptions struct {
	Logger logpkg.Logger
	// Buffer is the per-subscriber event queue length (default 64).
	Buffer  int
	Metrics *Metrics
}

const defaultSubscriberBuffer = 64

// Hub tracks live subscriber connections per channel external id. Each
// subscriber owns a buffered queue drained by its own writer goroutine, so
// a slow connection never holds up delivery to the others.
type Hub struct {
	logger  logpkg.Logger
	buf     int
	metrics *Metrics
	ids     *id.Generator

	mu        sync.RWMutex
	byChannel map[string]map[string]*subscriber
	byID      map[string]*subscriber
	closed    bool
	wg        sync.WaitGroup
}

type subscriber struct {
	id        string
	channelID string
	conn      Conn
	filter    Filter
	out       chan Event
	done      chan struct{}
	once      sync.Once

	// wmu serializes frames on conn.
	wmu sync.Mutex
}

func (s *subscriber) write(v any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteJSON(v)
}

// NewHub returns an empty Hub.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = defaultSubscriberBuffer
	}
	return &Hub{
		logger:    logger.WithComponent("notify"),
		buf:       buf,
		metrics:   opts.Metrics,
		ids:       id.NewGenerator(),
		byChannel: make(map[string]map[string]*subscriber),
		byID:      make(map[string]*subscriber),
	}
}

// Subscribe registers conn for events on channelID and starts its writer.
// The returned id is passed to Remove on disconnect.
func (h *Hub) Subscribe(channelID string, conn Conn, filter Filter) (string, error) {
	s := &subscriber{
		id:        h.ids.Next().String(),
		channelID: channelID,
		conn:      conn,
		filter:    filter,
		out:       make(chan Event, h.buf),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrClosed
	}
	subs := h.byChannel[channelID]
	if subs == nil {
		subs = make(map[string]*subscriber)
		h.byChannel[channelID] = subs
	}
	subs[s.id] = s
	h.byID[s.id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	h.metrics.addSubscribers(1)
	h.logger.Debug("subscriber added", logpkg.Str("channel_id", channelID), logpkg.Str("subscriber_id", s.id))
	go h.writeLoop(s)
	return s.id, nil
}

func (h *Hub) writeLoop(s *subscriber) {
	defer h.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.out:
			if !s.filter.Match(ev) {
				continue
			}
			if err := s.write(ev.Envelope()); err != nil {
				h.logger.Debug("subscriber write failed", logpkg.Str("subscriber_id", s.id), logpkg.Err(err))
				h.Remove(s.id)
				return
			}
			h.metrics.incDelivered()
		}
	}
}

// Remove unregisters a subscriber and closes its connection. Unknown ids are
// ignored. It never touches storage.
func (h *Hub) Remove(subscriberID string) {
	h.mu.Lock()
	s, ok := h.byID[subscriberID]
	if ok {
		delete(h.byID, subscriberID)
		if subs := h.byChannel[s.channelID]; subs != nil {
			delete(subs, subscriberID)
			if len(subs) == 0 {
				delete(h.byChannel, s.channelID)
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	h.metrics.addSubscribers(-1)
	h.logger.Debug("subscriber removed", logpkg.Str("channel_id", s.channelID), logpkg.Str("subscriber_id", subscriberID))
}

// Deliver hands ev to every subscriber of its channel without blocking. It
// returns the number of subscribers that accepted the event; a subscriber
// whose queue is full misses it.
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.byChannel[ev.ChannelID] {
		select {
		case s.out <- ev:
			n++
		default:
			h.metrics.incDropped("subscriber")
		}
	}
	return n
}

// Count returns the number of subscribers on a channel.
func (h *Hub) Count(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byChannel[channelID])
}

// CloseChannel sends reason to every subscriber of the channel and drops
// them. Used when the channel is deleted.
func (h *Hub) CloseChannel(channelID string, reason WebsocketError) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.byChannel[channelID]))
	for _, s := range h.byChannel[channelID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		_ = s.write(reason)
		h.Remove(s.id)
	}
}

// Close removes every subscriber and waits for the writers to exit, up to
// timeout.
func (h *Hub) Close(timeout time.Duration) {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.byID))
	for sid := range h.byID {
		ids = append(ids, sid)
	}
	h.mu.Unlock()
	for _, sid := range ids {
		h.Remove(sid)
	}
	done := make(chan struct{})
	go func() { h.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(timeout):
		h.logger.Warn("notify hub close timed out", logpkg.Duration("timeout", timeout))
	}
}
