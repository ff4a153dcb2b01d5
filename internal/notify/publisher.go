package notify

import (
	"sync"

	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Logger logpkg.Logger
	// QueueSize bounds the outbound event queue (default 1024).
	QueueSize int
	Metrics   *Metrics
}

const defaultQueueSize = 1024

// Publisher is the post-commit hook for written messages. Publish only
// enqueues; a single dispatcher goroutine forwards events to the Hub.
type Publisher struct {
	hub     *Hub
	logger  logpkg.Logger
	metrics *Metrics
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewPublisher starts a dispatcher that feeds hub.
func NewPublisher(hub *Hub, opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	p := &Publisher{
		hub:     hub,
		logger:  logger.WithComponent("notify"),
		metrics: opts.Metrics,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.dispatch()
	return p
}

// Publish enqueues ev and never blocks. It reports false when the event was
// dropped because the queue is full or the publisher is closed.
func (p *Publisher) Publish(ev Event) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.queue <- ev:
		p.metrics.incPublished()
		return true
	default:
		p.metrics.incDropped("queue")
		p.logger.Warn("notification queue full; event dropped",
			logpkg.Str("channel_id", ev.ChannelID),
			logpkg.Uint64("seq", ev.Sequence))
		return false
	}
}

func (p *Publisher) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.queue:
			p.hub.Deliver(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.hub.Deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Close stops the dispatcher after flushing queued events to the hub.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
