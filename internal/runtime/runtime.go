package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/peerchan/internal/account"
	cfgpkg "github.com/rzbill/peerchan/internal/config"
	"github.com/rzbill/peerchan/internal/msgbox"
	"github.com/rzbill/peerchan/internal/notify"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// Registry receives storage and notification collectors. A private
	// registry is created when nil.
	Registry *prometheus.Registry
}

// Runtime wires storage, config, and facades for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	logger   logpkg.Logger
	registry *prometheus.Registry
	store    *msgbox.Store
	hub      *notify.Hub
	pub      *notify.Publisher
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	storeMetrics, err := pebblestore.NewPromMetrics(reg)
	if err != nil {
		return nil, err
	}
	notifyMetrics, err := notify.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       storeMetrics,
	})
	if err != nil {
		return nil, err
	}
	hub := notify.NewHub(notify.HubOptions{
		Logger:  logger,
		Buffer:  opts.Config.Notify.SubscriberBuffer,
		Metrics: notifyMetrics,
	})
	rt := &Runtime{
		db:       db,
		config:   opts.Config,
		logger:   logger,
		registry: reg,
		store: msgbox.New(db, msgbox.Options{
			Logger:             logger,
			SequencedReadsOnly: opts.Config.Reads.SequencedOnly,
		}),
		hub: hub,
		pub: notify.NewPublisher(hub, notify.PublisherOptions{
			Logger:    logger,
			QueueSize: opts.Config.Notify.QueueSize,
			Metrics:   notifyMetrics,
		}),
	}
	return rt, nil
}

// Close drains notifications and closes underlying resources.
func (r *Runtime) Close() error {
	if r.pub != nil {
		r.pub.Close()
	}
	if r.hub != nil {
		r.hub.Close(5 * time.Second)
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Ping()
}

// EnsureAccount creates an account record if absent, applying the
// configured channel limit.
func (r *Runtime) EnsureAccount(id int64) (account.Meta, error) {
	return account.Ensure(r.db, id, account.Defaults(r.config.MaxChannelsPerAccount))
}

// Store returns the message-box store.
func (r *Runtime) Store() *msgbox.Store { return r.store }

// Hub returns the subscriber registry.
func (r *Runtime) Hub() *notify.Hub { return r.hub }

// Publisher returns the post-commit notification hook.
func (r *Runtime) Publisher() *notify.Publisher { return r.pub }

// Registry exposes the metrics registry for the /metrics endpoint.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
