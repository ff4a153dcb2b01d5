package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/rzbill/peerchan/internal/msgbox"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Pruner is the slice of the message store the runner needs.
type Pruner interface {
	PruneCandidates(ctx context.Context) ([]msgbox.Channel, error)
	PruneChannel(ctx context.Context, channelID uint64, cutoff time.Time) (int, error)
}

// Options configures a Runner.
type Options struct {
	Cron   string
	Logger logpkg.Logger
	Now    func() time.Time
}

// Runner soft-deletes expired messages on a cron schedule.
type Runner struct {
	store  Pruner
	cron   string
	logger logpkg.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// New validates the schedule and returns a Runner.
func New(store Pruner, opts Options) (*Runner, error) {
	if !gronx.IsValid(opts.Cron) {
		return nil, fmt.Errorf("retention: invalid cron %q", opts.Cron)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NewNullOutput()))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{store: store, cron: opts.Cron, logger: logger.WithComponent("retention"), now: now}, nil
}

// Start runs the schedule loop until ctx is done or the returned cancel is
// called.
func (r *Runner) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	r.logger.Info("retention enabled", logpkg.Str("cron", r.cron))
	go r.scheduleLoop(ctx)
	return cancel
}

func (r *Runner) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(r.cron, r.now(), false)
		if err != nil {
			r.logger.Error("retention next tick failed", logpkg.Str("cron", r.cron), logpkg.Err(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		wait := next.Sub(r.now())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
			r.runJob(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runJob(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("retention run failed", logpkg.Err(err))
	}
}

// RunOnce prunes every auto-prune channel once and returns the number of
// messages soft-deleted. A failure on one channel does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	start := r.now()
	chans, err := r.store.PruneCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list prune candidates: %w", err)
	}
	total := 0
	var firstErr error
	for _, ch := range chans {
		cutoff := start.Add(-time.Duration(ch.Retention.MaxAgeDays) * 24 * time.Hour)
		n, err := r.store.PruneChannel(ctx, ch.ID, cutoff)
		if err != nil {
			r.logger.Error("prune channel failed", logpkg.Str("external_id", ch.ExternalID), logpkg.Err(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	r.logger.Info("retention run done",
		logpkg.Int("channels", len(chans)),
		logpkg.Int("pruned", total),
		logpkg.Duration("took", time.Since(start)))
	return total, firstErr
}
