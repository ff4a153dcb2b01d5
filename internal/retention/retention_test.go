package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rzbill/peerchan/internal/msgbox"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
)

type fakePruner struct {
	chans   []msgbox.Channel
	cutoffs map[uint64]time.Time
	fail    uint64
}

func (f *fakePruner) PruneCandidates(context.Context) ([]msgbox.Channel, error) {
	return f.chans, nil
}

func (f *fakePruner) PruneChannel(_ context.Context, id uint64, cutoff time.Time) (int, error) {
	if id == f.fail {
		return 0, errors.New("disk on fire")
	}
	f.cutoffs[id] = cutoff
	return int(id), nil
}

func TestNewRejectsBadCron(t *testing.T) {
	if _, err := New(&fakePruner{}, Options{Cron: "whenever"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunOnceCutoffPerChannel(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	f := &fakePruner{
		chans: []msgbox.Channel{
			{ID: 1, Retention: msgbox.Retention{MaxAgeDays: 1, AutoPrune: true}},
			{ID: 2, Retention: msgbox.Retention{MaxAgeDays: 7, AutoPrune: true}},
			{ID: 3, Retention: msgbox.Retention{MaxAgeDays: 2, AutoPrune: true}},
		},
		cutoffs: map[uint64]time.Time{},
		fail:    3,
	}
	r, err := New(f, Options{Cron: "@hourly", Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	n, err := r.RunOnce(context.Background())
	if err == nil {
		t.Fatalf("channel failure not reported")
	}
	if n != 3 {
		t.Fatalf("pruned %d want 3", n)
	}
	if !f.cutoffs[1].Equal(now.Add(-24*time.Hour)) || !f.cutoffs[2].Equal(now.Add(-7*24*time.Hour)) {
		t.Fatalf("cutoffs = %v", f.cutoffs)
	}
}

func TestRunOnceAgainstStore(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	store := msgbox.New(db, msgbox.Options{})
	ctx := context.Background()
	ch, err := store.CreateChannel(ctx, 1, msgbox.ChannelCreate{Retention: msgbox.Retention{MaxAgeDays: 1, AutoPrune: true}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	owner := ch.Tokens[0]
	now := time.Now()
	for _, at := range []time.Time{now.Add(-50 * time.Hour), now.Add(-time.Minute)} {
		if _, _, err := store.WriteMessage(ctx, msgbox.NewMessage{ChannelID: ch.ID, FromToken: owner.ID, ReceivedAt: at}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r, _ := New(store, Options{Cron: "* * * * *"})
	n, err := r.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("run: %d %v", n, err)
	}
	page, _, _ := store.GetMessages(ctx, owner.ID, false)
	if len(page.Messages) != 1 || page.Messages[0].Sequence != 2 {
		t.Fatalf("remaining = %+v", page.Messages)
	}
}

func TestStartStops(t *testing.T) {
	r, _ := New(&fakePruner{cutoffs: map[uint64]time.Time{}}, Options{Cron: "* * * * *"})
	cancel := r.Start(context.Background())
	cancel()
}
