package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/rzbill/peerchan/internal/config"
	"github.com/rzbill/peerchan/internal/msgbox"
	pebblestore "github.com/rzbill/peerchan/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rt.CheckHealth(ctx); err == nil {
		t.Fatalf("health with cancelled context should fail")
	}
}

func TestEnsureAccountAndStore(t *testing.T) {
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.MaxChannelsPerAccount = 3
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	meta, err := rt.EnsureAccount(9)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if meta.MaxChannels != 3 {
		t.Fatalf("limit not applied: %+v", meta)
	}
	ch, err := rt.Store().CreateChannel(context.Background(), 9, msgbox.ChannelCreate{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ch.ExternalID == "" || len(ch.Tokens) != 1 {
		t.Fatalf("channel = %+v", ch)
	}
}

func TestMetricsRegistered(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	_, _ = rt.EnsureAccount(1)
	mfs, err := rt.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"peerchan_store_commit_seconds", "peerchan_notify_subscribers"} {
		if !names[want] {
			t.Fatalf("metric %s not registered; have %v", want, names)
		}
	}
}
