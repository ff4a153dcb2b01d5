package pebblestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testMetrics struct {
	read         int
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t)

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q want %q", got, "v1")
	}
	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}
	if _, err := db.Get([]byte("missing")); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateCommitsOnSuccess(t *testing.T) {
	db, metrics := newTestDB(t)

	err := db.Update(context.Background(), func(tx *Txn) error {
		if err := tx.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		// read-your-writes inside the batch
		v, err := tx.Get([]byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			t.Fatalf("txn read %q", v)
		}
		return tx.Set([]byte("b"), []byte("2"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if metrics.batchCommits != 1 || metrics.batchOps != 2 {
		t.Fatalf("want 1 commit with 2 ops, got %d/%d", metrics.batchCommits, metrics.batchOps)
	}
	if metrics.batchBytes <= 0 {
		t.Fatalf("expected positive batch bytes")
	}
	if v, err := db.Get([]byte("b")); err != nil || string(v) != "2" {
		t.Fatalf("b after commit: %q %v", v, err)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	db, metrics := newTestDB(t)
	boom := errors.New("boom")

	err := db.Update(context.Background(), func(tx *Txn) error {
		if err := tx.Set([]byte("x"), []byte("1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if _, err := db.Get([]byte("x")); !IsNotFound(err) {
		t.Fatalf("write leaked from aborted txn: %v", err)
	}
	if metrics.batchCommits != 0 {
		t.Fatalf("aborted txn must not commit")
	}
}

func TestViewSnapshotConsistency(t *testing.T) {
	db, _ := newTestDB(t)

	if err := db.Set([]byte("k2"), []byte("old")); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := db.View(context.Background(), func(r Reader) error {
		// mutate after the snapshot was taken
		if err := db.Set([]byte("k2"), []byte("new")); err != nil {
			return err
		}
		v, err := r.Get([]byte("k2"))
		if err != nil {
			return err
		}
		if string(v) != "old" {
			t.Fatalf("snapshot saw %q want old", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v, _ := db.Get([]byte("k2")); string(v) != "new" {
		t.Fatalf("db saw %q want new", v)
	}
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPromMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	m.ObserveBatchCommit(time.Millisecond, 3, 42)
	if got := testutil.ToFloat64(m.commitOps); got != 3 {
		t.Fatalf("commit ops = %v", got)
	}
	if _, err := NewPromMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestParseFsyncMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FsyncMode
		wantErr bool
	}{
		{"", FsyncModeAlways, false},
		{"always", FsyncModeAlways, false},
		{"interval", FsyncModeInterval, false},
		{"never", FsyncModeNever, false},
		{"sometimes", FsyncModeUnspecified, true},
	}
	for _, tt := range tests {
		got, err := ParseFsyncMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFsyncMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
