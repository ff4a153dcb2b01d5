package pebblestore

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"
)

// Reader is the read surface shared by transactions and snapshots.
type Reader interface {
	// Get copies the value for key or returns pebble.ErrNotFound.
	Get(key []byte) ([]byte, error)
	// NewIter opens an iterator; callers must Close it.
	NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error)
}

// Txn is a read-your-writes transaction backed by an indexed batch. Writes
// become visible to other readers only when the enclosing Update commits.
type Txn struct {
	batch *pebble.Batch
	ops   int
}

// Get reads key through the batch, observing uncommitted writes.
func (tx *Txn) Get(key []byte) ([]byte, error) {
	val, closer, err := tx.batch.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter opens an iterator merging the batch with committed state.
func (tx *Txn) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return tx.batch.NewIter(opts)
}

// Set stages a key write.
func (tx *Txn) Set(key, value []byte) error {
	tx.ops++
	return tx.batch.Set(key, value, nil)
}

// Delete stages a key removal.
func (tx *Txn) Delete(key []byte) error {
	tx.ops++
	return tx.batch.Delete(key, nil)
}

// Update runs fn inside a transaction. The batch is committed when fn returns
// nil and discarded otherwise; it is released on every path.
func (db *DB) Update(ctx context.Context, fn func(tx *Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Txn{batch: db.inner.NewIndexedBatch()}
	defer tx.batch.Close()

	if err := fn(tx); err != nil {
		return err
	}
	if tx.ops == 0 {
		return nil
	}
	start := time.Now()
	size := tx.batch.Len()
	if err := tx.batch.Commit(db.commitOptions()); err != nil {
		return err
	}
	db.metrics.ObserveBatchCommit(time.Since(start), tx.ops, size)
	return nil
}

// snapshotReader adapts a pebble snapshot to Reader.
type snapshotReader struct {
	snap    *pebble.Snapshot
	metrics MetricsHook
}

func (r snapshotReader) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := r.snap.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	r.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

func (r snapshotReader) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return r.snap.NewIter(opts)
}

// View runs fn against a consistent snapshot. Concurrent commits are not
// observed mid-read.
func (db *DB) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := db.inner.NewSnapshot()
	defer snap.Close()
	return fn(snapshotReader{snap: snap, metrics: db.metrics})
}
