// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// scoped transactions, snapshot reads, and metrics hooks.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// Read-your-writes transaction; committed only when fn returns nil.
//	err = db.Update(ctx, func(tx *pebblestore.Txn) error {
//	    if _, err := tx.Get([]byte("k")); err != nil && !pebblestore.IsNotFound(err) {
//	        return err
//	    }
//	    return tx.Set([]byte("k"), []byte("v"))
//	})
//
//	// Consistent read-only view
//	_ = db.View(ctx, func(r pebblestore.Reader) error {
//	    v, err := r.Get([]byte("k"))
//	    _ = v
//	    return err
//	})
package pebblestore
