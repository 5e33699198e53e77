// Package lstore implements store.IStore as an embedded, single file,
// persistent key-value store.
//
// A store is the pair of a data file (package logfile) and an in-memory cache
// (a db.KVDB engine) guarded by one reader-writer lock:
//
//   - Open replays the data file into the cache, last record per key wins.
//     Tombstones and records that are already expired remove their key.
//   - Reads (Get, GetMany, Has, Keys, Len) take the lock shared and never touch
//     the file.
//   - Writes take the lock exclusively, append their records through the write
//     path and only then update the cache, so the cache never holds a value the
//     file does not. Batch operations take the lock and append once.
//
// Expiry:
//
//	Every record carries an expiry timestamp. Reads hide expired entries. If
//	Config.SweepInterval is set, a sweeper goroutine keeps the expiring keys in
//	a heap (util.MapHeap) fed by an event queue (util.LockFreeMPSC) and sends
//	due keys over a channel to the store, which re-checks each key under the
//	exclusive lock and appends a tombstone.
//
// Runtimes:
//
//	RuntimeDisk persists to Config.Path. RuntimeMemory keeps everything in the
//	cache and discards the write path, nothing survives Close.
//
// Limitations:
//
//	The lock is per handle. Two handles (or processes) on one file are not
//	coordinated and will corrupt each other's view. The file is never
//	compacted, superseded records stay until Clear.
//
// Usage Example:
//
//	cfg := store.DefaultConfig()
//	cfg.Path = "data/"
//	s, err := lstore.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.Set("hello", value.String("world"))
//	v, ok, err := s.Get("hello")
package lstore
