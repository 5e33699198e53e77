// Package maple implements the default in-memory cache engine (db.KVDB) of the
// store. It keeps the decoded state of the data file, one db.Entry per key,
// spread over a fixed number of shards.
//
// Key Components:
//
//   - mapleImpl: the structure implementing db.KVDB. Keys are assigned to a
//     shard by an xxh3 hash with a per instance seed. Each shard is an
//     xsync.MapOf, so concurrent readers never block each other or the single
//     writer.
//
//   - Shard: a partition of the key space (see the internal package).
//
// The engine performs no I/O and never removes entries on its own. Expiry
// metadata is stored verbatim in db.Entry.ExpireAt; deciding whether an
// expired entry is visible, and when it is removed, is the job of the store
// that owns the engine.
//
// GetInfo samples a bounded number of entries per shard. Its size figures and
// the expired backlog ratio are estimates.
//
// Usage Example:
//
//	cache := maple.NewMapleDB(nil)
//	cache.Set("user:1", db.Entry{Value: encoded, Seq: 1})
//	if e, ok := cache.Get("user:1"); ok && !e.Expired(nowMs) {
//	    ...
//	}
package maple
