package internal

import (
	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the key space.
// Each shard has its own concurrent map, so readers of different shards never
// touch the same buckets.
type Shard struct {
	Data *xsync.MapOf[string, db.Entry]
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(string, uint64) uint64) *Shard {
	return &Shard{
		Data: xsync.NewMapOfWithHasher[string, db.Entry](hasher),
	}
}

// GetShard returns the appropriate shard for a given key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
