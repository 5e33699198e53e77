package maple

import (
	"runtime"
	"sync"
	"time"

	"github.com/ValentinKolb/qKV/lib/db"
	"github.com/ValentinKolb/qKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/qKV/lib/db/util"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements db.KVDB with sharded concurrent maps
type mapleImpl struct {
	seed   uint64            // Seed for the shard hash
	shards []*internal.Shard // Array of shards
	now    func() time.Time  // Clock used to report the expired backlog
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int              // Number of shards (0 = auto)
	Now       func() time.Time // Clock for GetInfo (nil = time.Now)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
		Now:       time.Now,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new maple database with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	shards := make([]*internal.Shard, opts.NumShards)
	for i := 0; i < opts.NumShards; i++ {
		shards[i] = internal.NewShard(hashKey)
	}

	return &mapleImpl{
		seed:   util.GenerateSeed(),
		shards: shards,
		now:    opts.Now,
	}
}

// hashKey is the hash function of the per shard maps. xsync passes its own
// per map seed, so shard choice and bucket choice stay independent.
func hashKey(key string, mapSeed uint64) uint64 {
	return uint64(util.HashString(key, mapSeed))
}

// shardFor returns the shard owning key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or replaces the entry for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, entry db.Entry) {
	maple.shardFor(key).Data.Store(key, entry)
}

// Delete removes key and reports whether it existed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string) bool {
	_, loaded := maple.shardFor(key).Data.LoadAndDelete(key)
	return loaded
}

// Clear removes all entries. Shards are cleared one after another, so a
// concurrent reader may observe a partially cleared database.
func (maple *mapleImpl) Clear() {
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns the entry for key, expired or not.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) (db.Entry, bool) {
	return maple.shardFor(key).Data.Load(key)
}

// Has reports whether key has an entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

// Range visits all entries shard by shard until fn returns false.
func (maple *mapleImpl) Range(fn func(key string, entry db.Entry) bool) {
	for _, shard := range maple.shards {
		stopped := false
		shard.Data.Range(func(key string, entry db.Entry) bool {
			if !fn(key, entry) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return
		}
	}
}

// Len returns the number of entries.
func (maple *mapleImpl) Len() int {
	n := 0
	for _, shard := range maple.shards {
		n += shard.Data.Size()
	}
	return n
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	nowMs := util.UnixMillis(maple.now())

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	// more stats
	mu := sync.Mutex{}
	samplesCount := 0
	expiredBacklog := 0
	withTTL := 0
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			expiredCount := 0
			ttlCount := 0
			s.Data.Range(func(key string, entry db.Entry) bool {
				histogram.Add(len(key) + len(entry.Value))

				if entry.ExpireAt != 0 {
					ttlCount++
				}
				// expired but not yet removed by the sweeper
				if entry.Expired(nowMs) {
					expiredCount++
				}

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			samplesCount += count
			expiredBacklog += expiredCount
			withTTL += ttlCount
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}

	wg.Wait()

	keys := 0
	for _, size := range shardSizes {
		keys += int(size)
	}

	// per entry: 24 bytes of metadata plus map overhead
	entryOverhead := 48
	medianSize := histogram.Quantile(0.5) + entryOverhead
	avgSize := histogram.Mean() + entryOverhead

	// weighted estimate (60% median, 40% average) scaled to all keys
	sizeBytes := (medianSize*60 + avgSize*40) / 100 * keys

	var expiredRatio, ttlRatio float64
	if samplesCount > 0 {
		expiredRatio = float64(expiredBacklog) / float64(samplesCount)
		ttlRatio = float64(withTTL) / float64(samplesCount)
	}

	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		ExpiredBacklog    float64                `json:"expired_backlog"`
		WithTTL           float64                `json:"with_ttl"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		ExpiredBacklog:    expiredRatio, // share of sampled entries that are expired but still cached
		WithTTL:           ttlRatio,     // share of sampled entries that carry an expiry
		Info:              "All values (including SizeBytes) are estimates and may vary depending on the database state.",
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Keys:              keys,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatureList,
		Metadata:          meta,
	}
}

var supportedFeatureList = []db.Feature{
	db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
	db.FeatureRange, db.FeatureClear, db.FeatureExpiry,
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureRange |
		db.FeatureClear |
		db.FeatureExpiry
	return supportedFeatures&feature == feature
}

// Close drops all shards
func (maple *mapleImpl) Close() error {
	maple.Clear()
	return nil
}
