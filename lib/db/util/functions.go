package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/zeebo/xxh3"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the clock, only if the system source is unavailable
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// UnixMillis converts t to unix milliseconds, the unit of every expiry timestamp
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ExpireAt returns the expiry timestamp for a value written at now with the
// given ttl. A ttl <= 0 means the value never expires (0).
func ExpireAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixMilli()
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is the 64-bit hash of a key, used to pick shards
type UintKey uint64

// HashString hashes s with xxh3 mixed with seed, so two databases with
// different seeds distribute the same keys differently
func HashString(s string, seed uint64) UintKey {
	return UintKey(xxh3.HashStringSeed(s, seed))
}
