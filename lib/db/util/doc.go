// Package util provides utility components for the qKV cache engines and the
// TTL sweeper.
//
// The package contains:
//   - statistics: Stats, DistributionStats and a SizeHistogram for estimating
//     the memory used by an engine without a full scan
//   - functions: seeded xxh3 key hashing, seed generation and expiry timestamp helpers
//   - mapheap: a generic min-heap with key-based access, the sweeper's expiry schedule
//   - lockfreempsc: a lock-free Multi-Producer Single-Consumer (MPSC) queue,
//     the channel between writers and the sweeper
package util
