// Package db defines the in-memory cache layer of qKV: the KVDB interface, the
// Entry type it stores and the feature flags and metadata reported by an
// implementation.
//
// A KVDB mirrors the data file. Each key maps to the Entry produced by the last
// record written for that key, so after replaying the file the cache holds
// exactly the logical content of the store. The cache itself never touches the
// disk and never drops entries on its own.
//
// Key Components:
//
//   - KVDB Interface: Set, Delete, Clear, Get, Has, Range and Len plus
//     SupportsFeature and GetInfo for discovery and reporting.
//
//   - Entry: the encoded value together with its expiry slot (ExpireAt, unix
//     milliseconds) and the logical index (Seq) of the write that produced it.
//     Expiry is data, not behaviour: Get returns expired entries and the store
//     hides them. The background sweeper uses Seq to detect that a key was
//     rewritten after its expiry was scheduled.
//
//   - Feature Flags and DatabaseInfo: capability bits and size estimates, so
//     callers can inspect an engine without knowing its type.
//
// Concurrency: implementations must allow any number of concurrent readers.
// Writes are serialized by the owning store, which takes its exclusive lock
// before calling Set, Delete or Clear.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/qKV/lib/db/engines/maple)
// is the default engine, a sharded map built on xsync.MapOf. The engines/plain
// package is a single mutex protected map, useful as a reference and for small
// data sets.
//
// The util package (github.com/ValentinKolb/qKV/lib/db/util) provides the
// supporting data structures: SizeHistogram for size estimates, MapHeap for
// expiry scheduling and LockFreeMPSC for the sweeper's event queue.
//
// The testing package (github.com/ValentinKolb/qKV/lib/db/testing) holds the
// conformance suite and benchmarks every engine runs.
package db
