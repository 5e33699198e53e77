// Package testing provides standardised tests and benchmarks for cache
// engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: a conformance suite for the KVDB contract (last write wins,
//     delete, expiry slot preservation, range, clear, concurrent readers)
//   - benchmark: throughput measurements for the operations the store issues
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return NewMyEngine()
//	}
//
//	dbtesting.RunKVDBTests(t, "MyEngine", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MyEngine", factory)
package testing
