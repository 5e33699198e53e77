package testing

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Has(not)", func(b *testing.B) {
		benchmarkHasNot(b, factory())
	})

	b.Run("Range", func(b *testing.B) {
		benchmarkRange(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation on fresh keys (single writer, like the store)
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	value := []byte("test-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), db.Entry{Value: value, Seq: uint64(i)})
	}
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	const numKeys = 1000
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], db.Entry{Value: []byte("initial")})
	}

	value := []byte("test-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Set(keys[i%numKeys], db.Entry{Value: value, Seq: uint64(i)})
	}
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	const numKeys = 1000
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], db.Entry{Value: []byte("value")})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(keys[counter%numKeys])
			counter++
		}
	})
}

// Parallel benchmarking for Has on missing keys
func benchmarkHasNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureHas)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Has(fmt.Sprintf("missing-%d", counter%100))
			counter++
		}
	})
}

// Benchmark for a full Range over 10k entries
func benchmarkRange(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureRange)

	for i := 0; i < 10_000; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), db.Entry{Value: []byte("value")})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		database.Range(func(string, db.Entry) bool {
			n++
			return true
		})
	}
}
