package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/qKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("ExpirySlot", func(t *testing.T) {
			testExpirySlot(t, factory())
		})

		t.Run("RangeAndLen", func(t *testing.T) {
			testRangeAndLen(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func entry(value string, seq uint64) db.Entry {
	return db.Entry{Value: []byte(value), Seq: seq}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"

	database.Set(testKey, entry("test-value1", 1))

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result.Value, []byte("test-value1")) || result.Seq != 1 {
		t.Errorf("Expected value test-value1 at seq 1, got %s at seq %d", result.Value, result.Seq)
	}

	// last write wins
	database.Set(testKey, entry("test-value2", 2))

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after second Set", testKey)
	}
	if !bytes.Equal(result.Value, []byte("test-value2")) || result.Seq != 2 {
		t.Errorf("Expected value test-value2 at seq 2, got %s at seq %d", result.Value, result.Seq)
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("to-delete", entry("v", 1))

	if !database.Delete("to-delete") {
		t.Error("Delete should report true for an existing key")
	}
	if _, exists := database.Get("to-delete"); exists {
		t.Error("Key should not be found after Delete")
	}
	if database.Delete("to-delete") {
		t.Error("Delete should report false for a missing key")
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas)

	database.Set("present", entry("v", 1))

	if !database.Has("present") {
		t.Error("Has should return true for an existing key")
	}
	if database.Has("absent") {
		t.Error("Has should return false for a missing key")
	}
}

func testExpirySlot(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureExpiry)

	database.Set("ttl", db.Entry{Value: []byte("v"), ExpireAt: 1_000, Seq: 3})

	// the engine stores expiry, it does not enforce it
	got, ok := database.Get("ttl")
	if !ok {
		t.Fatal("Entry with an expiry in the past must still be returned by the engine")
	}
	if got.ExpireAt != 1_000 {
		t.Errorf("ExpireAt not preserved, got %d", got.ExpireAt)
	}
	if !got.Expired(1_000) || got.Expired(999) {
		t.Error("Expired should be true at and after ExpireAt only")
	}
	if (db.Entry{}).Expired(1 << 62) {
		t.Error("Entry without expiry must never expire")
	}
}

func testRangeAndLen(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange)

	want := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("range-%03d", i)
		want = append(want, key)
		database.Set(key, entry(key, uint64(i)))
	}

	if database.Len() != 100 {
		t.Errorf("Expected Len 100, got %d", database.Len())
	}

	var got []string
	database.Range(func(key string, e db.Entry) bool {
		if string(e.Value) != key {
			t.Errorf("Range returned wrong value for %s: %s", key, e.Value)
		}
		got = append(got, key)
		return true
	})
	sort.Strings(got)

	if len(got) != len(want) {
		t.Fatalf("Range visited %d keys, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Range key %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	visited := 0
	database.Range(func(string, db.Entry) bool {
		visited++
		return visited < 10
	})
	if visited != 10 {
		t.Errorf("Range should stop when fn returns false, visited %d", visited)
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureClear)

	for i := 0; i < 50; i++ {
		database.Set(fmt.Sprintf("clear-%d", i), entry("v", uint64(i)))
	}

	database.Clear()

	if database.Len() != 0 {
		t.Errorf("Expected empty database after Clear, got %d entries", database.Len())
	}
	if database.Has("clear-1") {
		t.Error("Key should not exist after Clear")
	}

	database.Set("after", entry("v", 99))
	if !database.Has("after") {
		t.Error("Database should accept writes after Clear")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	database.Set("", entry("value for empty key", 1))
	if result, exists := database.Get(""); !exists {
		t.Errorf("Empty key not found after Set")
	} else if string(result.Value) != "value for empty key" {
		t.Errorf("Value mismatch for empty key")
	}

	database.Set("nil-value-key", db.Entry{Seq: 2})
	if result, exists := database.Get("nil-value-key"); !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result.Value) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result.Value)
	}

	largeKey := string(bytes.Repeat([]byte{'k'}, 10_000))
	database.Set(largeKey, entry("value for large key", 3))
	if result, exists := database.Get(largeKey); !exists {
		t.Errorf("Large key not found after Set")
	} else if string(result.Value) != "value for large key" {
		t.Errorf("Value mismatch for large key")
	}

	largeValue := make([]byte, 8*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	database.Set("large-value-key", db.Entry{Value: largeValue, Seq: 4})
	if result, exists := database.Get("large-value-key"); !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result.Value, largeValue) {
		t.Errorf("Large value mismatch (size %d, expected %d)", len(result.Value), len(largeValue))
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		database.Set(key, entry(fmt.Sprintf("value-%d", i), uint64(i)))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := fmt.Sprintf("value-%d", i)

		actual, exists := database.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if string(actual.Value) != expectedValue {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expectedValue, actual.Value)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		database.Delete(fmt.Sprintf("%s%d", prefix, i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := database.Get(key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be deleted", key)
		}
		if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}

	if database.Len() != numKeys/2 {
		t.Errorf("Expected %d keys after deleting half, got %d", numKeys/2, database.Len())
	}
}

// testConcurrentReaders runs readers in parallel with a single writer, the
// access pattern the store produces
func testConcurrentReaders(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	const numKeys = 200
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("key-%d", i), entry("initial", 0))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				e, ok := database.Get(fmt.Sprintf("key-%d", i%numKeys))
				if !ok {
					t.Errorf("reader lost key-%d", i%numKeys)
					return
				}
				if v := string(e.Value); v != "initial" && v != "updated" {
					t.Errorf("reader saw torn value %q", v)
					return
				}
			}
		}()
	}

	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("key-%d", i), entry("updated", uint64(i+1)))
	}
	close(stop)
	wg.Wait()
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 10; i++ {
		database.Set(fmt.Sprintf("info-%d", i), entry("value", uint64(i)))
	}

	info := database.GetInfo()
	if info.Keys != 10 {
		t.Errorf("Expected 10 keys in info, got %d", info.Keys)
	}
	if info.DbType == "" {
		t.Error("Info should name the implementation")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed in info but SupportsFeature is false", f)
		}
	}
}
