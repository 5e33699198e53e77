package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/cmd/util"
	"github.com/ValentinKolb/qKV/lib/store"
	"github.com/ValentinKolb/qKV/lib/value"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the local store",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfBatchSize        = 10
	perfSkip             = make([]string, 0)
)

// perfResult is a benchmark result plus the per operation latency timer
type perfResult struct {
	bench testing.BenchmarkResult
	timer gometrics.Timer
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "batch"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of records per call for the mset and mget tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfBatchSize = max(1, viper.GetInt("batch"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark runs op in parallel and records the latency of every call
func benchmark(name string, setup func(), cleanup func(), op func(counter int) error) perfResult {
	timer := gometrics.NewTimer()

	result := testing.Benchmark(func(b *testing.B) {
		if shouldSkip(name) {
			return
		}
		if setup != nil {
			setup()
		}
		if cleanup != nil {
			b.Cleanup(cleanup)
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(counter); err != nil {
					log.Printf("(%s) - error: %v\n", name, err)
				}
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	res := perfResult{bench: result, timer: timer}
	printResult(name, res)
	return res
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for the local store")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(kvConfig.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	results := make(map[string]perfResult)
	small := value.String("test")
	largeValue := value.Bytes(make([]byte, perfLargeValueSizeKB*1024))

	getKey, iter := getKeys("set")
	results["set"] = benchmark("set", nil, deleteAll(iter), func(i int) error {
		return kvStore.Set(getKey(i), small)
	})

	getKey, iter = getKeys("set-large")
	results["set-large"] = benchmark("set-large", nil, deleteAll(iter), func(i int) error {
		return kvStore.Set(getKey(i), largeValue)
	})

	getKey, iter = getKeys("set-ttl")
	results["set-ttl"] = benchmark("set-ttl", nil, deleteAll(iter), func(i int) error {
		return kvStore.SetE(getKey(i), small, time.Minute)
	})

	getKey, iter = getKeys("get")
	results["get"] = benchmark("get", setAll(iter, small), deleteAll(iter), func(i int) error {
		_, _, err := kvStore.Get(getKey(i))
		return err
	})

	getKey, iter = getKeys("delete")
	results["delete"] = benchmark("delete", setAll(iter, small), deleteAll(iter), func(i int) error {
		return kvStore.Delete(getKey(i))
	})

	getKey, iter = getKeys("has")
	results["has"] = benchmark("has", setAll(iter, small), deleteAll(iter), func(i int) error {
		_, err := kvStore.Has(getKey(i))
		return err
	})

	results["has-not"] = benchmark("has-not", nil, nil, func(i int) error {
		_, err := kvStore.Has(fmt.Sprintf("%s/has-not-%d", perfKeyPrefix, i%100))
		return err
	})

	getKey, iter = getKeys("mset")
	results["mset"] = benchmark("mset", nil, deleteAll(iter), func(i int) error {
		records := make([]store.Record, perfBatchSize)
		for j := range records {
			records[j] = store.Record{Key: getKey(i*perfBatchSize + j), Value: small}
		}
		return kvStore.SetMany(records)
	})

	getKey, iter = getKeys("mget")
	results["mget"] = benchmark("mget", setAll(iter, small), deleteAll(iter), func(i int) error {
		keys := make([]string, perfBatchSize)
		for j := range keys {
			keys[j] = getKey(i*perfBatchSize + j)
		}
		_, err := kvStore.GetMany(keys)
		return err
	})

	getKey, iter = getKeys("mixed")
	results["mixed"] = benchmark("mixed", setAll(iter, small), deleteAll(iter), func(i int) error {
		key := getKey(i)
		var err error
		switch i % 4 {
		case 0: // set
			err = kvStore.Set(key, small)
		case 1: // get
			_, _, err = kvStore.Get(key)
		case 2: // delete
			err = kvStore.Delete(key)
		case 3: // has
			_, err = kvStore.Has(key)
		}
		return err
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

func setAll(iter func(func(string)), v value.Value) func() {
	return func() {
		iter(func(k string) {
			if err := kvStore.Set(k, v); err != nil {
				log.Printf("error setting key %s: %v\n", k, err)
			}
		})
	}
}

func deleteAll(iter func(func(string))) func() {
	return func() {
		iter(func(k string) {
			if err := kvStore.Delete(k); err != nil {
				log.Printf("error deleting key %s: %v\n", k, err)
			}
		})
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// latency of a single call, measured across all threads
	p50 := time.Duration(result.timer.Percentile(0.5))
	p99 := time.Duration(result.timer.Percentile(0.99))

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, p50, p99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Runtime", "Engine", "Compression", "SyncWrites", "BatchBytes",
		"Threads", "LargeValueSizeKB", "Keys Count", "BatchSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", result.timer.Percentile(0.5)),
			fmt.Sprintf("%.0f", result.timer.Percentile(0.99)),
			skipped,
			string(kvConfig.Runtime),
			string(kvConfig.Engine),
			kvConfig.Compression.String(),
			strconv.FormatBool(kvConfig.SyncWrites),
			strconv.Itoa(kvConfig.BatchBytes),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfBatchSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
