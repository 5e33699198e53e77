package lstore

import (
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics holds the per store metric set. Each store owns its own set, so
// several stores in one process do not share counters.
type storeMetrics struct {
	set *metrics.Set

	gets, sets, deletes, clears *metrics.Counter
	hits, misses                *metrics.Counter
	appendedRecords             *metrics.Counter
	appendedBytes               *metrics.Counter
	writeErrors                 *metrics.Counter
	expired                     *metrics.Counter
	replayedRecords             *metrics.Counter
	writeDuration               *metrics.Histogram
	replayDuration              *metrics.Histogram
}

func newStoreMetrics(keys func() float64, fileSize func() float64) *storeMetrics {
	set := metrics.NewSet()
	m := &storeMetrics{
		set:             set,
		gets:            set.NewCounter(`qkv_ops_total{op="get"}`),
		sets:            set.NewCounter(`qkv_ops_total{op="set"}`),
		deletes:         set.NewCounter(`qkv_ops_total{op="delete"}`),
		clears:          set.NewCounter(`qkv_ops_total{op="clear"}`),
		hits:            set.NewCounter(`qkv_reads_total{result="hit"}`),
		misses:          set.NewCounter(`qkv_reads_total{result="miss"}`),
		appendedRecords: set.NewCounter(`qkv_appended_records_total`),
		appendedBytes:   set.NewCounter(`qkv_appended_value_bytes_total`),
		writeErrors:     set.NewCounter(`qkv_write_errors_total`),
		expired:         set.NewCounter(`qkv_expired_keys_total`),
		replayedRecords: set.NewCounter(`qkv_replayed_records_total`),
		writeDuration:   set.NewHistogram(`qkv_write_duration_seconds`),
		replayDuration:  set.NewHistogram(`qkv_replay_duration_seconds`),
	}
	set.NewGauge(`qkv_keys`, keys)
	set.NewGauge(`qkv_file_size_bytes`, fileSize)
	return m
}

// wrote records a successful append of n records carrying valueBytes bytes
func (m *storeMetrics) wrote(n, valueBytes int, start time.Time) {
	m.appendedRecords.Add(n)
	m.appendedBytes.Add(valueBytes)
	m.writeDuration.UpdateDuration(start)
}

func (m *storeMetrics) read(hit bool) {
	m.gets.Inc()
	if hit {
		m.hits.Inc()
	} else {
		m.misses.Inc()
	}
}

func (m *storeMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
