// Package util
//
// This file holds the statistics reported by the engines' GetInfo.
// DistributionStats summarises how evenly keys are spread over shards and
// SizeHistogram estimates the footprint of cached entries from a sample.
package util

import (
	"math"
	"sync/atomic"
)

// ----------------------------------------------------------------------------
// Distribution
// ----------------------------------------------------------------------------

// Stats are the summary statistics of a set of samples
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation and range of values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(sq / float64(len(values)))

	s.MinMaxRatio = 1
	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats rates how evenly keys are spread over the shards of an
// engine. Quality is 1 for a perfect spread and approaches 0 when a single
// shard holds everything.
type DistributionStats struct {
	Stats
	Quality float64 `json:"quality"`
}

// NewDistributionStats builds DistributionStats from the key count of every shard
func NewDistributionStats(shardSizes []float64) DistributionStats {
	stats := NewStats(shardSizes)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:   stats,
		Quality: (1-math.Min(1, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// histogramBuckets are the upper bounds of the SizeHistogram buckets: powers
// of four from 16 B up to 1 GiB, the largest record body a data file accepts.
// One extra bucket catches everything above.
var histogramBuckets = func() []int {
	bounds := make([]int, 0, 14)
	for b := 16; b <= 1<<30; b *= 4 {
		bounds = append(bounds, b)
	}
	return bounds
}()

// SizeHistogram counts entry sizes in exponential buckets.
//
// Thread-safety: Add may be called from many goroutines at once, the readers
// see a consistent value per bucket but not a snapshot across buckets.
type SizeHistogram struct {
	buckets []atomic.Int64
	count   atomic.Int64
	sum     atomic.Int64
}

// NewSizeHistogram returns an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]atomic.Int64, len(histogramBuckets)+1)}
}

// Add records one sample of size bytes
func (h *SizeHistogram) Add(size int) {
	i := len(histogramBuckets)
	for j, bound := range histogramBuckets {
		if size <= bound {
			i = j
			break
		}
	}
	h.buckets[i].Add(1)
	h.count.Add(1)
	h.sum.Add(int64(size))
}

// Count returns the number of samples
func (h *SizeHistogram) Count() int64 {
	return h.count.Load()
}

// Mean returns the exact average sample size
func (h *SizeHistogram) Mean() int {
	n := h.count.Load()
	if n == 0 {
		return 0
	}
	return int(h.sum.Load() / n)
}

// Quantile estimates the q-quantile (0 <= q <= 1) as the midpoint of the
// bucket it falls into.
func (h *SizeHistogram) Quantile(q float64) int {
	n := h.count.Load()
	if n == 0 || q < 0 || q > 1 {
		return 0
	}

	target := int64(math.Ceil(float64(n) * q))
	var seen int64
	for i := range h.buckets {
		seen += h.buckets[i].Load()
		if seen < target || seen == 0 {
			continue
		}
		switch {
		case i == 0:
			return histogramBuckets[0] / 2
		case i < len(histogramBuckets):
			return (histogramBuckets[i-1] + histogramBuckets[i]) / 2
		default:
			return histogramBuckets[len(histogramBuckets)-1] * 2
		}
	}
	return h.Mean()
}
