package util

import (
	"math"
	"sync"
	"testing"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.StdDeviation != 2 {
		t.Errorf("expected mean 5 and std deviation 2, got %v and %v", s.Mean, s.StdDeviation)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("expected range [2,9], got [%v,%v]", s.Min, s.Max)
	}
	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("expected zero stats for no samples, got %+v", empty)
	}
}

func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.Quality != 1 {
		t.Errorf("expected quality 1 for an even spread, got %v", even.Quality)
	}
	skewed := NewDistributionStats([]float64{40, 0, 0, 0})
	if skewed.Quality >= 0.5 {
		t.Errorf("expected a low quality for a skewed spread, got %v", skewed.Quality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.Quantile(0.5) != 0 || h.Mean() != 0 {
		t.Fatal("expected zero estimates for an empty histogram")
	}

	for i := 0; i < 90; i++ {
		h.Add(10)
	}
	for i := 0; i < 10; i++ {
		h.Add(1 << 20)
	}

	if h.Count() != 100 {
		t.Errorf("expected 100 samples, got %d", h.Count())
	}
	if got := h.Quantile(0.5); got != 8 {
		t.Errorf("expected median estimate 8, got %d", got)
	}
	if got := h.Quantile(0.99); got < 1<<18 || got > 1<<20 {
		t.Errorf("expected p99 in the 1 MiB bucket, got %d", got)
	}
	if want := (90*10 + 10*(1<<20)) / 100; h.Mean() != want {
		t.Errorf("expected mean %d, got %d", want, h.Mean())
	}
	if h.Quantile(1.5) != 0 {
		t.Error("expected 0 for an invalid quantile")
	}

	h.Add(math.MaxInt32 * 2)
	if got := h.Quantile(1); got != 1<<31 {
		t.Errorf("expected overflow bucket estimate %d, got %d", 1<<31, got)
	}
}

func TestSizeHistogramConcurrentAdd(t *testing.T) {
	h := NewSizeHistogram()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.Add(i)
			}
		}()
	}
	wg.Wait()
	if h.Count() != 8000 {
		t.Errorf("expected 8000 samples, got %d", h.Count())
	}
}
