package pricing

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"PawnPrice/internal/domain/models"
)

func listingsAt(prices ...float64) []models.Listing {
	out := make([]models.Listing, len(prices))
	for i, p := range prices {
		out[i] = models.Listing{Title: "item", Price: p, Source: models.SourceEbay}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 25, 7},
		{"p25 even", []float64{4, 1, 3, 2}, 25, 1.75},
		{"p50 even", []float64{1, 2, 3, 4}, 50, 2.5},
		{"p75 even", []float64{1, 2, 3, 4}, 75, 3.25},
		{"p25 odd", []float64{10, 20, 30, 40, 50}, 25, 20},
		{"p75 odd", []float64{50, 40, 30, 20, 10}, 75, 40},
		{"p0", []float64{3, 1, 2}, 0, 1},
		{"p100", []float64{3, 1, 2}, 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.values, tt.q); !almostEqual(got, tt.want) {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.q, got, tt.want)
			}
		})
	}
}

func TestComputeStatisticsOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(40)
		ps := make([]float64, n)
		for j := range ps {
			ps[j] = 1 + rng.Float64()*500
		}
		s := ComputeStatistics(listingsAt(ps...), nil)

		p25, p50, p75 := s.Percentiles["p25"], s.Percentiles["p50"], s.Percentiles["p75"]
		if !(*s.MinPrice <= p25 && p25 <= p50 && p50 <= p75 && p75 <= *s.MaxPrice) {
			t.Fatalf("ordering violated for %v: min=%v p25=%v p50=%v p75=%v max=%v",
				ps, *s.MinPrice, p25, p50, p75, *s.MaxPrice)
		}
		if s.Median != p50 {
			t.Fatalf("median %v != p50 %v", s.Median, p50)
		}
	}
}

func TestComputeStatistics(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := ComputeStatistics(nil, nil)
		if s.Count != 0 || s.Mean != 0 || s.Median != 0 || s.StdDev != 0 {
			t.Errorf("expected zero stats, got %+v", s)
		}
		if s.MinPrice != nil || s.MaxPrice != nil {
			t.Errorf("expected nil min/max on empty input")
		}
	})

	t.Run("weighted mean, unweighted median", func(t *testing.T) {
		s := ComputeStatistics(listingsAt(100, 200), []float64{1, 0.5})
		if !almostEqual(s.Mean, 200.0/1.5) {
			t.Errorf("Mean = %v, want %v", s.Mean, 200.0/1.5)
		}
		if s.Median != 150 {
			t.Errorf("Median = %v, want 150", s.Median)
		}
		if !almostEqual(s.StdDev, 50) {
			t.Errorf("StdDev = %v, want 50", s.StdDev)
		}
	})

	t.Run("mismatched weights fall back to plain mean", func(t *testing.T) {
		s := ComputeStatistics(listingsAt(100, 200, 300), []float64{1})
		if s.Mean != 200 {
			t.Errorf("Mean = %v, want 200", s.Mean)
		}
	})

	t.Run("zero weights fall back to plain mean", func(t *testing.T) {
		s := ComputeStatistics(listingsAt(100, 300), []float64{0, 0})
		if s.Mean != 200 {
			t.Errorf("Mean = %v, want 200", s.Mean)
		}
	})
}

func TestFilterOutliers(t *testing.T) {
	tests := []struct {
		name        string
		prices      []float64
		wantKept    int
		wantRemoved int
	}{
		{"fewer than four unchanged", []float64{1, 1000, 5}, 3, 0},
		{"high outlier removed", []float64{10, 11, 12, 13, 14, 100}, 5, 1},
		{"no outliers", []float64{10, 12, 14, 16, 18}, 5, 0},
		{"bounds inclusive", []float64{5, 5, 5, 5, 6}, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, removed := FilterOutliers(listingsAt(tt.prices...), nil)
			if len(kept) != tt.wantKept || removed != tt.wantRemoved {
				t.Errorf("kept=%d removed=%d, want kept=%d removed=%d", len(kept), removed, tt.wantKept, tt.wantRemoved)
			}
		})
	}
}

func TestFilterOutliersIdempotent(t *testing.T) {
	inputs := [][]float64{
		{10, 11, 12, 13, 14, 100},
		{10, 12, 14, 16, 18},
		{5, 5, 5, 5, 6},
		{120, 118, 119, 117, 116.5, 40, 300, 121, 122},
	}

	for _, in := range inputs {
		once, _ := FilterOutliers(listingsAt(in...), nil)
		twice, removed := FilterOutliers(once, nil)
		if removed != 0 || len(twice) != len(once) {
			t.Errorf("not idempotent for %v: once=%d twice=%d", in, len(once), len(twice))
		}
		for i := range once {
			if once[i].Price != twice[i].Price {
				t.Errorf("order changed at %d for %v", i, in)
			}
		}
	}
}

func TestRecencyWeight(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ago := func(days int) *time.Time {
		ts := now.AddDate(0, 0, -days)
		return &ts
	}

	tests := []struct {
		name string
		sold *time.Time
		want float64
	}{
		{"undated", nil, 1.0},
		{"today", ago(0), 1.0},
		{"29 days", ago(29), 1.0},
		{"30 days", ago(30), 0.8},
		{"59 days", ago(59), 0.8},
		{"60 days", ago(60), 0.5},
		{"200 days", ago(200), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecencyWeight(tt.sold, now); got != tt.want {
				t.Errorf("RecencyWeight = %v, want %v", got, tt.want)
			}
		})
	}
}
