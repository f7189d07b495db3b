package pricing

import (
	"math"
	"sort"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

// minListingsForIQR is the smallest sample for which quartiles are trusted.
const minListingsForIQR = 4

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between closest ranks, the same definition as numpy's
// default. values need not be sorted. Returns 0 for an empty slice.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return percentileSorted(sorted, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	q = math.Max(0, math.Min(100, q))

	pos := (float64(n) - 1) * q / 100
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func prices(listings []models.Listing) []float64 {
	out := make([]float64, len(listings))
	for i, l := range listings {
		out[i] = l.Price
	}
	return out
}

// FilterOutliers drops listings whose price falls outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Inputs with fewer than four listings are
// returned unchanged. The returned count is the number removed.
func FilterOutliers(listings []models.Listing, log *logger.Logger) ([]models.Listing, int) {
	if len(listings) < minListingsForIQR {
		return listings, 0
	}

	sorted := prices(listings)
	sort.Float64s(sorted)
	q1 := percentileSorted(sorted, 25)
	q3 := percentileSorted(sorted, 75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	kept := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price >= lower && l.Price <= upper {
			kept = append(kept, l)
		}
	}

	removed := len(listings) - len(kept)
	if removed > 0 && log != nil {
		log.Info("outliers filtered",
			logger.Int("total", len(listings)),
			logger.Int("removed", removed),
			logger.Float64("lower_bound", lower),
			logger.Float64("upper_bound", upper),
		)
	}
	return kept, removed
}

// RecencyWeight weights a sale by age: under 30 days 1.0, under 60 days
// 0.8, older 0.5. Undated sales are assumed recent.
func RecencyWeight(soldDate *time.Time, now time.Time) float64 {
	if soldDate == nil {
		return 1.0
	}
	days := int(now.Sub(*soldDate).Hours() / 24)
	switch {
	case days < 30:
		return 1.0
	case days < 60:
		return 0.8
	default:
		return 0.5
	}
}

// RecencyWeights returns one RecencyWeight per listing.
func RecencyWeights(listings []models.Listing, now time.Time) []float64 {
	w := make([]float64, len(listings))
	for i, l := range listings {
		w[i] = RecencyWeight(l.SoldDate, now)
	}
	return w
}

// ComputeStatistics summarises listings. Median and percentiles are always
// unweighted. Mean is weighted when weights has one entry per listing with
// a positive sum; otherwise it is the plain mean. StdDev is the population
// standard deviation of the prices.
func ComputeStatistics(listings []models.Listing, weights []float64) models.MarketplaceStats {
	if len(listings) == 0 {
		return models.MarketplaceStats{Percentiles: map[string]float64{}}
	}

	values := prices(listings)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	plainMean := sum / n

	mean := plainMean
	if len(weights) == len(values) {
		var ws, wsum float64
		for i, v := range values {
			ws += v * weights[i]
			wsum += weights[i]
		}
		if wsum > 0 {
			mean = ws / wsum
		}
	}

	variance := 0.0
	for _, v := range values {
		d := v - plainMean
		variance += d * d
	}
	variance /= n

	minPrice := sorted[0]
	maxPrice := sorted[len(sorted)-1]
	median := percentileSorted(sorted, 50)

	return models.MarketplaceStats{
		Count:  len(values),
		Median: median,
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Percentiles: map[string]float64{
			"p25": percentileSorted(sorted, 25),
			"p50": median,
			"p75": percentileSorted(sorted, 75),
		},
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		Listings: listings,
	}
}
