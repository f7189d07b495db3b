package pricing

import (
	"fmt"
	"math"
	"sort"

	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

// Source weight names.
const (
	WeightEbaySoldMedian = "ebay_sold_median"
	WeightEbaySoldMean   = "ebay_sold_mean"
	WeightAmazonUsed     = "amazon_used"
	WeightGoogleShopping = "google_shopping"
	WeightOtherSold      = "other_sold"
)

// DefaultSourceWeights sums to 1 across every source the engine knows.
// A new source is integrated by adding an entry here.
var DefaultSourceWeights = map[string]float64{
	WeightEbaySoldMedian: 0.45,
	WeightEbaySoldMean:   0.10,
	WeightAmazonUsed:     0.20,
	WeightGoogleShopping: 0.15,
	WeightOtherSold:      0.10,
}

// CommonCategories earn full category-coverage confidence.
var CommonCategories = []string{
	models.CategoryConsumerElectronics,
	models.CategoryGaming,
	models.CategoryPhonesTablets,
	models.CategoryClothingFashion,
	models.CategoryCollectibles,
	models.CategoryBooksMedia,
	models.CategorySmallAppliances,
	models.CategoryToolsEquipment,
}

const (
	maxComparableSales = 5
	rangeLowFactor     = 0.80
	rangeHighFactor    = 1.20
	recentSaleDays     = 30
)

type FMVEngine struct {
	options
	weights map[string]float64
	common  map[string]struct{}
}

func NewFMVEngine(opts ...Option) *FMVEngine {
	common := make(map[string]struct{}, len(CommonCategories))
	for _, c := range CommonCategories {
		common[c] = struct{}{}
	}
	return &FMVEngine{
		options: buildOptions(opts),
		weights: DefaultSourceWeights,
		common:  common,
	}
}

// SourceWeights renormalizes the weight table over the given sources.
// Unknown names are ignored. The result sums to 1 unless no known source
// is present, in which case it is empty.
func (e *FMVEngine) SourceWeights(available []string) map[string]float64 {
	total := 0.0
	present := make(map[string]float64, len(available))
	for _, name := range available {
		w, ok := e.weights[name]
		if !ok || w <= 0 {
			continue
		}
		if _, dup := present[name]; dup {
			continue
		}
		present[name] = w
		total += w
	}
	if total == 0 {
		return map[string]float64{}
	}
	for name, w := range present {
		present[name] = w / total
	}
	return present
}

// CalculateFMV estimates fair market value from eBay-derived statistics.
func (e *FMVEngine) CalculateFMV(stats models.MarketplaceStats, category, condition string) models.FMVResult {
	return e.CalculateFMVWithSources(stats, category, condition, nil)
}

// CalculateFMVWithSources is CalculateFMV with additional per-source values
// (for example amazon_used) keyed by weight name.
func (e *FMVEngine) CalculateFMVWithSources(stats models.MarketplaceStats, category, condition string, extra map[string]float64) models.FMVResult {
	values := make(map[string]float64)
	if stats.Count > 0 && stats.Median > 0 {
		values[WeightEbaySoldMedian] = stats.Median
	}
	if stats.Count > 0 && stats.Mean > 0 {
		values[WeightEbaySoldMean] = stats.Mean
	}
	for name, v := range extra {
		if _, known := e.weights[name]; !known {
			e.log.Warn("ignoring unknown fmv source", logger.String("source", name))
			continue
		}
		if v > 0 {
			values[name] = v
		}
	}

	available := make([]string, 0, len(values))
	for name := range values {
		available = append(available, name)
	}
	sort.Strings(available)

	weights := e.SourceWeights(available)
	fmv := 0.0
	for _, name := range available {
		fmv += values[name] * weights[name]
	}

	factors := e.confidenceFactors(stats, fmv, category)
	confidence := clampInt(factors.DataPoints+factors.Recency+factors.PriceVariance+factors.CategoryCoverage, 0, 100)

	result := models.FMVResult{
		FMV:         roundTo(fmv, 2),
		Confidence:  confidence,
		DataQuality: dataQuality(stats.Count),
		Range: models.PriceRange{
			Low:  roundTo(fmv*rangeLowFactor, 2),
			High: roundTo(fmv*rangeHighFactor, 2),
		},
		ComparableSales:   comparableSales(stats.Listings, fmv),
		ConfidenceFactors: factors,
		Sources:           values,
	}

	e.log.Info("fmv calculated",
		logger.String("category", category),
		logger.String("condition", condition),
		logger.Int("listing_count", stats.Count),
		logger.Float64("fmv", result.FMV),
		logger.Int("confidence", result.Confidence),
		logger.String("data_quality", result.DataQuality),
	)
	return result
}

func dataQuality(count int) string {
	switch {
	case count >= 50:
		return models.DataQualityHigh
	case count >= 20:
		return models.DataQualityMedium
	default:
		return models.DataQualityLow
	}
}

// comparableSales picks the listings closest to fmv, relative distance
// ascending, original order on ties.
func comparableSales(listings []models.Listing, fmv float64) []models.ComparableSale {
	if len(listings) == 0 {
		return []models.ComparableSale{}
	}

	idx := make([]int, len(listings))
	for i := range idx {
		idx[i] = i
	}
	distance := func(p float64) float64 {
		if fmv > 0 {
			return math.Abs(p-fmv) / fmv
		}
		return math.Abs(p)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return distance(listings[idx[a]].Price) < distance(listings[idx[b]].Price)
	})

	n := len(idx)
	if n > maxComparableSales {
		n = maxComparableSales
	}
	out := make([]models.ComparableSale, 0, n)
	for _, i := range idx[:n] {
		l := listings[i]
		out = append(out, models.ComparableSale{
			Source:    l.Source,
			Title:     l.Title,
			Price:     l.Price,
			SoldDate:  l.SoldDate,
			Condition: l.Condition,
			URL:       l.URL,
		})
	}
	return out
}

func (e *FMVEngine) confidenceFactors(stats models.MarketplaceStats, fmv float64, category string) models.ConfidenceFactors {
	var f models.ConfidenceFactors

	switch n := stats.Count; {
	case n >= 50:
		f.DataPoints = 40
	case n >= 20:
		f.DataPoints = 32
	case n >= 10:
		f.DataPoints = 24
	case n >= 3:
		f.DataPoints = 16
	default:
		f.DataPoints = 8
	}

	now := e.now()
	dated, recent := 0, 0
	for _, l := range stats.Listings {
		if l.SoldDate == nil {
			continue
		}
		dated++
		if now.Sub(*l.SoldDate).Hours()/24 <= recentSaleDays {
			recent++
		}
	}
	recentShare := 0.0
	if dated == 0 {
		f.Recency, f.RecencyLabel = 10, "unknown"
	} else {
		recentShare = float64(recent) / float64(dated)
		switch {
		case recentShare >= 0.70:
			f.Recency, f.RecencyLabel = 25, "excellent"
		case recentShare >= 0.50:
			f.Recency, f.RecencyLabel = 20, "good"
		case recentShare >= 0.30:
			f.Recency, f.RecencyLabel = 15, "fair"
		default:
			f.Recency, f.RecencyLabel = 10, "stale"
		}
	}

	cv := 0.0
	if fmv <= 0 {
		f.PriceVariance, f.VarianceLabel = 0, "unknown"
	} else {
		cv = stats.StdDev / fmv
		switch {
		case cv < 0.15:
			f.PriceVariance, f.VarianceLabel = 20, "low"
		case cv < 0.30:
			f.PriceVariance, f.VarianceLabel = 12, "moderate"
		case cv < 0.50:
			f.PriceVariance, f.VarianceLabel = 5, "high"
		default:
			f.PriceVariance, f.VarianceLabel = 0, "very_high"
		}
	}

	coverage := "uncommon"
	if _, ok := e.common[category]; ok {
		f.CategoryCoverage = 15
		coverage = "common"
	} else {
		f.CategoryCoverage = 8
	}

	recency := "no dated sales"
	if dated > 0 {
		recency = fmt.Sprintf("%.0f%% sold in the last %d days", recentShare*100, recentSaleDays)
	}
	variance := "price spread unknown"
	if fmv > 0 {
		variance = fmt.Sprintf("price spread %.0f%% of FMV", cv*100)
	}
	f.Explanation = fmt.Sprintf("%d listings; %s; %s; %s category", stats.Count, recency, variance, coverage)
	return f
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
