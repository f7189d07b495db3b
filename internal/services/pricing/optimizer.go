package pricing

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

const (
	highVelocity       = 5.0 // views per day
	mediumVelocity     = 2.0
	marginFloorFactor  = 1.20
	minAbsoluteDelta   = 1.0
	minRelativeDelta   = 0.01
	defaultBatchWorker = 4
)

// decayTier reduces the price of offers within [minDays, maxDays] that have
// fewer than maxViews views. maxDays 0 means open ended, maxViews 0 means
// any view count.
type decayTier struct {
	minDays   int
	maxDays   int
	maxViews  int
	reduction float64
}

// First match wins.
var decaySchedule = []decayTier{
	{minDays: 30, reduction: 0.15},
	{minDays: 14, maxDays: 29, maxViews: 20, reduction: 0.10},
	{minDays: 7, maxDays: 13, maxViews: 10, reduction: 0.05},
}

// PriceOptimizer recommends price decays for listings that are not selling.
type PriceOptimizer struct {
	options
	workers int
}

func NewPriceOptimizer(workers int, opts ...Option) *PriceOptimizer {
	if workers <= 0 {
		workers = defaultBatchWorker
	}
	if n := runtime.GOMAXPROCS(0); workers > n*4 {
		workers = n * 4
	}
	return &PriceOptimizer{options: buildOptions(opts), workers: workers}
}

// DaysActive is the number of whole days since createdAt.
func DaysActive(createdAt, now time.Time) int {
	return int(math.Floor(now.Sub(createdAt).Hours() / 24))
}

// AnalyzeOffer recommends a new price for one offer. The recommendation is
// never below originalOffer * 1.20.
func (o *PriceOptimizer) AnalyzeOffer(currentPrice, originalOffer float64, createdAt time.Time, viewCount int, now time.Time) models.PriceOptimizationResult {
	days := DaysActive(createdAt, now)
	velocity := float64(viewCount) / float64(max(days, 1))
	floor := originalOffer * marginFloorFactor

	res := models.PriceOptimizationResult{
		CurrentPrice:     currentPrice,
		RecommendedPrice: currentPrice,
		Velocity:         velocity,
		DaysActive:       days,
		PriceFloor:       floor,
	}

	switch {
	case velocity >= highVelocity:
		res.Reason = fmt.Sprintf("%s_%.1f_views_per_day", models.ReasonHighVelocity, velocity)
		return res
	case velocity >= mediumVelocity:
		res.Reason = fmt.Sprintf("%s_%.1f_views_per_day", models.ReasonMediumVelocity, velocity)
		return res
	}

	reduction := timeDecay(days, viewCount)
	if reduction == 0 {
		res.Reason = models.ReasonNoDecayCriteria
		return res
	}

	recommended := currentPrice * (1 - reduction)
	actual := reduction
	reason := fmt.Sprintf("%s_%dpct_%ddays_%dviews", models.ReasonTimeDecay, int(math.Round(reduction*100)), days, viewCount)
	if recommended < floor {
		recommended = floor
		actual = 0
		if currentPrice > 0 {
			actual = (currentPrice - floor) / currentPrice
		}
		reason = fmt.Sprintf("%s_at_%.0f", models.ReasonFloorEnforced, floor)
	}

	// Only changes below both thresholds are dropped.
	delta := currentPrice - recommended
	if currentPrice <= 0 || (delta < minAbsoluteDelta && delta/currentPrice < minRelativeDelta) {
		res.Reason = models.ReasonDeltaTooSmall
		return res
	}

	// Rounding must not dip under the floor.
	rounded := roundTo(recommended, 2)
	if rounded < floor {
		rounded = math.Ceil(floor*100) / 100
	}

	res.ShouldAdjust = true
	res.RecommendedPrice = rounded
	res.ReductionPercent = actual * 100
	res.Reason = reason

	o.log.Debug("price decay recommended",
		logger.Float64("current_price", currentPrice),
		logger.Float64("recommended_price", rounded),
		logger.Int("days_active", days),
		logger.Float64("velocity", velocity),
		logger.String("reason", reason),
	)
	return res
}

func timeDecay(days, views int) float64 {
	for _, t := range decaySchedule {
		if days < t.minDays {
			continue
		}
		if t.maxDays > 0 && days > t.maxDays {
			continue
		}
		if t.maxViews > 0 && views >= t.maxViews {
			continue
		}
		return t.reduction
	}
	return 0
}

// BatchAnalyze runs AnalyzeOffer over every snapshot concurrently. Results
// are keyed by offer id; a later duplicate id overwrites an earlier one.
func (o *PriceOptimizer) BatchAnalyze(offers []models.OfferSnapshot) map[string]models.PriceOptimizationResult {
	now := o.now()
	results := make([]models.PriceOptimizationResult, len(offers))

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for i := range offers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			s := offers[i]
			r := o.AnalyzeOffer(s.CurrentPrice, s.OriginalOffer, s.CreatedAt, s.ViewCount, now)
			r.OfferID = s.OfferID
			results[i] = r
		}(i)
	}
	wg.Wait()

	out := make(map[string]models.PriceOptimizationResult, len(offers))
	adjust := 0
	for _, r := range results {
		out[r.OfferID] = r
		if r.ShouldAdjust {
			adjust++
		}
	}

	o.log.Info("batch analysis complete",
		logger.Int("total_offers", len(offers)),
		logger.Int("adjustments_recommended", adjust),
	)
	return out
}
