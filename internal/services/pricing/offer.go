package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

// ErrInvalidFMV is returned when an offer is requested for a non-positive
// fair market value.
var ErrInvalidFMV = errors.New("fmv must be positive")

const (
	offerTTL = 24 * time.Hour

	saturationThreshold = 5
	saturationStep      = 0.03
	saturationMax       = 0.15
	trustBaseline       = 1.0
	trustStep           = 0.10
	trustBonusMax       = 0.05

	DefaultConditionMultiplier = 0.50
	DefaultCategoryMargin      = 0.50
	DefaultMinOfferFloor       = 5.0
)

// DefaultConditionMultipliers scale FMV by physical condition.
var DefaultConditionMultipliers = map[string]float64{
	models.ConditionNew:     1.0,
	models.ConditionLikeNew: 0.925,
	models.ConditionGood:    0.80,
	models.ConditionFair:    0.625,
	models.ConditionPoor:    0.40,
	models.ConditionUnknown: DefaultConditionMultiplier,
}

// DefaultCategoryMargins is the fraction of FMV the shop pays per category.
var DefaultCategoryMargins = map[string]float64{
	models.CategoryConsumerElectronics: 0.60,
	models.CategoryGaming:              0.60,
	models.CategoryPhonesTablets:       0.65,
	models.CategoryClothingFashion:     0.45,
	models.CategoryCollectibles:        0.50,
	models.CategoryBooksMedia:          0.35,
	models.CategorySmallAppliances:     0.50,
	models.CategoryToolsEquipment:      0.55,
	models.CategoryUnknown:             DefaultCategoryMargin,
}

// OfferConfig holds the lookup tables and safety limits for the offer engine.
type OfferConfig struct {
	ConditionMultipliers map[string]float64
	CategoryMargins      map[string]float64
	MinOfferFloor        float64
	CategoryCeilings     map[string]float64
}

// DefaultOfferConfig returns the built-in tables with a $5 floor and a $2000
// ceiling on consumer electronics.
func DefaultOfferConfig() OfferConfig {
	return OfferConfig{
		ConditionMultipliers: DefaultConditionMultipliers,
		CategoryMargins:      DefaultCategoryMargins,
		MinOfferFloor:        DefaultMinOfferFloor,
		CategoryCeilings:     map[string]float64{models.CategoryConsumerElectronics: 2000.0},
	}
}

// Validate checks every known condition and category has an entry in
// (0, 1] and that ceilings sit above the floor.
func (c OfferConfig) Validate() error {
	for _, cond := range []string{
		models.ConditionNew, models.ConditionLikeNew, models.ConditionGood,
		models.ConditionFair, models.ConditionPoor,
	} {
		m, ok := c.ConditionMultipliers[cond]
		if !ok {
			return fmt.Errorf("condition multiplier missing for %q", cond)
		}
		if m <= 0 || m > 1 {
			return fmt.Errorf("condition multiplier for %q out of range: %v", cond, m)
		}
	}
	for _, cat := range CommonCategories {
		m, ok := c.CategoryMargins[cat]
		if !ok {
			return fmt.Errorf("category margin missing for %q", cat)
		}
		if m <= 0 || m > 1 {
			return fmt.Errorf("category margin for %q out of range: %v", cat, m)
		}
	}
	if c.MinOfferFloor < 0 {
		return fmt.Errorf("min offer floor must be non-negative")
	}
	for cat, ceiling := range c.CategoryCeilings {
		if ceiling < c.MinOfferFloor {
			return fmt.Errorf("ceiling for %q (%v) below floor (%v)", cat, ceiling, c.MinOfferFloor)
		}
	}
	return nil
}

// OfferInput is everything CalculateOffer needs.
type OfferInput struct {
	FMV            float64
	Condition      string
	Category       string
	InventoryCount int
	UserTrustScore float64
	Confidence     int
}

type OfferEngine struct {
	options
	cfg OfferConfig
}

func NewOfferEngine(cfg OfferConfig, opts ...Option) (*OfferEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("offer config: %w", err)
	}
	return &OfferEngine{options: buildOptions(opts), cfg: cfg}, nil
}

func (e *OfferEngine) ConditionMultiplier(condition string) float64 {
	if m, ok := e.cfg.ConditionMultipliers[condition]; ok {
		return m
	}
	return DefaultConditionMultiplier
}

func (e *OfferEngine) CategoryMargin(category string) float64 {
	if m, ok := e.cfg.CategoryMargins[category]; ok {
		return m
	}
	return DefaultCategoryMargin
}

// CalculateOffer computes a purchase offer. A non-positive FMV is rejected
// with ErrInvalidFMV instead of being silently lifted to the floor.
func (e *OfferEngine) CalculateOffer(in OfferInput) (models.OfferResult, error) {
	if in.FMV <= 0 || math.IsNaN(in.FMV) || math.IsInf(in.FMV, 0) {
		return models.OfferResult{}, fmt.Errorf("%w: got %v", ErrInvalidFMV, in.FMV)
	}

	condMult := e.ConditionMultiplier(in.Condition)
	margin := e.CategoryMargin(in.Category)
	base := in.FMV * condMult * margin

	adjustments := Adjustments(in.InventoryCount, in.UserTrustScore)
	raw := base * adjustments[models.AdjustmentMultiplier]

	offer, floored, capped := e.applyLimits(raw, in.Category)

	result := models.OfferResult{
		OfferAmount: offer,
		BaseCalculation: models.BaseCalculation{
			FMV:                 in.FMV,
			ConditionMultiplier: condMult,
			CategoryMargin:      margin,
			BaseOffer:           roundTo(base, 2),
		},
		Adjustments:    adjustments,
		ExpiresAt:      e.now().Add(offerTTL).UTC(),
		Confidence:     in.Confidence,
		FloorApplied:   floored,
		CeilingApplied: capped,
	}

	e.log.Info("offer calculated",
		logger.Float64("fmv", in.FMV),
		logger.String("condition", in.Condition),
		logger.String("category", in.Category),
		logger.Float64("base_offer", base),
		logger.Float64("offer", offer),
		logger.Float64("multiplier", adjustments[models.AdjustmentMultiplier]),
	)
	return result, nil
}

// Adjustments composes the inventory-saturation penalty and seller trust
// bonus into a single multiplier. The penalty is stored as a negative value.
func Adjustments(inventoryCount int, trustScore float64) map[string]float64 {
	adj := map[string]float64{
		models.AdjustmentInventorySaturation: 0,
		models.AdjustmentUserTrustBonus:      0,
		models.AdjustmentMultiplier:          1,
	}

	if inventoryCount > saturationThreshold {
		penalty := math.Min(saturationMax, float64(inventoryCount-saturationThreshold)*saturationStep)
		adj[models.AdjustmentInventorySaturation] = -penalty
		adj[models.AdjustmentMultiplier] *= 1 - penalty
	}

	if trustScore > trustBaseline {
		bonus := math.Min(trustBonusMax, (trustScore-trustBaseline)*trustStep)
		adj[models.AdjustmentUserTrustBonus] = bonus
		adj[models.AdjustmentMultiplier] *= 1 + bonus
	}

	return adj
}

// applyLimits clamps to [floor, ceiling] and rounds to a whole unit. A
// fractional floor rounds up and a fractional ceiling rounds down so the
// rounded amount stays inside the limits.
func (e *OfferEngine) applyLimits(offer float64, category string) (float64, bool, bool) {
	floored, capped := false, false
	if offer < e.cfg.MinOfferFloor {
		offer = e.cfg.MinOfferFloor
		floored = true
	}
	ceiling, hasCeiling := e.cfg.CategoryCeilings[category]
	if hasCeiling && offer > ceiling {
		offer = ceiling
		capped = true
	}

	offer = roundTo(offer, 0)
	if offer < e.cfg.MinOfferFloor {
		offer = math.Ceil(e.cfg.MinOfferFloor)
	}
	if hasCeiling && offer > ceiling {
		offer = math.Floor(ceiling)
	}
	return offer, floored, capped
}
