package models

import "time"

// Data quality labels for an FMV estimate.
const (
	DataQualityHigh   = "High"
	DataQualityMedium = "Medium"
	DataQualityLow    = "Low"
)

type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ComparableSale is a listing chosen as pricing evidence because its price
// is close to the FMV.
type ComparableSale struct {
	Source    string     `json:"source"`
	Title     string     `json:"title"`
	Price     float64    `json:"price"`
	SoldDate  *time.Time `json:"sold_date,omitempty"`
	Condition string     `json:"condition"`
	URL       string     `json:"url,omitempty"`
}

// ConfidenceFactors is the additive breakdown behind FMVResult.Confidence.
type ConfidenceFactors struct {
	DataPoints       int    `json:"data_points"`
	Recency          int    `json:"recency"`
	PriceVariance    int    `json:"price_variance"`
	CategoryCoverage int    `json:"category_coverage"`
	RecencyLabel     string `json:"recency_label"`
	VarianceLabel    string `json:"variance_label"`
	Explanation      string `json:"explanation"`
}

type FMVResult struct {
	FMV               float64            `json:"fmv"`
	Confidence        int                `json:"confidence"`
	DataQuality       string             `json:"data_quality"`
	Range             PriceRange         `json:"range"`
	ComparableSales   []ComparableSale   `json:"comparable_sales"`
	ConfidenceFactors ConfidenceFactors  `json:"confidence_factors"`
	Sources           map[string]float64 `json:"sources"`
}

type BaseCalculation struct {
	FMV                 float64 `json:"fmv"`
	ConditionMultiplier float64 `json:"condition_multiplier"`
	CategoryMargin      float64 `json:"category_margin"`
	BaseOffer           float64 `json:"base_offer"`
}

// Keys of OfferResult.Adjustments.
const (
	AdjustmentInventorySaturation = "inventory_saturation"
	AdjustmentUserTrustBonus      = "user_trust_bonus"
	AdjustmentMultiplier          = "multiplier"
)

type OfferResult struct {
	OfferAmount     float64            `json:"offer_amount"`
	BaseCalculation BaseCalculation    `json:"base_calculation"`
	Adjustments     map[string]float64 `json:"adjustments"`
	ExpiresAt       time.Time          `json:"expires_at"`
	Confidence      int                `json:"confidence"`
	FloorApplied    bool               `json:"floor_applied,omitempty"`
	CeilingApplied  bool               `json:"ceiling_applied,omitempty"`
}

// Confidence-scorer actions.
const (
	ActionAutoPrice     = "auto_price"
	ActionFlagForReview = "flag_for_review"
	ActionEscalate      = "escalate"
)

type ConfidenceDetails struct {
	ComponentScores map[string]int     `json:"component_scores"`
	Weights         map[string]float64 `json:"weights"`
	ThresholdMet    bool               `json:"threshold_met"`
}

type ConfidenceResult struct {
	OverallConfidence int               `json:"overall_confidence"`
	Action            string            `json:"action"`
	Details           ConfidenceDetails `json:"details"`
}

// Optimizer reason codes. Some are formatted with the values that drove
// the decision, so callers should match on prefix.
const (
	ReasonHighVelocity    = "high_velocity"
	ReasonMediumVelocity  = "medium_velocity"
	ReasonNoDecayCriteria = "no_decay_criteria_met"
	ReasonTimeDecay       = "time_decay"
	ReasonFloorEnforced   = "price_floor_enforced"
	ReasonDeltaTooSmall   = "delta_too_small"
)

type PriceOptimizationResult struct {
	OfferID          string  `json:"offer_id,omitempty"`
	ShouldAdjust     bool    `json:"should_adjust"`
	CurrentPrice     float64 `json:"current_price"`
	RecommendedPrice float64 `json:"recommended_price"`
	ReductionPercent float64 `json:"reduction_percent"`
	Reason           string  `json:"reason"`
	Velocity         float64 `json:"velocity"`
	DaysActive       int     `json:"days_active"`
	PriceFloor       float64 `json:"price_floor"`
}

// OfferSnapshot is the slice of a persisted offer the optimizer needs.
type OfferSnapshot struct {
	OfferID       string    `json:"offer_id" validate:"required"`
	CurrentPrice  float64   `json:"current_price" validate:"gt=0"`
	OriginalOffer float64   `json:"original_offer" validate:"gt=0"`
	CreatedAt     time.Time `json:"created_at" validate:"required"`
	ViewCount     int       `json:"view_count" validate:"gte=0"`
}
