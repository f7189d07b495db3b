package pricing

import (
	"PawnPrice/internal/domain/models"
	"PawnPrice/pkg/logger"
)

// Component names of the confidence score.
const (
	ComponentVisionCertainty      = "vision_certainty"
	ComponentTextCorroboration    = "text_corroboration"
	ComponentDatabaseMatch        = "database_match"
	ComponentConditionReliability = "condition_reliability"
)

// Weights in percent so the combination stays in integer arithmetic.
var confidenceWeightPct = map[string]int{
	ComponentVisionCertainty:      40,
	ComponentTextCorroboration:    15,
	ComponentDatabaseMatch:        25,
	ComponentConditionReliability: 20,
}

const (
	thresholdAutoPrice = 80
	thresholdFlag      = 60
	highValueOffer     = 100.0
)

// ConfidenceInput carries the identification and marketplace signals.
type ConfidenceInput struct {
	VisionConfidence int
	MarketplaceCount int
	ConditionClear   bool
	DescriptionMatch bool
	OfferValue       float64
}

type ConfidenceScorer struct {
	options
}

func NewConfidenceScorer(opts ...Option) *ConfidenceScorer {
	return &ConfidenceScorer{options: buildOptions(opts)}
}

// Score decides between auto-pricing, flagging for review and escalating.
func (s *ConfidenceScorer) Score(in ConfidenceInput) models.ConfidenceResult {
	vision := clampInt(in.VisionConfidence, 0, 100)
	text := 50
	if in.DescriptionMatch {
		text = 100
	}
	cond := 60
	if in.ConditionClear {
		cond = 100
	}

	scores := map[string]int{
		ComponentVisionCertainty:      vision,
		ComponentTextCorroboration:    text,
		ComponentDatabaseMatch:        DatabaseMatchScore(in.MarketplaceCount),
		ComponentConditionReliability: cond,
	}

	total := 0
	for name, score := range scores {
		total += score * confidenceWeightPct[name]
	}
	// total is in hundredths; round half up.
	overall := (total + 50) / 100

	action := ConfidenceAction(overall, in.OfferValue)

	weights := make(map[string]float64, len(confidenceWeightPct))
	for name, pct := range confidenceWeightPct {
		weights[name] = float64(pct) / 100
	}

	s.log.Debug("confidence scored",
		logger.Int("overall", overall),
		logger.String("action", action),
		logger.Any("components", scores),
	)

	return models.ConfidenceResult{
		OverallConfidence: overall,
		Action:            action,
		Details: models.ConfidenceDetails{
			ComponentScores: scores,
			Weights:         weights,
			ThresholdMet:    overall >= thresholdAutoPrice,
		},
	}
}

// DatabaseMatchScore steps with the number of marketplace listings found.
func DatabaseMatchScore(count int) int {
	switch {
	case count >= 50:
		return 100
	case count >= 20:
		return 85
	case count >= 10:
		return 70
	case count >= 5:
		return 55
	default:
		return 30
	}
}

// ConfidenceAction: 80+ auto-prices, 60-79 flags offers over $100, below
// 60 always escalates.
func ConfidenceAction(overall int, offerValue float64) string {
	switch {
	case overall >= thresholdAutoPrice:
		return models.ActionAutoPrice
	case overall >= thresholdFlag:
		if offerValue > highValueOffer {
			return models.ActionFlagForReview
		}
		return models.ActionAutoPrice
	default:
		return models.ActionEscalate
	}
}
