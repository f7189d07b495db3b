package usecase

import (
	"context"
	"errors"
	"time"

	"PawnPrice/internal/domain/models"
	domrepo "PawnPrice/internal/domain/repository"
	"PawnPrice/internal/services/fraud"
	"PawnPrice/pkg/logger"
)

var ErrFraudDisabled = errors.New("fraud detection is disabled")

const EventFraudAssessed = "fraud.assessed"

// FraudAnalyzer enriches a request with stored seller history, scores it
// and records the assessment.
type FraudAnalyzer struct {
	enabled   bool
	detector  *fraud.Detector
	offers    domrepo.OfferStore
	warehouse domrepo.Warehouse
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	topic     string
	log       *logger.Logger
	now       func() time.Time
}

type FraudAnalyzerDeps struct {
	Enabled   bool
	Detector  *fraud.Detector
	Offers    domrepo.OfferStore
	Warehouse domrepo.Warehouse
	Publisher domrepo.EventPublisher
	Metrics   domrepo.Metrics
	Topic     string
	Log       *logger.Logger
}

func NewFraudAnalyzer(d FraudAnalyzerDeps) *FraudAnalyzer {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &FraudAnalyzer{
		enabled:   d.Enabled,
		detector:  d.Detector,
		offers:    d.Offers,
		warehouse: d.Warehouse,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		topic:     d.Topic,
		log:       d.Log,
		now:       time.Now,
	}
}

func (a *FraudAnalyzer) Enabled() bool { return a.enabled && a.detector != nil }

func (a *FraudAnalyzer) Patterns() models.FraudPatterns {
	return a.detector.Rules().Patterns()
}

// Analyze scores req. Warehouse and bus failures are logged; they do not
// fail the assessment.
func (a *FraudAnalyzer) Analyze(ctx context.Context, req models.FraudRequest) (models.FraudAssessment, error) {
	if !a.Enabled() {
		return models.FraudAssessment{}, ErrFraudDisabled
	}

	a.enrich(ctx, &req)
	assessment := a.detector.Analyze(req)

	if a.metrics != nil {
		a.metrics.FraudAssessed(string(assessment.RiskLevel), string(assessment.RecommendedAction), assessment.RiskScore)
	}
	if a.warehouse != nil {
		if err := a.warehouse.AppendFraudAssessment(ctx, req, assessment); err != nil {
			a.log.Warn("store fraud assessment", logger.String("offer_id", req.OfferID), logger.Error(err))
		}
	}
	if a.publisher != nil && a.topic != "" {
		if err := a.publisher.PublishEvent(ctx, a.topic, req.OfferID, EventFraudAssessed, assessment); err != nil {
			a.log.Warn("publish fraud assessment", logger.String("offer_id", req.OfferID), logger.Error(err))
		}
	}
	return assessment, nil
}

// enrich fills fields the caller left empty from the offer store.
func (a *FraudAnalyzer) enrich(ctx context.Context, req *models.FraudRequest) {
	if req.UserID != "" && a.offers != nil {
		sig, err := a.offers.UserSignals(ctx, req.UserID, a.now())
		switch {
		case errors.Is(err, domrepo.ErrNotFound):
			a.log.Debug("no stored history for user", logger.String("user_id", req.UserID))
		case err != nil:
			a.log.Warn("load user signals", logger.String("user_id", req.UserID), logger.Error(err))
		default:
			applySignals(req, sig)
		}
	}
	if req.UserTrustScore == nil {
		trust := models.DefaultTrustScore
		req.UserTrustScore = &trust
	}
}

func applySignals(req *models.FraudRequest, sig *models.UserSignals) {
	if req.UserCreatedAt == nil {
		req.UserCreatedAt = sig.CreatedAt
	}
	if req.UserTrustScore == nil {
		trust := sig.TrustScore
		req.UserTrustScore = &trust
	}
	if req.UserOfferCount == 0 {
		req.UserOfferCount = sig.OfferCount
	}
	if req.Offers1h == 0 && req.Offers24h == 0 && req.Offers7d == 0 {
		req.Offers1h = sig.Offers1h
		req.Offers24h = sig.Offers24h
		req.Offers7d = sig.Offers7d
	}
	if req.TotalValue24h == 0 {
		req.TotalValue24h = sig.TotalValue24h
	}
}
