package usecase

import (
	"context"
	"fmt"

	"PawnPrice/internal/domain/models"
	pkgkafka "PawnPrice/pkg/kafka"
	"PawnPrice/pkg/logger"
)

// OfferSubmittedHandler runs fraud analysis for offers submitted by other
// services.
type OfferSubmittedHandler struct {
	topic    string
	analyzer *FraudAnalyzer
	log      *logger.Logger
}

func NewOfferSubmittedHandler(topic string, analyzer *FraudAnalyzer, log *logger.Logger) *OfferSubmittedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OfferSubmittedHandler{topic: topic, analyzer: analyzer, log: log}
}

func (h *OfferSubmittedHandler) Topic() string { return h.topic }

// incoming message: an enveloped or bare FraudRequest
func (h *OfferSubmittedHandler) Handle(ctx context.Context, b []byte) error {
	_, req, err := pkgkafka.DecodeEvent[models.FraudRequest](b)
	if err != nil {
		return err
	}
	if req.OfferID == "" {
		return fmt.Errorf("offer submitted without offer_id")
	}
	if req.Category == "" {
		req.Category = models.CategoryUnknown
	}
	if req.Condition == "" {
		req.Condition = models.ConditionUnknown
	}

	a, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		return err
	}
	h.log.Debug("submitted offer assessed",
		logger.String("offer_id", req.OfferID),
		logger.Int("risk_score", a.RiskScore),
		logger.String("action", string(a.RecommendedAction)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*OfferSubmittedHandler)(nil)
