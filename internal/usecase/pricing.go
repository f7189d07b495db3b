package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"PawnPrice/internal/domain/models"
	domrepo "PawnPrice/internal/domain/repository"
	domsvc "PawnPrice/internal/domain/service"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/pkg/logger"
)

var (
	ErrIdentifierUnavailable = errors.New("images given but no identifier is configured")
	ErrNoMarketData          = errors.New("no marketplace data for item")
	ErrItemUnidentified      = errors.New("item brand and model unknown")
)

const (
	EventOfferPriced  = "offer.priced"
	OfferStatusActive = "active"

	// Vision certainty assumed when the seller typed brand and model.
	manualEntryConfidence = 70
)

// StageFunc receives progress updates while a quote is built.
type StageFunc func(models.StageUpdate)

// PricingService runs the pricing pipeline: identify, research, value, offer
// and score.
type PricingService struct {
	identifier domsvc.Identifier
	researcher domsvc.Researcher
	fmv        *pricing.FMVEngine
	offers     *pricing.OfferEngine
	scorer     *pricing.ConfidenceScorer
	fraud      *FraudAnalyzer
	store      domrepo.OfferStore
	warehouse  domrepo.Warehouse
	publisher  domrepo.EventPublisher
	metrics    domrepo.Metrics
	topic      string
	// Per-seller cap on offers accepted within 24h. Zero disables.
	spendingLimit float64
	log           *logger.Logger
	now           func() time.Time
}

type PricingDeps struct {
	Identifier domsvc.Identifier
	Researcher domsvc.Researcher
	FMV        *pricing.FMVEngine
	Offers     *pricing.OfferEngine
	Scorer     *pricing.ConfidenceScorer
	Fraud      *FraudAnalyzer
	Store      domrepo.OfferStore
	Warehouse  domrepo.Warehouse
	Publisher  domrepo.EventPublisher
	Metrics    domrepo.Metrics
	Topic      string
	Log        *logger.Logger
	Now        func() time.Time

	SpendingLimit float64
}

func NewPricingService(d PricingDeps) *PricingService {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &PricingService{
		identifier: d.Identifier,
		researcher: d.Researcher,
		fmv:        d.FMV,
		offers:     d.Offers,
		scorer:     d.Scorer,
		fraud:      d.Fraud,
		store:      d.Store,
		warehouse:  d.Warehouse,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		topic:      d.Topic,

		spendingLimit: d.SpendingLimit,
		log:           d.Log,
		now:           d.Now,
	}
}

func (s *PricingService) Research(ctx context.Context, req models.ResearchRequest) (*models.ResearchResult, error) {
	return s.researcher.Research(ctx, req)
}

func (s *PricingService) SourceHealth() []models.SourceHealth {
	return s.researcher.SourceHealth()
}

func (s *PricingService) CalculateFMV(req models.FMVRequest) models.FMVResult {
	return s.fmv.CalculateFMVWithSources(req.MarketplaceStats, req.Category, req.Condition, req.ExtraSources)
}

func (s *PricingService) CalculateOffer(req models.OfferRequest) (models.OfferResult, error) {
	return s.offers.CalculateOffer(pricing.OfferInput{
		FMV:            req.FMV,
		Condition:      req.Condition,
		Category:       req.Category,
		InventoryCount: req.InventoryCount,
		UserTrustScore: req.UserTrustScore,
		Confidence:     req.Confidence,
	})
}

func (s *PricingService) ScoreConfidence(req models.ConfidenceRequest) models.ConfidenceResult {
	match := true
	if req.DescriptionMatch != nil {
		match = *req.DescriptionMatch
	}
	return s.scorer.Score(pricing.ConfidenceInput{
		VisionConfidence: req.VisionConfidence,
		MarketplaceCount: req.MarketplaceDataCount,
		ConditionClear:   req.ConditionClear,
		DescriptionMatch: match,
		OfferValue:       req.OfferValue,
	})
}

type itemFacts struct {
	brand, model, category, condition string
	visionConfidence                  int
	conditionClear, descriptionMatch  bool
}

// Price builds a quote for req. onStage may be nil.
func (s *PricingService) Price(ctx context.Context, req models.PriceRequest, onStage StageFunc) (*models.PriceQuote, error) {
	emit := func(stage, msg string, data interface{}) {
		if onStage != nil {
			onStage(models.StageUpdate{Stage: stage, Message: msg, Data: data})
		}
	}

	quote := &models.PriceQuote{OfferID: req.OfferID, CreatedAt: s.now()}
	if quote.OfferID == "" {
		quote.OfferID = uuid.NewString()
	}
	log := s.log.With(logger.String("offer_id", quote.OfferID))

	emit(models.StageLooking, "Looking at your item", nil)
	facts, ident, err := s.identify(ctx, req)
	if err != nil {
		s.recordError("identify")
		return nil, err
	}
	quote.Identification = ident

	emit(models.StageResearching, fmt.Sprintf("Checking prices for %s %s", facts.brand, facts.model), ident)
	research, err := s.researcher.Research(ctx, models.ResearchRequest{
		Brand:       facts.brand,
		Model:       facts.model,
		Category:    facts.category,
		Condition:   facts.condition,
		UseLiveData: req.UseLiveData,
	})
	if err != nil {
		s.recordError("research")
		return nil, fmt.Errorf("research: %w", err)
	}
	quote.Research = research
	if research.Stats.Count == 0 {
		return nil, ErrNoMarketData
	}
	if research.DataFreshness == models.FreshnessStale {
		quote.Warnings = append(quote.Warnings, "marketplace data may be out of date")
	}

	emit(models.StageDeciding, "Working out an offer", research.Stats)
	quote.FMV = s.fmv.CalculateFMV(research.Stats, facts.category, facts.condition)
	quote.Offer, err = s.offers.CalculateOffer(pricing.OfferInput{
		FMV:            quote.FMV.FMV,
		Condition:      facts.condition,
		Category:       facts.category,
		InventoryCount: req.InventoryCount,
		UserTrustScore: req.UserTrustScore,
		Confidence:     quote.FMV.Confidence,
	})
	if err != nil {
		s.recordError("offer")
		return nil, err
	}
	quote.OfferToMarketRatio = math.Round(quote.Offer.OfferAmount/quote.FMV.FMV*1000) / 1000
	if s.overSpendingLimit(ctx, req.UserID, quote.Offer.OfferAmount) {
		quote.Warnings = append(quote.Warnings, "seller is over the daily spending limit")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		quote.Confidence = s.scorer.Score(pricing.ConfidenceInput{
			VisionConfidence: facts.visionConfidence,
			MarketplaceCount: research.Stats.Count,
			ConditionClear:   facts.conditionClear,
			DescriptionMatch: facts.descriptionMatch,
			OfferValue:       quote.Offer.OfferAmount,
		})
	}()
	go func() {
		defer wg.Done()
		if s.fraud == nil || !s.fraud.Enabled() {
			return
		}
		a, err := s.fraud.Analyze(ctx, models.FraudRequest{
			OfferID:     quote.OfferID,
			UserID:      req.UserID,
			OfferAmount: quote.Offer.OfferAmount,
			FMV:         quote.FMV.FMV,
			Category:    facts.category,
			Condition:   facts.condition,
			IPAddress:   req.IPAddress,
			Description: req.Description,
		})
		if err != nil {
			log.Warn("fraud analysis", logger.Error(err))
			return
		}
		quote.Fraud = &a
	}()
	wg.Wait()

	if quote.Fraud != nil && quote.Fraud.RecommendedAction != models.FraudApprove {
		quote.Warnings = append(quote.Warnings, "offer held for fraud review: "+string(quote.Fraud.RecommendedAction))
	}

	s.record(ctx, log, req, facts, quote)
	emit(models.StageDone, "Offer ready", quote)
	log.Info("offer priced",
		logger.Float64("fmv", quote.FMV.FMV),
		logger.Float64("offer", quote.Offer.OfferAmount),
		logger.String("action", quote.Confidence.Action),
	)
	return quote, nil
}

func (s *PricingService) identify(ctx context.Context, req models.PriceRequest) (itemFacts, *models.Identification, error) {
	facts := itemFacts{
		brand:            req.Brand,
		model:            req.Model,
		category:         req.Category,
		condition:        req.Condition,
		visionConfidence: manualEntryConfidence,
		descriptionMatch: true,
	}

	var ident *models.Identification
	if len(req.Images) > 0 {
		if s.identifier == nil {
			return facts, nil, ErrIdentifierUnavailable
		}
		id, err := s.identifier.Identify(ctx, req.Images, req.Description)
		if err != nil {
			return facts, nil, fmt.Errorf("identify: %w", err)
		}
		ident = id
		facts.visionConfidence = id.Confidence
		facts.conditionClear = id.ConditionClear
		facts.descriptionMatch = id.DescriptionMatch
		if facts.brand == "" {
			facts.brand = id.Brand
		}
		if facts.model == "" {
			facts.model = id.Model
		}
		if facts.category == "" {
			facts.category = id.Category
		}
		if facts.condition == "" {
			facts.condition = id.Condition
		}
	} else {
		facts.conditionClear = req.Condition != "" && req.Condition != models.ConditionUnknown
	}

	if facts.category == "" {
		facts.category = models.CategoryUnknown
	}
	if facts.condition == "" {
		facts.condition = models.ConditionUnknown
	}
	if facts.brand == "" && facts.model == "" {
		return facts, ident, ErrItemUnidentified
	}
	return facts, ident, nil
}

// record persists and publishes a finished quote. Failures only log.
func (s *PricingService) record(ctx context.Context, log *logger.Logger, req models.PriceRequest, facts itemFacts, q *models.PriceQuote) {
	if s.metrics != nil {
		s.metrics.OfferPriced(facts.category, q.Confidence.Action, q.Offer.OfferAmount)
	}

	if s.store != nil && req.UserID != "" {
		err := s.store.SaveOffer(ctx, &models.StoredOffer{
			OfferID:       q.OfferID,
			UserID:        req.UserID,
			Brand:         facts.brand,
			Model:         facts.model,
			Category:      facts.category,
			Condition:     facts.condition,
			FMV:           q.FMV.FMV,
			OriginalOffer: q.Offer.OfferAmount,
			CurrentPrice:  q.FMV.FMV,
			Status:        OfferStatusActive,
			CreatedAt:     q.CreatedAt,
			UpdatedAt:     q.CreatedAt,
		})
		if err != nil {
			s.recordError("store_offer")
			log.Warn("save offer", logger.Error(err))
		}
	}

	ev := models.PricingEvent{
		EventID:       uuid.NewString(),
		OfferID:       q.OfferID,
		UserID:        req.UserID,
		Brand:         facts.brand,
		Model:         facts.model,
		Category:      facts.category,
		Condition:     facts.condition,
		ListingCount:  q.Research.Stats.Count,
		FMV:           q.FMV.FMV,
		FMVConfidence: q.FMV.Confidence,
		OfferAmount:   q.Offer.OfferAmount,
		Action:        q.Confidence.Action,
		CreatedAt:     q.CreatedAt,
	}
	if q.Fraud != nil {
		ev.RiskScore = q.Fraud.RiskScore
		ev.RiskLevel = string(q.Fraud.RiskLevel)
	}
	if s.warehouse != nil {
		if err := s.warehouse.AppendPricingEvent(ctx, ev); err != nil {
			s.recordError("warehouse")
			log.Warn("append pricing event", logger.Error(err))
		}
	}
	if s.publisher != nil && s.topic != "" {
		if err := s.publisher.PublishEvent(ctx, s.topic, q.OfferID, EventOfferPriced, ev); err != nil {
			s.recordError("publish")
			log.Warn("publish pricing event", logger.Error(err))
		}
	}
}

func (s *PricingService) overSpendingLimit(ctx context.Context, userID string, amount float64) bool {
	if s.spendingLimit <= 0 || userID == "" || s.store == nil {
		return false
	}
	sig, err := s.store.UserSignals(ctx, userID, s.now())
	if err != nil {
		return false
	}
	return sig.TotalValue24h+amount > s.spendingLimit
}

func (s *PricingService) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
