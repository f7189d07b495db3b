package repository

import (
	"context"
	"errors"
	"time"

	"PawnPrice/internal/domain/models"
)

var ErrNotFound = errors.New("not found")

// OfferStore is the transactional store of offers and seller history.
type OfferStore interface {
	SaveOffer(ctx context.Context, o *models.StoredOffer) error
	// ActiveOffers returns up to limit active, unlocked offers created at
	// or before olderThan and positioned after the cursor, oldest first.
	ActiveOffers(ctx context.Context, olderThan time.Time, after models.OfferCursor, limit int) ([]models.StoredOffer, error)
	UpdatePrice(ctx context.Context, change models.PriceChange) error
	// UserSignals returns ErrNotFound for unknown users.
	UserSignals(ctx context.Context, userID string, now time.Time) (*models.UserSignals, error)
	Health(ctx context.Context) error
	Close() error
}

// Warehouse is the append-only analytics store.
type Warehouse interface {
	Init(ctx context.Context) error
	AppendPricingEvent(ctx context.Context, ev models.PricingEvent) error
	AppendFraudAssessment(ctx context.Context, req models.FraudRequest, a models.FraudAssessment) error
	AppendPriceChanges(ctx context.Context, changes []models.PriceChange) error
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher publishes domain events to the bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error
	Close() error
}

type Metrics interface {
	OfferPriced(category, action string, amount float64)
	FraudAssessed(level, action string, score int)
	MarketplaceFetch(source string, seconds float64, err error)
	OptimizerDecision(outcome string)
	RecordError(kind string)
}
