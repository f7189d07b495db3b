package models

import "time"

// PriceQuote is the combined outcome of the pricing pipeline.
type PriceQuote struct {
	OfferID            string           `json:"offer_id"`
	Identification     *Identification  `json:"identification,omitempty"`
	Research           *ResearchResult  `json:"research"`
	FMV                FMVResult        `json:"fmv"`
	Offer              OfferResult      `json:"offer"`
	Confidence         ConfidenceResult `json:"confidence"`
	Fraud              *FraudAssessment `json:"fraud,omitempty"`
	OfferToMarketRatio float64          `json:"offer_to_market_ratio"`
	Warnings           []string         `json:"warnings,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// PricingEvent is the row appended to the warehouse and published on the bus
// each time an offer is priced.
type PricingEvent struct {
	EventID       string    `json:"event_id"`
	OfferID       string    `json:"offer_id"`
	UserID        string    `json:"user_id,omitempty"`
	Brand         string    `json:"brand"`
	Model         string    `json:"model"`
	Category      string    `json:"category"`
	Condition     string    `json:"condition"`
	ListingCount  int       `json:"listing_count"`
	FMV           float64   `json:"fmv"`
	FMVConfidence int       `json:"fmv_confidence"`
	OfferAmount   float64   `json:"offer_amount"`
	Action        string    `json:"action"`
	RiskScore     int       `json:"risk_score"`
	RiskLevel     string    `json:"risk_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// StoredOffer is an offer row in the offer store.
type StoredOffer struct {
	OfferID       string
	UserID        string
	Brand         string
	Model         string
	Category      string
	Condition     string
	FMV           float64
	OriginalOffer float64
	CurrentPrice  float64
	ViewCount     int
	Status        string
	PriceLocked   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OfferCursor is the position after the last offer of a page, ordered by
// (CreatedAt, OfferID). The zero value starts from the oldest offer.
type OfferCursor struct {
	CreatedAt time.Time
	OfferID   string
}

// PriceChange is written to the price history each time the optimizer
// moves a price.
type PriceChange struct {
	OfferID          string    `json:"offer_id"`
	OldPrice         float64   `json:"old_price"`
	NewPrice         float64   `json:"new_price"`
	ReductionPercent float64   `json:"reduction_percent"`
	Reason           string    `json:"reason"`
	Velocity         float64   `json:"velocity"`
	DaysActive       int       `json:"days_active"`
	ChangedAt        time.Time `json:"changed_at"`
}

// OptimizerSummary reports a single optimizer run.
type OptimizerSummary struct {
	RunID    string        `json:"run_id"`
	DryRun   bool          `json:"dry_run"`
	Analyzed int           `json:"analyzed"`
	Adjusted int           `json:"adjusted"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration_ns"`
}

// Pipeline stages reported to stream subscribers.
const (
	StageLooking     = "looking"
	StageResearching = "researching"
	StageDeciding    = "deciding"
	StageDone        = "done"
	StageError       = "error"
)

type StageUpdate struct {
	Stage   string      `json:"stage"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
