package repository

import (
	"context"
	"fmt"
	"strings"

	"PawnPrice/internal/domain/models"
	pkgch "PawnPrice/pkg/clickhouse"
	"PawnPrice/pkg/logger"
)

// WarehouseSchema is applied by CHWarehouse.Init.
var WarehouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS pricing_events (
		event_id       String,
		offer_id       String,
		user_id        String,
		brand          LowCardinality(String),
		model          String,
		category       LowCardinality(String),
		condition      LowCardinality(String),
		listing_count  UInt32,
		fmv            Float64,
		fmv_confidence UInt8,
		offer_amount   Float64,
		action         LowCardinality(String),
		risk_score     UInt8,
		risk_level     LowCardinality(String),
		created_at     DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (category, created_at)`,
	`CREATE TABLE IF NOT EXISTS fraud_assessments (
		assessment_id      String,
		offer_id           String,
		user_id            String,
		category           LowCardinality(String),
		offer_amount       Float64,
		fmv                Float64,
		risk_score         UInt8,
		risk_level         LowCardinality(String),
		recommended_action LowCardinality(String),
		confidence         Float64,
		price_anomaly      Float64,
		velocity           Float64,
		pattern_match      Float64,
		user_trust         Float64,
		flag_types         Array(String),
		explanation        String,
		ip_address         String,
		analyzed_at        DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (risk_level, analyzed_at)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		offer_id          String,
		old_price         Float64,
		new_price         Float64,
		reduction_percent Float64,
		reason            String,
		velocity          Float64,
		days_active       UInt32,
		changed_at        DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (offer_id, changed_at)`,
}

var (
	pricingEventColumns = []string{"event_id", "offer_id", "user_id", "brand", "model", "category", "condition",
		"listing_count", "fmv", "fmv_confidence", "offer_amount", "action", "risk_score", "risk_level", "created_at"}
	fraudColumns = []string{"assessment_id", "offer_id", "user_id", "category", "offer_amount", "fmv",
		"risk_score", "risk_level", "recommended_action", "confidence",
		"price_anomaly", "velocity", "pattern_match", "user_trust",
		"flag_types", "explanation", "ip_address", "analyzed_at"}
	priceHistoryColumns = []string{"offer_id", "old_price", "new_price", "reduction_percent", "reason",
		"velocity", "days_active", "changed_at"}
)

func insertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
}

// CHWarehouse appends analytics rows to ClickHouse.
type CHWarehouse struct {
	ch  *pkgch.Client
	log *logger.Logger
}

func NewCHWarehouse(ch *pkgch.Client, log *logger.Logger) *CHWarehouse {
	if log == nil {
		log = logger.Nop()
	}
	return &CHWarehouse{ch: ch, log: log}
}

func (w *CHWarehouse) Init(ctx context.Context) error {
	return w.ch.InitSchema(ctx, WarehouseSchema)
}

func (w *CHWarehouse) AppendPricingEvent(ctx context.Context, ev models.PricingEvent) error {
	return w.insert(ctx, "pricing_events", pricingEventColumns, [][]any{pricingEventRow(ev)})
}

func (w *CHWarehouse) AppendFraudAssessment(ctx context.Context, req models.FraudRequest, a models.FraudAssessment) error {
	return w.insert(ctx, "fraud_assessments", fraudColumns, [][]any{fraudRow(req, a)})
}

func (w *CHWarehouse) AppendPriceChanges(ctx context.Context, changes []models.PriceChange) error {
	rows := make([][]any, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, priceChangeRow(c))
	}
	return w.insert(ctx, "price_history", priceHistoryColumns, rows)
}

func (w *CHWarehouse) insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if err := w.ch.InsertBatch(ctx, insertSQL(table, columns), rows); err != nil {
		w.log.Error("clickhouse insert failed",
			logger.String("table", table),
			logger.Int("rows", len(rows)),
			logger.Error(err))
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (w *CHWarehouse) Health(ctx context.Context) error {
	return w.ch.Health(ctx)
}

func (w *CHWarehouse) Close() error {
	return w.ch.Close()
}

func pricingEventRow(ev models.PricingEvent) []any {
	return []any{
		ev.EventID, ev.OfferID, ev.UserID, ev.Brand, ev.Model, ev.Category, ev.Condition,
		uint32(ev.ListingCount), ev.FMV, uint8(ev.FMVConfidence), ev.OfferAmount, ev.Action,
		uint8(ev.RiskScore), ev.RiskLevel, ev.CreatedAt.UTC(),
	}
}

func fraudRow(req models.FraudRequest, a models.FraudAssessment) []any {
	flagTypes := make([]string, 0, len(a.Flags))
	for _, f := range a.Flags {
		flagTypes = append(flagTypes, f.Type)
	}
	return []any{
		a.ID, a.OfferID, req.UserID, req.Category, req.OfferAmount, req.FMV,
		uint8(a.RiskScore), string(a.RiskLevel), string(a.RecommendedAction), a.Confidence,
		a.Breakdown[models.SignalPriceAnomaly], a.Breakdown[models.SignalVelocity],
		a.Breakdown[models.SignalPatternMatch], a.Breakdown[models.SignalUserTrust],
		flagTypes, a.Explanation, req.IPAddress, a.AnalyzedAt.UTC(),
	}
}

func priceChangeRow(c models.PriceChange) []any {
	return []any{
		c.OfferID, c.OldPrice, c.NewPrice, c.ReductionPercent, c.Reason,
		c.Velocity, uint32(c.DaysActive), c.ChangedAt.UTC(),
	}
}
