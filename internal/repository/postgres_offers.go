package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PawnPrice/internal/domain/models"
	domrepo "PawnPrice/internal/domain/repository"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/postgres"
)

// OfferSchema is applied by PostgresOfferStore.Init.
var OfferSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id     TEXT PRIMARY KEY,
		trust_score NUMERIC(5,2) NOT NULL DEFAULT 50,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		offer_id       TEXT PRIMARY KEY,
		user_id        TEXT          NOT NULL DEFAULT '',
		brand          TEXT          NOT NULL DEFAULT '',
		model          TEXT          NOT NULL DEFAULT '',
		category       TEXT          NOT NULL DEFAULT '',
		condition      TEXT          NOT NULL DEFAULT '',
		fmv            NUMERIC(12,2) NOT NULL DEFAULT 0,
		original_offer NUMERIC(12,2) NOT NULL,
		current_price  NUMERIC(12,2) NOT NULL,
		view_count     INTEGER       NOT NULL DEFAULT 0,
		status         TEXT          NOT NULL DEFAULT 'active',
		price_locked   BOOLEAN       NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_offers_user_created ON offers(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_offers_status_created ON offers(status, created_at, offer_id)`,
}

const (
	upsertUserSQL = `INSERT INTO users (user_id, created_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	upsertOfferSQL = `INSERT INTO offers (offer_id, user_id, brand, model, category, condition,
			fmv, original_offer, current_price, view_count, status, price_locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (offer_id) DO UPDATE SET
			fmv = EXCLUDED.fmv,
			current_price = EXCLUDED.current_price,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	activeOffersSQL = `SELECT offer_id, user_id, brand, model, category, condition, fmv,
			original_offer, current_price, view_count, status, price_locked, created_at, updated_at
		FROM offers
		WHERE status = 'active' AND NOT price_locked AND created_at <= $1
			AND (created_at, offer_id) > ($2, $3)
		ORDER BY created_at, offer_id
		LIMIT $4`

	updatePriceSQL = `UPDATE offers SET current_price = $2, updated_at = $3
		WHERE offer_id = $1 AND NOT price_locked`

	userSignalsSQL = `SELECT u.created_at, u.trust_score,
			COUNT(o.offer_id),
			COUNT(o.offer_id) FILTER (WHERE o.created_at >= $2),
			COUNT(o.offer_id) FILTER (WHERE o.created_at >= $3),
			COUNT(o.offer_id) FILTER (WHERE o.created_at >= $4),
			COALESCE(SUM(o.original_offer) FILTER (WHERE o.created_at >= $3), 0)
		FROM users u
		LEFT JOIN offers o ON o.user_id = u.user_id
		WHERE u.user_id = $1
		GROUP BY u.user_id, u.created_at, u.trust_score`
)

// PostgresOfferStore implements OfferStore on lib/pq.
type PostgresOfferStore struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewPostgresOfferStore(client *postgres.Client, log *logger.Logger) *PostgresOfferStore {
	if log == nil {
		log = logger.Nop()
	}
	return &PostgresOfferStore{client: client, log: log}
}

func (s *PostgresOfferStore) Init(ctx context.Context) error {
	return s.client.Migrate(ctx, OfferSchema)
}

func (s *PostgresOfferStore) SaveOffer(ctx context.Context, o *models.StoredOffer) error {
	return s.client.WithTx(ctx, func(tx *sql.Tx) error {
		if o.UserID != "" {
			if _, err := tx.ExecContext(ctx, upsertUserSQL, o.UserID, o.CreatedAt); err != nil {
				return fmt.Errorf("save user: %w", err)
			}
		}
		status := o.Status
		if status == "" {
			status = "active"
		}
		_, err := tx.ExecContext(ctx, upsertOfferSQL,
			o.OfferID, o.UserID, o.Brand, o.Model, o.Category, o.Condition,
			o.FMV, o.OriginalOffer, o.CurrentPrice, o.ViewCount, status, o.PriceLocked,
			o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save offer %s: %w", o.OfferID, err)
		}
		return nil
	})
}

func (s *PostgresOfferStore) ActiveOffers(ctx context.Context, olderThan time.Time, after models.OfferCursor, limit int) ([]models.StoredOffer, error) {
	rows, err := s.client.DB().QueryContext(ctx, activeOffersSQL, olderThan, after.CreatedAt, after.OfferID, limit)
	if err != nil {
		return nil, fmt.Errorf("active offers: %w", err)
	}
	defer rows.Close()

	var out []models.StoredOffer
	for rows.Next() {
		var o models.StoredOffer
		if err := rows.Scan(&o.OfferID, &o.UserID, &o.Brand, &o.Model, &o.Category, &o.Condition,
			&o.FMV, &o.OriginalOffer, &o.CurrentPrice, &o.ViewCount, &o.Status, &o.PriceLocked,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresOfferStore) UpdatePrice(ctx context.Context, change models.PriceChange) error {
	res, err := s.client.DB().ExecContext(ctx, updatePriceSQL, change.OfferID, change.NewPrice, change.ChangedAt)
	if err != nil {
		return fmt.Errorf("update price %s: %w", change.OfferID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update price %s: %w", change.OfferID, domrepo.ErrNotFound)
	}
	return nil
}

func (s *PostgresOfferStore) UserSignals(ctx context.Context, userID string, now time.Time) (*models.UserSignals, error) {
	sig := &models.UserSignals{UserID: userID}
	var created time.Time
	err := s.client.DB().QueryRowContext(ctx, userSignalsSQL, userID,
		now.Add(-time.Hour), now.Add(-24*time.Hour), now.Add(-7*24*time.Hour),
	).Scan(&created, &sig.TrustScore, &sig.OfferCount, &sig.Offers1h, &sig.Offers24h, &sig.Offers7d, &sig.TotalValue24h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user signals %s: %w", userID, err)
	}
	sig.CreatedAt = &created
	return sig, nil
}

func (s *PostgresOfferStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *PostgresOfferStore) Close() error {
	return s.client.Close()
}
