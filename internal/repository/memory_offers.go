package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"PawnPrice/internal/domain/models"
	domrepo "PawnPrice/internal/domain/repository"
)

// MemoryOfferStore keeps offers in process. It backs the service when
// Postgres is disabled.
type MemoryOfferStore struct {
	mu     sync.RWMutex
	offers map[string]models.StoredOffer
	users  map[string]models.UserSignals
}

func NewMemoryOfferStore() *MemoryOfferStore {
	return &MemoryOfferStore{
		offers: make(map[string]models.StoredOffer),
		users:  make(map[string]models.UserSignals),
	}
}

// PutUser seeds account data for a seller.
func (s *MemoryOfferStore) PutUser(userID string, createdAt time.Time, trust float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = models.UserSignals{UserID: userID, CreatedAt: &createdAt, TrustScore: trust}
}

func (s *MemoryOfferStore) SaveOffer(_ context.Context, o *models.StoredOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.UserID != "" {
		if _, ok := s.users[o.UserID]; !ok {
			created := o.CreatedAt
			s.users[o.UserID] = models.UserSignals{UserID: o.UserID, CreatedAt: &created, TrustScore: 50}
		}
	}
	stored := *o
	if stored.Status == "" {
		stored.Status = "active"
	}
	if prev, ok := s.offers[o.OfferID]; ok {
		stored.CreatedAt = prev.CreatedAt
		stored.OriginalOffer = prev.OriginalOffer
		stored.PriceLocked = prev.PriceLocked
		stored.ViewCount = prev.ViewCount
	}
	s.offers[o.OfferID] = stored
	return nil
}

func (s *MemoryOfferStore) ActiveOffers(_ context.Context, olderThan time.Time, after models.OfferCursor, limit int) ([]models.StoredOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoredOffer
	for _, o := range s.offers {
		if o.Status == "active" && !o.PriceLocked && !o.CreatedAt.After(olderThan) && pastCursor(o, after) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OfferID < out[j].OfferID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOfferStore) UpdatePrice(_ context.Context, change models.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[change.OfferID]
	if !ok || o.PriceLocked {
		return domrepo.ErrNotFound
	}
	o.CurrentPrice = change.NewPrice
	o.UpdatedAt = change.ChangedAt
	s.offers[change.OfferID] = o
	return nil
}

func (s *MemoryOfferStore) UserSignals(_ context.Context, userID string, now time.Time) (*models.UserSignals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	sig := u
	for _, o := range s.offers {
		if o.UserID != userID {
			continue
		}
		sig.OfferCount++
		age := now.Sub(o.CreatedAt)
		if age <= time.Hour {
			sig.Offers1h++
		}
		if age <= 24*time.Hour {
			sig.Offers24h++
			sig.TotalValue24h += o.OriginalOffer
		}
		if age <= 7*24*time.Hour {
			sig.Offers7d++
		}
	}
	return &sig, nil
}

// Offer returns a stored offer by id.
func (s *MemoryOfferStore) Offer(id string) (models.StoredOffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offers[id]
	return o, ok
}

func (s *MemoryOfferStore) Health(context.Context) error { return nil }

func (s *MemoryOfferStore) Close() error { return nil }

func pastCursor(o models.StoredOffer, after models.OfferCursor) bool {
	if o.CreatedAt.Equal(after.CreatedAt) {
		return o.OfferID > after.OfferID
	}
	return o.CreatedAt.After(after.CreatedAt)
}
