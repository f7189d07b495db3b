package marketplace

import (
	"context"
	"errors"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/domain/repository"
	"PawnPrice/internal/domain/service"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/pkg/cache"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/util"
)

const (
	ebayDaysBack  = 90
	ebayLimit     = 100
	facebookLimit = 30

	popularThreshold = 50
	midThreshold     = 10
)

// CacheTTL holds research cache lifetimes by listing volume. A zero
// duration disables caching for that tier.
type CacheTTL struct {
	Popular time.Duration
	Mid     time.Duration
	Rare    time.Duration
}

// DefaultCacheTTL is 4h for popular items, 24h for mid volume and no
// caching for rare items.
func DefaultCacheTTL() CacheTTL {
	return CacheTTL{Popular: 4 * time.Hour, Mid: 24 * time.Hour}
}

// TTLFor picks the tier for a result with count listings.
func (t CacheTTL) TTLFor(count int) time.Duration {
	switch {
	case count >= popularThreshold:
		return t.Popular
	case count >= midThreshold:
		return t.Mid
	default:
		return t.Rare
	}
}

// Aggregator combines eBay and Facebook listings into marketplace stats.
type Aggregator struct {
	ebay     service.MarketplaceSource
	facebook service.MarketplaceSource
	cache    cache.Service
	ttl      CacheTTL
	metrics  repository.Metrics
	log      *logger.Logger
	now      func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithCache(c cache.Service, ttl CacheTTL) AggregatorOption {
	return func(a *Aggregator) {
		a.cache = c
		a.ttl = ttl
	}
}

func WithMetrics(m repository.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator wires the sources. facebook may be nil when scraping is
// disabled.
func NewAggregator(ebay, facebook service.MarketplaceSource, log *logger.Logger, opts ...AggregatorOption) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	a := &Aggregator{
		ebay:     ebay,
		facebook: facebook,
		ttl:      DefaultCacheTTL(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func researchKey(query, category, condition string) string {
	return cache.Key("research", query, category, condition)
}

// Research gathers listings for brand+model. Source failures degrade the
// result to stale rather than failing the call.
func (a *Aggregator) Research(ctx context.Context, req models.ResearchRequest) (*models.ResearchResult, error) {
	query := util.SearchQuery(req.Brand, req.Model)
	live := req.Live()
	key := researchKey(query, req.Category, req.Condition)

	if a.cache != nil {
		var cached models.ResearchResult
		err := a.cache.Get(ctx, key, &cached)
		if err == nil {
			cached.CacheHit = true
			a.log.Debug("research cache hit", logger.String("query", query))
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.log.Warn("research cache read failed", logger.String("key", key), logger.Error(err))
		}
	}

	a.log.Info("researching product",
		logger.String("query", query),
		logger.String("category", req.Category),
		logger.Bool("use_live_data", live))

	freshness := models.FreshnessLive
	checked := make([]string, 0, 2)
	var all []models.Listing

	ebayListings, err := a.fetch(ctx, a.ebay, service.SearchQuery{
		Query:     query,
		Condition: req.Condition,
		DaysBack:  ebayDaysBack,
		Limit:     ebayLimit,
	})
	if err != nil {
		a.log.Error("ebay research failed", logger.String("query", query), logger.Error(err))
		freshness = models.FreshnessStale
	} else {
		checked = append(checked, a.ebay.Name())
		all = append(all, ebayListings...)
	}

	if live && a.facebook != nil {
		fbListings, err := a.fetch(ctx, a.facebook, service.SearchQuery{
			Query: query,
			Limit: facebookLimit,
		})
		if err != nil {
			a.log.Error("facebook research failed", logger.String("query", query), logger.Error(err))
		} else {
			checked = append(checked, a.facebook.Name())
			all = append(all, fbListings...)
		}
	}

	if len(all) == 0 {
		a.log.Warn("no marketplace data", logger.String("query", query))
		freshness = models.FreshnessStale
	}

	now := a.now()
	kept, removed := pricing.FilterOutliers(all, a.log)
	stats := pricing.ComputeStatistics(kept, pricing.RecencyWeights(kept, now))
	stats.Listings = kept

	result := &models.ResearchResult{
		Query:          query,
		Stats:          stats,
		SourcesChecked: checked,
		DataFreshness:  freshness,
		RemovedCount:   removed,
		ResearchedAt:   now.UTC(),
	}

	a.log.Info("product research completed",
		logger.Int("total_listings", len(all)),
		logger.Int("filtered_listings", len(kept)),
		logger.Float64("median_price", stats.Median),
		logger.String("data_freshness", freshness))

	a.store(ctx, key, result)
	return result, nil
}

func (a *Aggregator) fetch(ctx context.Context, src service.MarketplaceSource, q service.SearchQuery) ([]models.Listing, error) {
	if src == nil {
		return nil, errors.New("source not configured")
	}
	start := time.Now()
	listings, err := src.Search(ctx, q)
	if a.metrics != nil {
		a.metrics.MarketplaceFetch(src.Name(), time.Since(start).Seconds(), err)
	}
	return listings, err
}

// store caches live results only; stale data would pin a degraded answer.
func (a *Aggregator) store(ctx context.Context, key string, result *models.ResearchResult) {
	if a.cache == nil || result.DataFreshness != models.FreshnessLive {
		return
	}
	ttl := a.ttl.TTLFor(result.Stats.Count)
	if ttl <= 0 {
		return
	}
	if err := a.cache.Set(ctx, key, result, ttl); err != nil {
		a.log.Warn("research cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// SourceHealth reports request health for each configured source.
func (a *Aggregator) SourceHealth() []models.SourceHealth {
	out := make([]models.SourceHealth, 0, 2)
	for _, src := range []service.MarketplaceSource{a.ebay, a.facebook} {
		if src != nil {
			out = append(out, src.Health())
		}
	}
	return out
}
