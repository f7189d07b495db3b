package marketplace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/domain/service"
	"PawnPrice/pkg/cache"
	"PawnPrice/pkg/logger"
)

type fakeSource struct {
	name     string
	listings []models.Listing
	err      error
	queries  []service.SearchQuery
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(_ context.Context, q service.SearchQuery) ([]models.Listing, error) {
	f.queries = append(f.queries, q)
	return f.listings, f.err
}

func (f *fakeSource) Health() models.SourceHealth { return models.SourceHealth{Source: f.name} }

type fetchRecorder struct {
	sources []string
	errs    int
}

func (r *fetchRecorder) OfferPriced(string, string, float64) {}
func (r *fetchRecorder) FraudAssessed(string, string, int)   {}
func (r *fetchRecorder) OptimizerDecision(string)            {}
func (r *fetchRecorder) RecordError(string)                  {}
func (r *fetchRecorder) MarketplaceFetch(source string, _ float64, err error) {
	r.sources = append(r.sources, source)
	if err != nil {
		r.errs++
	}
}

func priced(source string, prices ...float64) []models.Listing {
	out := make([]models.Listing, len(prices))
	for i, p := range prices {
		out[i] = models.Listing{Title: fmt.Sprintf("%s %d", source, i), Price: p, Source: source}
	}
	return out
}

func TestAggregatorResearch(t *testing.T) {
	ebay := &fakeSource{name: models.SourceEbay, listings: priced(models.SourceEbay, 100, 110, 120, 130, 1000)}
	fb := &fakeSource{name: models.SourceFacebook, listings: priced(models.SourceFacebook, 115)}
	rec := &fetchRecorder{}

	a := NewAggregator(ebay, fb, logger.Nop(), WithMetrics(rec),
		WithAggregatorClock(func() time.Time { return ebayNow }))
	res, err := a.Research(context.Background(), models.ResearchRequest{
		Brand: "Sony", Model: "WH-1000XM4", Category: "Consumer Electronics", Condition: "Good",
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Query != "Sony WH-1000XM4" {
		t.Errorf("query = %q", res.Query)
	}
	if res.DataFreshness != models.FreshnessLive || res.CacheHit {
		t.Errorf("freshness=%q cacheHit=%v", res.DataFreshness, res.CacheHit)
	}
	if len(res.SourcesChecked) != 2 {
		t.Errorf("sources = %v", res.SourcesChecked)
	}
	if res.RemovedCount != 1 || res.Stats.Count != 5 || len(res.Stats.Listings) != 5 {
		t.Errorf("removed=%d count=%d", res.RemovedCount, res.Stats.Count)
	}
	if res.Stats.Median != 115 {
		t.Errorf("median = %v, want 115", res.Stats.Median)
	}

	eq := ebay.queries[0]
	if eq.DaysBack != 90 || eq.Limit != 100 || eq.Condition != "Good" {
		t.Errorf("ebay query = %+v", eq)
	}
	if fb.queries[0].Limit != 30 {
		t.Errorf("facebook limit = %d", fb.queries[0].Limit)
	}
	if len(rec.sources) != 2 || rec.errs != 0 {
		t.Errorf("metrics = %+v", rec)
	}
}

func TestAggregatorDegradesToStale(t *testing.T) {
	ebay := &fakeSource{name: models.SourceEbay, err: errors.New("down")}
	fb := &fakeSource{name: models.SourceFacebook, listings: priced(models.SourceFacebook, 50, 60)}

	a := NewAggregator(ebay, fb, logger.Nop())
	res, err := a.Research(context.Background(), models.ResearchRequest{Brand: "a", Model: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if res.DataFreshness != models.FreshnessStale {
		t.Errorf("freshness = %q, want stale", res.DataFreshness)
	}
	if len(res.SourcesChecked) != 1 || res.SourcesChecked[0] != models.SourceFacebook {
		t.Errorf("sources = %v", res.SourcesChecked)
	}
	if res.Stats.Count != 2 {
		t.Errorf("count = %d", res.Stats.Count)
	}
}

func TestAggregatorSkipsFacebookWhenNotLive(t *testing.T) {
	ebay := &fakeSource{name: models.SourceEbay}
	fb := &fakeSource{name: models.SourceFacebook}
	live := false

	a := NewAggregator(ebay, fb, logger.Nop())
	res, err := a.Research(context.Background(), models.ResearchRequest{Brand: "a", Model: "b", UseLiveData: &live})
	if err != nil {
		t.Fatal(err)
	}
	if len(fb.queries) != 0 {
		t.Error("facebook queried for non-live request")
	}
	if res.DataFreshness != models.FreshnessStale || res.Stats.Count != 0 {
		t.Errorf("empty result: freshness=%q count=%d", res.DataFreshness, res.Stats.Count)
	}
}

func TestAggregatorCachesByTier(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()

	prices := make([]float64, 12)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	ebay := &fakeSource{name: models.SourceEbay, listings: priced(models.SourceEbay, prices...)}
	a := NewAggregator(ebay, nil, logger.Nop(), WithCache(mem, DefaultCacheTTL()))

	req := models.ResearchRequest{Brand: "DeWalt", Model: "DCD771", Category: "Tools & Equipment"}
	first, err := a.Research(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first call should miss")
	}

	second, err := a.Research(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || second.Stats.Count != 12 {
		t.Errorf("second: hit=%v count=%d", second.CacheHit, second.Stats.Count)
	}
	if len(ebay.queries) != 1 {
		t.Errorf("ebay queried %d times, want 1", len(ebay.queries))
	}
}

func TestAggregatorDoesNotCacheRareItems(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()

	ebay := &fakeSource{name: models.SourceEbay, listings: priced(models.SourceEbay, 10, 12, 14)}
	a := NewAggregator(ebay, nil, logger.Nop(), WithCache(mem, DefaultCacheTTL()))

	req := models.ResearchRequest{Brand: "Rare", Model: "Thing"}
	for i := 0; i < 2; i++ {
		if _, err := a.Research(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	if len(ebay.queries) != 2 {
		t.Errorf("ebay queried %d times, want 2", len(ebay.queries))
	}
	if mem.Len() != 0 {
		t.Errorf("cache holds %d entries, want 0", mem.Len())
	}
}

func TestCacheTTLFor(t *testing.T) {
	ttl := DefaultCacheTTL()
	tests := []struct {
		count int
		want  time.Duration
	}{
		{200, 4 * time.Hour},
		{50, 4 * time.Hour},
		{49, 24 * time.Hour},
		{10, 24 * time.Hour},
		{9, 0},
	}
	for _, tt := range tests {
		if got := ttl.TTLFor(tt.count); got != tt.want {
			t.Errorf("TTLFor(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestAggregatorSourceHealth(t *testing.T) {
	a := NewAggregator(&fakeSource{name: models.SourceEbay}, nil, nil)
	h := a.SourceHealth()
	if len(h) != 1 || h[0].Source != models.SourceEbay {
		t.Errorf("health = %+v", h)
	}
}
