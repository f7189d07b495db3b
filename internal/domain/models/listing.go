package models

import "time"

// Marketplace sources that can produce listings.
const (
	SourceEbay     = "ebay"
	SourceFacebook = "facebook"
	SourceAmazon   = "amazon"
	SourceGoogle   = "google_shopping"
)

// Item conditions.
const (
	ConditionNew     = "New"
	ConditionLikeNew = "Like New"
	ConditionGood    = "Good"
	ConditionFair    = "Fair"
	ConditionPoor    = "Poor"
	ConditionUnknown = "Unknown"
)

// Product categories.
const (
	CategoryConsumerElectronics = "Consumer Electronics"
	CategoryGaming              = "Gaming"
	CategoryPhonesTablets       = "Phones & Tablets"
	CategoryClothingFashion     = "Clothing & Fashion"
	CategoryCollectibles        = "Collectibles & Vintage"
	CategoryBooksMedia          = "Books & Media"
	CategorySmallAppliances     = "Small Appliances"
	CategoryToolsEquipment      = "Tools & Equipment"
	CategoryUnknown             = "Unknown"
)

// Listing is a single priced observation fetched from a marketplace.
type Listing struct {
	Title     string     `json:"title"`
	Price     float64    `json:"price" validate:"gt=0"`
	Condition string     `json:"condition"`
	SoldDate  *time.Time `json:"sold_date,omitempty"`
	Source    string     `json:"source"`
	URL       string     `json:"url,omitempty"`
	Shipping  float64    `json:"shipping,omitempty"`
	Location  string     `json:"location,omitempty"`
}

// MarketplaceStats summarises a set of listings. Median and percentiles are
// unweighted; Mean may be recency weighted.
type MarketplaceStats struct {
	Count       int                `json:"count" validate:"gte=0"`
	Median      float64            `json:"median"`
	Mean        float64            `json:"mean"`
	StdDev      float64            `json:"std_dev"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
	MinPrice    *float64           `json:"min_price,omitempty"`
	MaxPrice    *float64           `json:"max_price,omitempty"`
	Listings    []Listing          `json:"listings,omitempty" validate:"dive"`
}

// Data freshness of a research result.
const (
	FreshnessLive  = "live"
	FreshnessStale = "stale"
)

// ResearchResult is what the marketplace aggregator returns for one query.
type ResearchResult struct {
	Query          string           `json:"query"`
	Stats          MarketplaceStats `json:"stats"`
	SourcesChecked []string         `json:"sources_checked"`
	DataFreshness  string           `json:"data_freshness"`
	CacheHit       bool             `json:"cache_hit"`
	RemovedCount   int              `json:"outliers_removed"`
	ResearchedAt   time.Time        `json:"researched_at"`
}

// Identification is the structured output of the external identifier.
type Identification struct {
	Brand            string `json:"brand"`
	Model            string `json:"model"`
	Category         string `json:"category"`
	Condition        string `json:"condition"`
	Confidence       int    `json:"confidence"`
	ConditionClear   bool   `json:"condition_clear"`
	DescriptionMatch bool   `json:"description_match"`
	Description      string `json:"description,omitempty"`
}

// SourceHealth tracks request outcomes for one marketplace client.
type SourceHealth struct {
	Source             string  `json:"source"`
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	BlockedCount       int64   `json:"blocked_count"`
	SuccessRate        float64 `json:"success_rate"`
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
}
