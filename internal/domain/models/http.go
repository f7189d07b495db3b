package models

// Requests for the pricing HTTP endpoints. Defaults are applied with
// creasty/defaults before validation.

type FMVRequest struct {
	Category         string           `json:"category" validate:"required"`
	Condition        string           `json:"condition" validate:"required"`
	MarketplaceStats MarketplaceStats `json:"marketplace_stats"`
	// Optional sub-values from sources beyond eBay, keyed by source weight name.
	ExtraSources map[string]float64 `json:"extra_sources,omitempty"`
}

type OfferRequest struct {
	FMV            float64 `json:"fmv"`
	Condition      string  `json:"condition" validate:"required"`
	Category       string  `json:"category" validate:"required"`
	UserID         string  `json:"user_id,omitempty"`
	InventoryCount int     `json:"inventory_count" validate:"gte=0"`
	UserTrustScore float64 `json:"user_trust_score" default:"1.0" validate:"gte=0,lte=2"`
	Confidence     int     `json:"confidence" default:"85" validate:"gte=0,lte=100"`
}

type ConfidenceRequest struct {
	VisionConfidence     int     `json:"vision_confidence" validate:"gte=0,lte=100"`
	MarketplaceDataCount int     `json:"marketplace_data_count" validate:"gte=0"`
	ConditionClear       bool    `json:"condition_clear"`
	DescriptionMatch     *bool   `json:"user_description_match,omitempty"`
	OfferValue           float64 `json:"offer_value" validate:"gte=0"`
}

type ResearchRequest struct {
	Brand       string `json:"brand" validate:"required"`
	Model       string `json:"model" validate:"required"`
	Category    string `json:"category" default:"Unknown"`
	Condition   string `json:"condition,omitempty"`
	UseLiveData *bool  `json:"use_live_data,omitempty"`
}

// Live reports whether live marketplace data was requested. Defaults to true.
func (r ResearchRequest) Live() bool {
	return r.UseLiveData == nil || *r.UseLiveData
}

// PriceRequest drives the full pipeline. Either Images (to identify) or
// Brand/Model must be provided.
type PriceRequest struct {
	OfferID        string   `json:"offer_id,omitempty"`
	UserID         string   `json:"user_id,omitempty"`
	Images         []string `json:"images,omitempty" validate:"max=6"`
	Brand          string   `json:"brand,omitempty" validate:"required_without=Images"`
	Model          string   `json:"model,omitempty" validate:"required_without=Images"`
	Category       string   `json:"category,omitempty"`
	Condition      string   `json:"condition,omitempty"`
	Description    string   `json:"description,omitempty"`
	InventoryCount int      `json:"inventory_count" validate:"gte=0"`
	UserTrustScore float64  `json:"user_trust_score" default:"1.0" validate:"gte=0,lte=2"`
	IPAddress      string   `json:"-"`
	UseLiveData    *bool    `json:"use_live_data,omitempty"`
}

type OptimizeRequest struct {
	Offers []OfferSnapshot `json:"offers" validate:"required,min=1,max=1000,dive"`
}

type OptimizerRunRequest struct {
	DryRun *bool `json:"dry_run,omitempty"`
}
