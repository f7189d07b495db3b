package service

import (
	"context"

	"PawnPrice/internal/domain/models"
)

// SearchQuery is what a marketplace source is asked for.
type SearchQuery struct {
	Query     string
	Condition string
	DaysBack  int
	Limit     int
}

// MarketplaceSource fetches raw listings from one marketplace.
type MarketplaceSource interface {
	Name() string
	Search(ctx context.Context, q SearchQuery) ([]models.Listing, error)
	Health() models.SourceHealth
}

// Identifier turns item photos into structured attributes.
type Identifier interface {
	Identify(ctx context.Context, images []string, description string) (*models.Identification, error)
}

// Researcher aggregates marketplace data into statistics.
type Researcher interface {
	Research(ctx context.Context, req models.ResearchRequest) (*models.ResearchResult, error)
	SourceHealth() []models.SourceHealth
}
