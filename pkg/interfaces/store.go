package interfaces

import (
	"context"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// OpportunityFilter narrows opportunity listings
type OpportunityFilter struct {
	Symbol    string
	MinProfit float64
	Status    types.OpportunityStatus
	Limit     int
	Offset    int
}

// OpportunityPage is one page of a filtered listing, ordered by descending
// net profit
type OpportunityPage struct {
	Opportunities []*types.ArbitrageOpportunity `json:"opportunities"`
	Total         int                           `json:"total"`
	Limit         int                           `json:"limit"`
	Offset        int                           `json:"offset"`
}

// OpportunityStore persists opportunity records and the tracked-pair list
// under the cache TTL contract: expired entries are never returned.
type OpportunityStore interface {
	Put(ctx context.Context, opp *types.ArbitrageOpportunity) error
	Get(ctx context.Context, id string) (*types.ArbitrageOpportunity, error)
	List(ctx context.Context, filter *OpportunityFilter) (*OpportunityPage, error)
	Stats(ctx context.Context) (*types.ArbitrageStats, error)

	PutTopPairs(ctx context.Context, pairs []string) error
	TopPairs(ctx context.Context, n int) ([]string, error)
}
