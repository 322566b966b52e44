package interfaces

import (
	"context"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// GasPredictor aggregates gas-price samples from independent sources per
// chain and produces a smoothed, confidence-scored estimate
type GasPredictor interface {
	// Submit ingests one sample. It never blocks and never fails; samples
	// with out-of-range prices are discarded.
	Submit(source, chain string, priceGwei float64, timestamp time.Time)

	// Estimate returns the latest chain-level snapshot. It returns
	// types.ErrNoData when no samples exist for the chain and
	// types.ErrStaleData when the snapshot is past the staleness bound.
	Estimate(chain string) (*types.GasEstimate, error)
}

// LiquidityRanker maintains TVL/volume records per (pair, venue) and ranks
// the tracked-pair universe by composite score
type LiquidityRanker interface {
	Refresh(pair, venue string, tvl, volume float64)

	// TopPairs returns up to n pairs ordered by descending composite score.
	// Records past the liquidity TTL are excluded, never returned stale.
	TopPairs(n int) []string

	// Record returns the freshest unexpired record for the pair across venues.
	Record(pair string) (*types.LiquidityRecord, bool)
}

// PriceFeedAggregator fans out one quote fetch per configured venue with
// independent timeouts and returns whatever succeeded this cycle
type PriceFeedAggregator interface {
	Quotes(ctx context.Context, pair string) []*types.Quote
}

// OpportunityDetector computes cross-venue spread net of all costs and emits
// candidate opportunities
type OpportunityDetector interface {
	// Detect evaluates one pair. A nil opportunity with a nil error means no
	// profitable spread this cycle; types.ErrDuplicateOpportunity and
	// types.ErrStaleData are expected rejection outcomes.
	Detect(ctx context.Context, pair string) (*types.ArbitrageOpportunity, error)
}
