package execution

import (
	"context"
	"fmt"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// DryRun re-checks an opportunity against live venue state without committing
// capital. Detection and approval race real markets; the spread that looked
// profitable seconds ago may already be gone.
type DryRun struct {
	feeds  interfaces.PriceFeedAggregator
	ranker interfaces.LiquidityRanker

	// fraction of the detected spread that must still be present
	SpreadRetention float64
	// notional may not exceed this share of the pair's available depth
	MaxDepthRatio float64
}

// NewDryRun creates a simulator over the live price feeds
func NewDryRun(feeds interfaces.PriceFeedAggregator, ranker interfaces.LiquidityRanker) *DryRun {
	return &DryRun{
		feeds:           feeds,
		ranker:          ranker,
		SpreadRetention: 0.6,
		MaxDepthRatio:   0.02,
	}
}

// Simulate verifies both venues still quote the pair and the spread has not
// collapsed below the retention floor
func (d *DryRun) Simulate(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) error {
	quotes := d.feeds.Quotes(ctx, opp.Pair)

	var buy, sell *types.Quote
	for _, q := range quotes {
		switch q.Venue {
		case opp.SourceVenue:
			buy = q
		case opp.TargetVenue:
			sell = q
		}
	}
	if buy == nil {
		return fmt.Errorf("no live quote from %s: %w", opp.SourceVenue, types.ErrStaleData)
	}
	if sell == nil {
		return fmt.Errorf("no live quote from %s: %w", opp.TargetVenue, types.ErrStaleData)
	}

	spread := (sell.Price - buy.Price) / buy.Price * 100
	if spread < opp.SpreadPercent*d.SpreadRetention {
		return fmt.Errorf("spread collapsed: %.4f%% live vs %.4f%% detected", spread, opp.SpreadPercent)
	}

	if rec, ok := d.ranker.Record(opp.Pair); ok && rec.TVL > 0 {
		if pos.Notional() > rec.TVL*d.MaxDepthRatio {
			return fmt.Errorf("notional %.2f exceeds %.1f%% of %.2f depth",
				pos.Notional(), d.MaxDepthRatio*100, rec.TVL)
		}
	}
	return nil
}
