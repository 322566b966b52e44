package interfaces

import (
	"context"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// RiskEngine classifies market risk, sizes positions under the exposure
// ceiling and owns the capital ledger
type RiskEngine interface {
	// Evaluate approves and sizes an opportunity or returns
	// types.ErrRiskLimitExceeded as a normal rejection outcome.
	Evaluate(ctx context.Context, opp *types.ArbitrageOpportunity) (*types.Position, error)

	// Release returns the position's capital to the ledger and records the
	// outcome. It must be called exactly once per approved opportunity, on
	// every exit path.
	Release(opportunityID string, outcome types.PositionOutcome)

	// Reject records a zero outcome for an opportunity declined before any
	// capital was reserved.
	Reject(opportunityID, reason string)

	// Position returns the live position for an opportunity, if any.
	Position(opportunityID string) (*types.Position, bool)

	// Exposure returns the sum of sized capital across live positions.
	Exposure() float64

	// Outcome returns the recorded outcome for a closed opportunity.
	Outcome(opportunityID string) (*types.PositionOutcome, bool)
}

// PriceHistory supplies recent prices for a pair so the risk engine can
// measure volatility
type PriceHistory interface {
	RecentPrices(pair string, n int) []float64
}
