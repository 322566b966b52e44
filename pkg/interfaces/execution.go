package interfaces

import (
	"context"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// ExecutionCoordinator drives an approved opportunity through the
// pending -> simulated -> executing -> {completed, failed} state machine
type ExecutionCoordinator interface {
	// Execute runs the full pipeline for one approved opportunity. The
	// returned error is nil on completed; *types.SimulationError and
	// *types.PartialExecutionError mark the two failure classes that matter
	// to callers. Capital is always released before Execute returns.
	Execute(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) error
}

// Simulator dry-runs a trade against current venue and chain state without
// committing capital
type Simulator interface {
	Simulate(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) error
}

// OrderLeg describes the off-chain side of a trade
type OrderLeg struct {
	Venue  string
	Pair   string
	Side   string // "buy" or "sell"
	Amount float64
	Price  float64
}

// OrderClient places and cancels orders on a centralized venue
type OrderClient interface {
	PlaceOrder(ctx context.Context, leg *OrderLeg) (orderID string, err error)
	CancelOrder(ctx context.Context, venue, orderID string) error
}

// RelaySubmitter sends the on-chain leg through a private,
// front-running-resistant path and tracks confirmation. A transaction that
// was submitted must never be re-sent verbatim.
type RelaySubmitter interface {
	SubmitPrivate(ctx context.Context, tx *types.ChainTx) (common.Hash, error)
	WaitConfirmed(ctx context.Context, chain string, hash common.Hash) error
}

// BridgeRouter selects the minimum-total-cost bridge meeting the security
// and liquidity bars, or returns types.ErrNoEligibleBridge
type BridgeRouter interface {
	Route(ctx context.Context, sourceChain, targetChain string, amount float64) (*types.Bridge, error)
}
