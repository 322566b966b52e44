package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSimulator struct {
	err error
}

func (s *stubSimulator) Simulate(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) error {
	return s.err
}

type stubOrders struct {
	mu        sync.Mutex
	placed    []*interfaces.OrderLeg
	cancelled []string
	placeErr  error
	cancelErr error
}

func (s *stubOrders) PlaceOrder(ctx context.Context, leg *interfaces.OrderLeg) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.placeErr != nil {
		return "", s.placeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, leg)
	return "order-1", nil
}

func (s *stubOrders) CancelOrder(ctx context.Context, venue, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, orderID)
	return s.cancelErr
}

type stubRelay struct {
	mu         sync.Mutex
	submits    int
	submitErr  error
	confirmErr error
	delay      time.Duration
}

func (s *stubRelay) SubmitPrivate(ctx context.Context, tx *types.ChainTx) (common.Hash, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	s.mu.Lock()
	s.submits++
	s.mu.Unlock()
	return common.HexToHash("0xabc123"), nil
}

func (s *stubRelay) WaitConfirmed(ctx context.Context, chain string, hash common.Hash) error {
	return s.confirmErr
}

func (s *stubRelay) submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

type stubGas struct{}

func (s *stubGas) Submit(source, chain string, priceGwei float64, timestamp time.Time) {}

func (s *stubGas) Estimate(chain string) (*types.GasEstimate, error) {
	return &types.GasEstimate{Chain: chain, PriceGwei: 30, Confidence: 0.9}, nil
}

type stubRisk struct {
	mu       sync.Mutex
	released []types.PositionOutcome
}

func (s *stubRisk) Evaluate(ctx context.Context, opp *types.ArbitrageOpportunity) (*types.Position, error) {
	return nil, nil
}

func (s *stubRisk) Release(opportunityID string, outcome types.PositionOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome.OpportunityID = opportunityID
	s.released = append(s.released, outcome)
}

func (s *stubRisk) Reject(opportunityID, reason string)                   {}
func (s *stubRisk) Position(opportunityID string) (*types.Position, bool) { return nil, false }
func (s *stubRisk) Exposure() float64                                     { return 0 }

func (s *stubRisk) Outcome(opportunityID string) (*types.PositionOutcome, bool) {
	return nil, false
}

type stubStore struct {
	mu  sync.Mutex
	put []*types.ArbitrageOpportunity
}

func (s *stubStore) Put(ctx context.Context, opp *types.ArbitrageOpportunity) error {
	snapshot := *opp
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put = append(s.put, &snapshot)
	return nil
}

func (s *stubStore) Get(ctx context.Context, id string) (*types.ArbitrageOpportunity, error) {
	return nil, types.ErrNotFound
}

func (s *stubStore) List(ctx context.Context, filter *interfaces.OpportunityFilter) (*interfaces.OpportunityPage, error) {
	return &interfaces.OpportunityPage{}, nil
}

func (s *stubStore) Stats(ctx context.Context) (*types.ArbitrageStats, error) {
	return &types.ArbitrageStats{}, nil
}

func (s *stubStore) PutTopPairs(ctx context.Context, pairs []string) error { return nil }
func (s *stubStore) TopPairs(ctx context.Context, n int) ([]string, error) { return nil, nil }

func pendingOpportunity() *types.ArbitrageOpportunity {
	return &types.ArbitrageOpportunity{
		ID:            "opp-1",
		Pair:          "WETH/USDC",
		SourceVenue:   "binance",
		TargetVenue:   "uniswap_v3",
		TargetChain:   "ethereum",
		BuyPrice:      3000,
		SellPrice:     3036,
		SpreadPercent: 1.2,
		TradeAmount:   9000,
		NetProfit:     83,
		Status:        types.StatusPending,
	}
}

func testPosition() *types.Position {
	return &types.Position{OpportunityID: "opp-1", Size: 9000, Leverage: 1, EntryPrice: 3000, Margin: 9000, Long: true}
}

type fixture struct {
	coordinator *Coordinator
	orders      *stubOrders
	relay       *stubRelay
	risk        *stubRisk
	store       *stubStore
	simulator   *stubSimulator
}

func newFixture() *fixture {
	f := &fixture{
		orders:    &stubOrders{},
		relay:     &stubRelay{},
		risk:      &stubRisk{},
		store:     &stubStore{},
		simulator: &stubSimulator{},
	}
	cfg := DefaultConfig()
	cfg.LegTimeout = 2 * time.Second
	f.coordinator = New(cfg, f.simulator, f.orders, f.relay, &stubGas{}, f.risk, f.store, nil, nil)
	return f
}

func TestExecuteCompleted(t *testing.T) {
	f := newFixture()
	opp := pendingOpportunity()

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, opp.Status)
	assert.Equal(t, 1, f.relay.submitted())
	require.Len(t, f.risk.released, 1)
	assert.InDelta(t, 83, f.risk.released[0].RealizedProfit, 1e-9)
	assert.False(t, f.risk.released[0].PartialExposure)
}

func TestExecuteSimulationFailure(t *testing.T) {
	f := newFixture()
	f.simulator.err = errors.New("spread collapsed")
	opp := pendingOpportunity()

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	var simErr *types.SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, "opp-1", simErr.OpportunityID)
	assert.Equal(t, types.StatusFailed, opp.Status)

	// no leg was dispatched and capital still came back
	assert.Empty(t, f.orders.placed)
	assert.Zero(t, f.relay.submitted())
	require.Len(t, f.risk.released, 1)
	assert.Zero(t, f.risk.released[0].RealizedProfit)
}

func TestExecuteChainLegFailureAfterFill(t *testing.T) {
	// the off-chain order fills, then the chain leg dies unconfirmed
	f := newFixture()
	f.relay.delay = 50 * time.Millisecond // let the order fill first
	f.relay.confirmErr = errors.New("not confirmed within budget")
	f.orders.cancelErr = errors.New("already filled")
	opp := pendingOpportunity()

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	var partial *types.PartialExecutionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "opp-1", partial.OpportunityID)
	assert.Equal(t, types.StatusFailed, opp.Status)

	require.Len(t, f.risk.released, 1)
	assert.True(t, f.risk.released[0].PartialExposure)

	// the submitted chain transaction is never re-sent
	assert.Equal(t, 1, f.relay.submitted())
	// compensation was attempted on the filled order
	assert.Equal(t, []string{"order-1"}, f.orders.cancelled)
}

func TestExecuteBothChainLegsUnconfirmedIsPartialExposure(t *testing.T) {
	// cross-chain trade: both transactions submit, neither confirms. Two
	// live on-chain legs must surface as partial exposure, not a plain
	// failure.
	f := newFixture()
	f.relay.confirmErr = errors.New("not confirmed within budget")
	opp := pendingOpportunity()
	opp.SourceVenue = "uniswap_v3"
	opp.SourceChain = "ethereum"
	opp.TargetVenue = "camelot"
	opp.TargetChain = "arbitrum"

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	var partial *types.PartialExecutionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "opp-1", partial.OpportunityID)
	assert.Equal(t, types.StatusFailed, opp.Status)

	require.Len(t, f.risk.released, 1)
	assert.True(t, f.risk.released[0].PartialExposure)

	// both submitted transactions stay out, never re-sent
	assert.Equal(t, 2, f.relay.submitted())
	assert.Empty(t, f.orders.cancelled)
}

func TestExecuteSubmitFailureCancelsRestingOrder(t *testing.T) {
	// the chain leg never commits, so cancelling the resting order clears
	// all exposure
	f := newFixture()
	f.relay.delay = 50 * time.Millisecond // let the order fill first
	f.relay.submitErr = errors.New("relay unavailable")
	opp := pendingOpportunity()

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	require.Error(t, err)
	var partial *types.PartialExecutionError
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, types.StatusFailed, opp.Status)

	require.Len(t, f.risk.released, 1)
	assert.False(t, f.risk.released[0].PartialExposure)
	assert.Equal(t, []string{"order-1"}, f.orders.cancelled)
}

func TestExecuteOrderFailureAbortsUnsentChainLeg(t *testing.T) {
	// the order leg fails fast; the slow chain leg must see the cancelled
	// context before submitting
	f := newFixture()
	f.orders.placeErr = errors.New("venue rejected order")
	f.relay.delay = 500 * time.Millisecond
	opp := pendingOpportunity()

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	require.Error(t, err)
	assert.Equal(t, types.StatusFailed, opp.Status)
	assert.Zero(t, f.relay.submitted())
	require.Len(t, f.risk.released, 1)
	assert.False(t, f.risk.released[0].PartialExposure)
}

func TestExecuteRejectsNonPendingOpportunity(t *testing.T) {
	f := newFixture()
	opp := pendingOpportunity()
	opp.Status = types.StatusExecuting

	err := f.coordinator.Execute(context.Background(), opp, testPosition())

	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	require.Len(t, f.risk.released, 1)
}

func TestExecutePersistsEachTransition(t *testing.T) {
	f := newFixture()
	opp := pendingOpportunity()

	require.NoError(t, f.coordinator.Execute(context.Background(), opp, testPosition()))

	var seen []types.OpportunityStatus
	for _, o := range f.store.put {
		seen = append(seen, o.Status)
	}
	assert.Equal(t, []types.OpportunityStatus{
		types.StatusSimulated, types.StatusExecuting, types.StatusCompleted,
	}, seen)
}
