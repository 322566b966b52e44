package risk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGas struct {
	estimates map[string]*types.GasEstimate
}

func (s *stubGas) Submit(source, chain string, priceGwei float64, timestamp time.Time) {}

func (s *stubGas) Estimate(chain string) (*types.GasEstimate, error) {
	est, ok := s.estimates[chain]
	if !ok {
		return nil, types.ErrNoData
	}
	return est, nil
}

type stubHistory struct {
	prices []float64
}

func (s *stubHistory) RecentPrices(pair string, n int) []float64 { return s.prices }

func calmPrices(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 3000 + float64(i%2) // ~0.02% relative stdev
	}
	return out
}

func cexOpportunity(id string, amount float64) *types.ArbitrageOpportunity {
	return &types.ArbitrageOpportunity{
		ID:          id,
		Pair:        "WETH/USDC",
		SourceVenue: "binance",
		TargetVenue: "coinbase",
		BuyPrice:    3000,
		SellPrice:   3030,
		TradeAmount: amount,
	}
}

func calmEngine(maxExposure float64) *Engine {
	cfg := DefaultConfig()
	cfg.MaxExposure = maxExposure
	gas := &stubGas{estimates: map[string]*types.GasEstimate{
		"ethereum": {Chain: "ethereum", PriceGwei: 30, Confidence: 0.9},
	}}
	return New(cfg, gas, &stubHistory{prices: calmPrices(20)}, nil)
}

func TestEvaluateLowRiskFullSize(t *testing.T) {
	e := calmEngine(50000)

	pos, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, types.RiskLow, pos.Tier)
	assert.InDelta(t, 5000, pos.Size, 1e-9)
	assert.InDelta(t, 3.0, pos.Leverage, 1e-9)
	assert.InDelta(t, 5000.0/3.0, pos.Margin, 1e-9)
	assert.InDelta(t, 3000*(1-1.0/3.0), pos.LiquidationPrice, 1e-9)
	require.Len(t, pos.StopLossLevels, 3)
	assert.InDelta(t, 2940, pos.StopLossLevels[0], 1e-9) // 2% below entry
	assert.InDelta(t, 5000, e.Exposure(), 1e-9)
}

func TestEvaluateHighVolatilityShrinksPosition(t *testing.T) {
	cfg := DefaultConfig()
	gas := &stubGas{estimates: map[string]*types.GasEstimate{}}
	// alternating 3000/3200 is ~3.2% relative stdev, over the 2% threshold
	volatile := []float64{3000, 3200, 3000, 3200, 3000, 3200, 3000, 3200}
	e := New(cfg, gas, &stubHistory{prices: volatile}, nil)

	pos, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, types.RiskHigh, pos.Tier)
	assert.InDelta(t, 2000, pos.Size, 1e-9)   // 0.4 size multiplier
	assert.InDelta(t, 1.8, pos.Leverage, 1e-9) // 3 * 0.6
}

func TestEvaluateHighGasForcesHighTier(t *testing.T) {
	cfg := DefaultConfig()
	gas := &stubGas{estimates: map[string]*types.GasEstimate{
		"ethereum": {Chain: "ethereum", PriceGwei: 180, Confidence: 0.9},
	}}
	e := New(cfg, gas, &stubHistory{prices: calmPrices(20)}, nil)

	opp := cexOpportunity("opp-1", 5000)
	opp.TargetVenue = "uniswap_v3"
	opp.TargetChain = "ethereum"

	pos, err := e.Evaluate(context.Background(), opp)
	require.NoError(t, err)
	assert.Equal(t, types.RiskHigh, pos.Tier)
}

func TestEvaluateLowConfidenceGasRejected(t *testing.T) {
	cfg := DefaultConfig()
	gas := &stubGas{estimates: map[string]*types.GasEstimate{
		"ethereum": {Chain: "ethereum", PriceGwei: 30, Confidence: 0.3},
	}}
	e := New(cfg, gas, &stubHistory{prices: calmPrices(20)}, nil)

	opp := cexOpportunity("opp-1", 5000)
	opp.TargetChain = "ethereum"

	_, err := e.Evaluate(context.Background(), opp)
	assert.ErrorIs(t, err, types.ErrRiskLimitExceeded)
	assert.Zero(t, e.Exposure())
}

func TestEvaluateNoHistoryReadsAsMedium(t *testing.T) {
	cfg := DefaultConfig()
	gas := &stubGas{estimates: map[string]*types.GasEstimate{}}
	e := New(cfg, gas, &stubHistory{}, nil)

	pos, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)

	assert.Equal(t, types.RiskMedium, pos.Tier)
	assert.InDelta(t, 3500, pos.Size, 1e-9)   // 0.7 size multiplier
	assert.InDelta(t, 2.4, pos.Leverage, 1e-9) // 3 * 0.8
}

func TestEvaluateExposureCeiling(t *testing.T) {
	e := calmEngine(12000)

	_, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), cexOpportunity("opp-2", 5000))
	require.NoError(t, err)

	// third approval would put exposure at 15,000 over a 12,000 ceiling
	_, err = e.Evaluate(context.Background(), cexOpportunity("opp-3", 5000))
	assert.ErrorIs(t, err, types.ErrRiskLimitExceeded)
	assert.InDelta(t, 10000, e.Exposure(), 1e-9)
}

func TestConcurrentApprovalsNeverExceedCeiling(t *testing.T) {
	e := calmEngine(20000)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Evaluate(context.Background(), cexOpportunity(fmt.Sprintf("opp-%d", i), 3000))
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, e.Exposure(), 20000.0)
	assert.Greater(t, e.Exposure(), 0.0)
}

func TestReleaseReturnsCapitalOnce(t *testing.T) {
	e := calmEngine(50000)

	pos, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)
	require.InDelta(t, 5000, e.Exposure(), 1e-9)

	e.Release("opp-1", types.PositionOutcome{RealizedProfit: 42})
	assert.Zero(t, e.Exposure())

	out, ok := e.Outcome("opp-1")
	require.True(t, ok)
	assert.InDelta(t, 42, out.RealizedProfit, 1e-9)
	assert.False(t, out.ClosedAt.IsZero())

	_, live := e.Position("opp-1")
	assert.False(t, live)

	// second release must not move the ledger or overwrite the outcome
	e.Release("opp-1", types.PositionOutcome{RealizedProfit: -99})
	assert.Zero(t, e.Exposure())
	out, _ = e.Outcome("opp-1")
	assert.InDelta(t, 42, out.RealizedProfit, 1e-9)

	_ = pos
}

func TestReleaseUnknownIDIsNoOp(t *testing.T) {
	e := calmEngine(50000)
	e.Release("missing", types.PositionOutcome{})
	assert.Zero(t, e.Exposure())
}

func TestRejectRecordsZeroOutcome(t *testing.T) {
	e := calmEngine(50000)

	e.Reject("opp-declined", "risk limit exceeded")

	out, ok := e.Outcome("opp-declined")
	require.True(t, ok)
	assert.Zero(t, out.RealizedProfit)
	assert.False(t, out.PartialExposure)
	assert.Equal(t, "risk limit exceeded", out.Detail)
	assert.Zero(t, e.Exposure())

	// the first outcome for an id wins
	e.Reject("opp-declined", "other reason")
	out, _ = e.Outcome("opp-declined")
	assert.Equal(t, "risk limit exceeded", out.Detail)
}

func TestDuplicateReservationRejected(t *testing.T) {
	e := calmEngine(50000)

	_, err := e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), cexOpportunity("opp-1", 5000))
	assert.ErrorIs(t, err, types.ErrDuplicateOpportunity)
	assert.InDelta(t, 5000, e.Exposure(), 1e-9)
}

func TestPositionValuation(t *testing.T) {
	pos := &types.Position{
		Size: 3000, Leverage: 3, EntryPrice: 3000, Margin: 1000, Long: true,
	}

	// +1% move on 9,000 notional
	assert.InDelta(t, 90, UnrealizedPnL(pos, 3030), 1e-9)
	assert.InDelta(t, 0.09, ReturnOnEquity(pos, 3030), 1e-9)
	// margin ratio = (1000 + 90) / 9000
	assert.InDelta(t, 1090.0/9000.0, MarginRatio(pos, 3030), 1e-9)

	short := &types.Position{Size: 3000, Leverage: 3, EntryPrice: 3000, Margin: 1000, Long: false}
	assert.InDelta(t, -90, UnrealizedPnL(short, 3030), 1e-9)
}

func TestLiquidationPriceBySide(t *testing.T) {
	assert.InDelta(t, 2000, liquidationPrice(3000, 3, true), 1e-9)
	assert.InDelta(t, 4000, liquidationPrice(3000, 3, false), 1e-9)
}

func TestLiquidatable(t *testing.T) {
	e := calmEngine(50000)
	pos := &types.Position{
		Size: 3000, Leverage: 3, EntryPrice: 3000, Margin: 1000, Long: true,
	}

	// at entry the margin ratio is 1/3, comfortably above maintenance
	assert.False(t, e.Liquidatable(pos, 3000))

	// a 9% drawdown leaves (1000 - 810) / 9000 ≈ 0.021 < 0.075
	assert.True(t, e.Liquidatable(pos, 2730))
}
