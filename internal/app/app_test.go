package app

import (
	"context"
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/internal/config"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the collector registers against the default prometheus registry, so the
// application is built once per test binary
func TestDispatchRiskRejectionIsTerminalWithOutcome(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := NewApplication(cfg)
	require.NoError(t, err)

	opp := &types.ArbitrageOpportunity{
		ID:          "opp-reject-1",
		Pair:        "WETH/USDC",
		SourceVenue: "binance",
		TargetVenue: "uniswap_v3",
		BuyPrice:    3000,
		SellPrice:   3036,
		TradeAmount: 500000, // far past the exposure ceiling
		Status:      types.StatusPending,
		CreatedAt:   time.Now(),
	}

	a.dispatch(context.Background(), opp)

	assert.Equal(t, types.StatusFailed, opp.Status)
	assert.False(t, opp.StatusUpdated.IsZero())
	assert.NotEmpty(t, opp.FailureReason)

	stored, err := a.opps.Get(context.Background(), "opp-reject-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stored.Status)

	// a rejected opportunity still carries exactly one recorded outcome
	outcome, ok := a.riskEngine.Outcome("opp-reject-1")
	require.True(t, ok)
	assert.Zero(t, outcome.RealizedProfit)
	assert.False(t, outcome.PartialExposure)
	assert.NotEmpty(t, outcome.Detail)
}
