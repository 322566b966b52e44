package gas

import (
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateNoData(t *testing.T) {
	p := NewPredictor(nil)

	_, err := p.Estimate("ethereum")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNoData)
}

func TestSubmitDiscardsOutOfRange(t *testing.T) {
	p := NewPredictor(nil)
	now := time.Now()

	p.Submit("etherscan", "ethereum", -5, now)
	p.Submit("etherscan", "ethereum", 0, now)
	p.Submit("etherscan", "ethereum", 1e9, now)
	p.Submit("", "ethereum", 40, now)
	p.Submit("etherscan", "", 40, now)

	_, err := p.Estimate("ethereum")
	assert.ErrorIs(t, err, types.ErrNoData)
}

func TestConstantStreamConverges(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()

	for i := 0; i < 50; i++ {
		ts = ts.Add(time.Second)
		p.Submit("etherscan", "ethereum", 40, ts)
		p.Submit("blocknative", "ethereum", 40, ts)
		p.Submit("node", "ethereum", 40, ts)
	}

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, est.PriceGwei, 1e-9)
	assert.Equal(t, types.GasTrendStable, est.Trend)
	assert.False(t, est.Volatile)
	assert.False(t, est.Spike)
	// full agreement across three live sources
	assert.InDelta(t, 1.0, est.Confidence, 1e-9)
}

func TestVolatilityFlag(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()

	// alternate wildly so stdev/mean of the window exceeds 0.30
	prices := []float64{20, 80, 20, 80, 20, 80, 20, 80}
	for _, price := range prices {
		ts = ts.Add(time.Second)
		p.Submit("node", "ethereum", price, ts)
	}

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.True(t, est.Volatile)
}

func TestSpikeFlagAndRisingTrend(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()

	for i := 0; i < 20; i++ {
		ts = ts.Add(time.Second)
		p.Submit("node", "ethereum", 30, ts)
	}

	before, err := p.Estimate("ethereum")
	require.NoError(t, err)
	require.InDelta(t, 30.0, before.PriceGwei, 1e-6)

	// a second source far above the settled level moves the combined
	// estimate by more than 50% in one cycle
	ts = ts.Add(time.Second)
	p.Submit("blocknative", "ethereum", 3000, ts)

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.True(t, est.Spike)
	assert.Equal(t, types.GasTrendRising, est.Trend)
	// disagreement between sources should depress confidence
	assert.Less(t, est.Confidence, before.Confidence)
}

func TestStaleSourceDownWeightedToZero(t *testing.T) {
	p := NewPredictor(nil)
	start := time.Now()

	p.Submit("etherscan", "ethereum", 500, start)

	// the stale source stops reporting; a fresh source takes over well past
	// the expected cadence
	later := start.Add(5 * time.Minute)
	for i := 0; i < 10; i++ {
		later = later.Add(time.Second)
		p.Submit("node", "ethereum", 40, later)
	}

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	// only the live source contributes
	assert.InDelta(t, 40.0, est.PriceGwei, 1e-6)
	// one of two sources live halves the confidence
	assert.InDelta(t, 0.5, est.Confidence, 1e-6)
}

func TestFallingTrend(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()

	for i := 0; i < 10; i++ {
		ts = ts.Add(time.Second)
		p.Submit("node", "ethereum", 100, ts)
	}
	ts = ts.Add(time.Second)
	p.Submit("node", "ethereum", 60, ts)

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.Equal(t, types.GasTrendFalling, est.Trend)
}

func TestEstimateReturnsSnapshot(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()
	p.Submit("node", "ethereum", 40, ts)

	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	est.PriceGwei = 9999

	again, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, again.PriceGwei, 1e-9)
}

func TestEstimateRefusesStaleSnapshot(t *testing.T) {
	// once every source goes quiet the last snapshot must not be served
	// forever
	p := NewPredictor(nil)
	p.Submit("node", "ethereum", 40, time.Now().Add(-5*time.Minute))

	_, err := p.Estimate("ethereum")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStaleData)

	// a fresh sample brings the chain back
	p.Submit("node", "ethereum", 42, time.Now())
	est, err := p.Estimate("ethereum")
	require.NoError(t, err)
	assert.Greater(t, est.PriceGwei, 0.0)
}

func TestChainsAreIndependent(t *testing.T) {
	p := NewPredictor(nil)
	ts := time.Now()

	p.Submit("node", "ethereum", 40, ts)
	p.Submit("node", "arbitrum", 0.1, ts)

	eth, err := p.Estimate("ethereum")
	require.NoError(t, err)
	arb, err := p.Estimate("arbitrum")
	require.NoError(t, err)

	assert.InDelta(t, 40.0, eth.PriceGwei, 1e-9)
	assert.InDelta(t, 0.1, arb.PriceGwei, 1e-9)
}
