package metrics

import (
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.NewRegistry())
}

func TestRecordOpportunity(t *testing.T) {
	c := newTestCollector()

	c.RecordOpportunity(&types.ArbitrageOpportunity{Pair: "WETH/USDC", NetProfit: 83})
	c.RecordOpportunity(&types.ArbitrageOpportunity{Pair: "WETH/USDC", NetProfit: 41})
	c.RecordOpportunity(&types.ArbitrageOpportunity{Pair: "WBTC/USDC", NetProfit: 12})

	assert.InDelta(t, 2, testutil.ToFloat64(
		c.prom.opportunitiesDetected.WithLabelValues("WETH/USDC")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(
		c.prom.opportunitiesDetected.WithLabelValues("WBTC/USDC")), 1e-9)
}

func TestRecordRejection(t *testing.T) {
	c := newTestCollector()

	c.RecordRejection("duplicate venue pair")
	c.RecordRejection("duplicate venue pair")
	c.RecordRejection("no eligible bridge")

	assert.InDelta(t, 2, testutil.ToFloat64(
		c.prom.opportunitiesRejected.WithLabelValues("duplicate venue pair")), 1e-9)
}

func TestExecutionSummary(t *testing.T) {
	c := newTestCollector()
	opp := &types.ArbitrageOpportunity{Pair: "WETH/USDC", NetProfit: 50}

	c.RecordExecution(opp, true, 3*time.Second)
	c.RecordExecution(opp, true, 2*time.Second)
	c.RecordExecution(opp, false, 10*time.Second)

	s := c.Summary()
	assert.Equal(t, 3, s.Executions)
	assert.Equal(t, 1, s.Failures)
	assert.InDelta(t, 100, s.RealizedTotal, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)

	assert.InDelta(t, 2, testutil.ToFloat64(
		c.prom.executionsTotal.WithLabelValues("completed")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(
		c.prom.executionsTotal.WithLabelValues("failed")), 1e-9)
}

func TestRecordGasEstimate(t *testing.T) {
	c := newTestCollector()

	c.RecordGasEstimate(&types.GasEstimate{Chain: "ethereum", PriceGwei: 42.5, Confidence: 0.8})

	assert.InDelta(t, 42.5, testutil.ToFloat64(
		c.prom.gasPriceGwei.WithLabelValues("ethereum")), 1e-9)
	assert.InDelta(t, 0.8, testutil.ToFloat64(
		c.prom.gasConfidence.WithLabelValues("ethereum")), 1e-9)
}

func TestSetReservedExposure(t *testing.T) {
	c := newTestCollector()

	c.SetReservedExposure(12500)
	assert.InDelta(t, 12500, testutil.ToFloat64(c.prom.reservedExposure), 1e-9)

	c.SetReservedExposure(0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.prom.reservedExposure), 1e-9)
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		newTestCollector()
		newTestCollector()
	})
}
