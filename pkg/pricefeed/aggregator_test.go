package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConnector serves canned quotes or failures for fan-out tests
type stubConnector struct {
	name  string
	quote *types.Quote
	err   error
	delay time.Duration
}

func (s *stubConnector) Name() string          { return s.name }
func (s *stubConnector) Kind() types.VenueKind { return types.VenueCEX }
func (s *stubConnector) Chain() string         { return "" }

func (s *stubConnector) FetchQuote(ctx context.Context, pair string) (*types.Quote, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubConnector) FetchLiquidity(ctx context.Context, pair string) (*types.LiquidityRecord, error) {
	return nil, errors.New("not implemented")
}

func quoteAt(venue string, price float64, ts time.Time) *types.Quote {
	return &types.Quote{Pair: "WETH/USDC", Venue: venue, Price: price, Timestamp: ts}
}

func TestQuotesFanOut(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	require.NoError(t, registry.Register(&stubConnector{name: "binance", quote: quoteAt("binance", 3000, now)}))
	require.NoError(t, registry.Register(&stubConnector{name: "okx", quote: quoteAt("okx", 3010, now)}))

	agg := NewAggregator(nil, registry)
	quotes := agg.Quotes(context.Background(), "WETH/USDC")

	assert.Len(t, quotes, 2)
}

func TestQuotesDropsFailingVenue(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	require.NoError(t, registry.Register(&stubConnector{name: "binance", quote: quoteAt("binance", 3000, now)}))
	require.NoError(t, registry.Register(&stubConnector{name: "broken", err: errors.New("connection refused")}))

	agg := NewAggregator(nil, registry)
	quotes := agg.Quotes(context.Background(), "WETH/USDC")

	require.Len(t, quotes, 1)
	assert.Equal(t, "binance", quotes[0].Venue)
}

func TestQuotesDropsTimedOutVenue(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	require.NoError(t, registry.Register(&stubConnector{name: "binance", quote: quoteAt("binance", 3000, now)}))
	require.NoError(t, registry.Register(&stubConnector{name: "slow", quote: quoteAt("slow", 3010, now), delay: time.Second}))

	agg := NewAggregator(&AggregatorConfig{FetchTimeout: 50 * time.Millisecond, HistorySize: 8}, registry)

	start := time.Now()
	quotes := agg.Quotes(context.Background(), "WETH/USDC")
	elapsed := time.Since(start)

	require.Len(t, quotes, 1)
	assert.Equal(t, "binance", quotes[0].Venue)
	// the slow venue is cancelled, not awaited
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestQuotesFiltersExpired(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	stale := quoteAt("stale", 3000, now.Add(-types.QuoteTTL-time.Second))
	require.NoError(t, registry.Register(&stubConnector{name: "stale", quote: stale}))
	require.NoError(t, registry.Register(&stubConnector{name: "fresh", quote: quoteAt("fresh", 3010, now)}))

	agg := NewAggregator(nil, registry)
	quotes := agg.Quotes(context.Background(), "WETH/USDC")

	require.Len(t, quotes, 1)
	assert.Equal(t, "fresh", quotes[0].Venue)
}

func TestQuotesEmptyRegistry(t *testing.T) {
	agg := NewAggregator(nil, NewRegistry())
	assert.Empty(t, agg.Quotes(context.Background(), "WETH/USDC"))
}

func TestRecentPrices(t *testing.T) {
	registry := NewRegistry()
	now := time.Now()
	require.NoError(t, registry.Register(&stubConnector{name: "binance", quote: quoteAt("binance", 3000, now)}))
	require.NoError(t, registry.Register(&stubConnector{name: "okx", quote: quoteAt("okx", 3020, now)}))

	agg := NewAggregator(nil, registry)
	agg.Quotes(context.Background(), "WETH/USDC")

	prices := agg.RecentPrices("WETH/USDC", 5)
	require.Len(t, prices, 1)
	assert.InDelta(t, 3010.0, prices[0], 1e-9)

	assert.Empty(t, agg.RecentPrices("UNKNOWN/PAIR", 5))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubConnector{name: "binance"}))
	assert.Error(t, registry.Register(&stubConnector{name: "binance"}))
}

func TestSimulatedConnector(t *testing.T) {
	c := NewSimulatedConnector("sim", types.VenueDEX, "ethereum", map[string]float64{"WETH/USDC": 3000})

	q, err := c.FetchQuote(context.Background(), "WETH/USDC")
	require.NoError(t, err)
	assert.Equal(t, "sim", q.Venue)
	assert.Equal(t, "ethereum", q.Chain)
	assert.InDelta(t, 3000.0, q.Price, 3000*0.01)

	_, err = c.FetchQuote(context.Background(), "UNKNOWN/PAIR")
	assert.Error(t, err)

	rec, err := c.FetchLiquidity(context.Background(), "WETH/USDC")
	require.NoError(t, err)
	assert.Greater(t, rec.TVL, 0.0)
}
