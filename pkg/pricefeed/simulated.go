package pricefeed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// SimulatedConnector serves configured prices and liquidity with a small
// random walk. It backs the demo binary and integration tests; real venue
// clients implement the same interface.
type SimulatedConnector struct {
	name  string
	kind  types.VenueKind
	chain string

	mu        sync.Mutex
	prices    map[string]float64
	liquidity map[string]types.LiquidityRecord
	rng       *rand.Rand
	drift     float64
}

// NewSimulatedConnector creates a simulated venue with starting prices per pair
func NewSimulatedConnector(name string, kind types.VenueKind, chain string, prices map[string]float64) *SimulatedConnector {
	c := &SimulatedConnector{
		name:      name,
		kind:      kind,
		chain:     chain,
		prices:    make(map[string]float64, len(prices)),
		liquidity: make(map[string]types.LiquidityRecord),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		drift:     0.001,
	}
	for pair, price := range prices {
		c.prices[pair] = price
		c.liquidity[pair] = types.LiquidityRecord{
			Pair:      pair,
			Venue:     name,
			TVL:       5_000_000,
			Volume24h: 1_000_000,
		}
	}
	return c
}

// SetLiquidity overrides the served liquidity for a pair
func (c *SimulatedConnector) SetLiquidity(pair string, tvl, volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liquidity[pair] = types.LiquidityRecord{Pair: pair, Venue: c.name, TVL: tvl, Volume24h: volume}
}

func (c *SimulatedConnector) Name() string          { return c.name }
func (c *SimulatedConnector) Kind() types.VenueKind { return c.kind }
func (c *SimulatedConnector) Chain() string         { return c.chain }

// FetchQuote returns the current simulated mid price for the pair
func (c *SimulatedConnector) FetchQuote(ctx context.Context, pair string) (*types.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	price, ok := c.prices[pair]
	if !ok {
		return nil, fmt.Errorf("pair %s not listed on %s", pair, c.name)
	}

	price *= 1 + c.drift*(c.rng.Float64()*2-1)
	c.prices[pair] = price

	return &types.Quote{
		Pair:      pair,
		Venue:     c.name,
		Price:     price,
		Chain:     c.chain,
		Timestamp: time.Now(),
	}, nil
}

// FetchLiquidity returns the simulated pool depth for the pair
func (c *SimulatedConnector) FetchLiquidity(ctx context.Context, pair string) (*types.LiquidityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.liquidity[pair]
	if !ok {
		return nil, fmt.Errorf("pair %s not listed on %s", pair, c.name)
	}
	rec.RefreshedAt = time.Now()
	return &rec, nil
}
