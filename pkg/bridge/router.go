package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// RouterConfig holds bridge eligibility thresholds
type RouterConfig struct {
	MinSecurityScore float64 // bridges below this never carry funds
	MinDailyVolume   float64 // minimum 24h volume, USD
	MaxTransferRatio float64 // transfer may not exceed this share of daily volume
}

// DefaultRouterConfig returns production eligibility thresholds
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		MinSecurityScore: 0.7,
		MinDailyVolume:   1_000_000,
		MaxTransferRatio: 0.01,
	}
}

// Router selects the cheapest eligible bridge for a cross-chain transfer
type Router struct {
	config *RouterConfig

	mu      sync.RWMutex
	bridges []*types.Bridge
}

// NewRouter creates a router over the given bridge profiles. A nil list
// installs the default profiles.
func NewRouter(config *RouterConfig, bridges []*types.Bridge) *Router {
	if config == nil {
		config = DefaultRouterConfig()
	}
	if bridges == nil {
		bridges = defaultBridges()
	}
	return &Router{config: config, bridges: bridges}
}

// Route returns the cheapest eligible bridge for the transfer, or
// types.ErrNoEligibleBridge when none qualifies. Latency breaks cost ties.
func (r *Router) Route(ctx context.Context, sourceChain, targetChain string, amount float64) (*types.Bridge, error) {
	if sourceChain == targetChain {
		return nil, fmt.Errorf("route %s->%s: same chain: %w", sourceChain, targetChain, types.ErrNoEligibleBridge)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *types.Bridge
	for _, b := range r.bridges {
		if !r.eligible(b, sourceChain, targetChain, amount) {
			continue
		}
		if best == nil {
			best = b
			continue
		}
		cost, bestCost := b.Cost(amount), best.Cost(amount)
		if cost < bestCost || (cost == bestCost && b.EstimatedTime < best.EstimatedTime) {
			best = b
		}
	}
	if best == nil {
		return nil, fmt.Errorf("route %s->%s amount %.2f: %w", sourceChain, targetChain, amount, types.ErrNoEligibleBridge)
	}

	route := *best
	route.SourceChain = sourceChain
	route.TargetChain = targetChain
	log.Printf("bridge: routed %.2f %s->%s via %s cost=%.2f eta=%s",
		amount, sourceChain, targetChain, route.Name, route.Cost(amount), route.EstimatedTime)
	return &route, nil
}

// Update replaces a bridge profile, inserting it when unknown
func (r *Router) Update(bridge *types.Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bridges {
		if b.Name == bridge.Name {
			r.bridges[i] = bridge
			return
		}
	}
	r.bridges = append(r.bridges, bridge)
}

func (r *Router) eligible(b *types.Bridge, sourceChain, targetChain string, amount float64) bool {
	if b.SecurityScore < r.config.MinSecurityScore {
		return false
	}
	if b.DailyVolume < r.config.MinDailyVolume {
		return false
	}
	if amount > b.DailyVolume*r.config.MaxTransferRatio {
		return false
	}
	if !supportsChain(b, sourceChain) || !supportsChain(b, targetChain) {
		return false
	}
	return true
}

// supportsChain checks the bridge's chain coverage; an unset list means the
// bridge spans all registered chains
func supportsChain(b *types.Bridge, chain string) bool {
	coverage, ok := bridgeCoverage[b.Name]
	if !ok {
		return true
	}
	for _, c := range coverage {
		if c == chain {
			return true
		}
	}
	return false
}

// Chains each bridge actually spans. Multichain runs a narrower set since
// several of its routes were wound down.
var bridgeCoverage = map[string][]string{
	"multichain": {"ethereum", "bsc", "polygon", "avalanche", "fantom"},
}

// defaultBridges returns the production bridge profiles
func defaultBridges() []*types.Bridge {
	return []*types.Bridge{
		{
			Name:          "layerzero",
			FixedFee:      4,
			FeeBps:        5,
			EstimatedTime: 4 * time.Minute,
			SecurityScore: 0.9,
			DailyVolume:   45_000_000,
		},
		{
			Name:          "stargate",
			FixedFee:      3,
			FeeBps:        6,
			EstimatedTime: 6 * time.Minute,
			SecurityScore: 0.85,
			DailyVolume:   60_000_000,
		},
		{
			Name:          "celer",
			FixedFee:      2,
			FeeBps:        4,
			EstimatedTime: 12 * time.Minute,
			SecurityScore: 0.8,
			DailyVolume:   8_000_000,
		},
		{
			Name:          "multichain",
			FixedFee:      1.5,
			FeeBps:        3,
			EstimatedTime: 18 * time.Minute,
			SecurityScore: 0.6,
			DailyVolume:   5_000_000,
		},
	}
}
