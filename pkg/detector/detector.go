package detector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/chains"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/google/uuid"
)

// Config holds detection thresholds and the cost model parameters
type Config struct {
	MinSpreadPercent   float64 // reject below this spread
	CoverageRatio      float64 // net profit must cover cost by this factor
	MaxTradeAmount     float64 // notional per opportunity, quote currency
	CEXFeeBps          float64 // taker fee per CEX leg
	DEXFeeBps          float64 // pool fee per DEX leg
	DefaultSlippageBps float64 // used when no liquidity record exists
	SlippageImpactCap  float64 // ceiling on notional/TVL price impact
	GasPriceMultiplier float64 // safety margin over the predicted gas price
	GasPriceCapGwei    float64 // hard cap after the multiplier
	CrossChainEnabled  bool
	CrossDEXEnabled    bool
}

// DefaultConfig returns the default detection thresholds
func DefaultConfig() *Config {
	return &Config{
		MinSpreadPercent:   0.5,
		CoverageRatio:      1.2,
		MaxTradeAmount:     10000,
		CEXFeeBps:          10,
		DEXFeeBps:          30,
		DefaultSlippageBps: 5,
		SlippageImpactCap:  0.05,
		GasPriceMultiplier: 1.1,
		GasPriceCapGwei:    500,
		CrossChainEnabled:  true,
		CrossDEXEnabled:    true,
	}
}

// Detector computes cross-venue spreads net of fees, gas, slippage and
// bridge cost, and emits pending opportunities. It enforces the one
// non-terminal opportunity per (pair, venue-pair) invariant.
type Detector struct {
	config  *Config
	feeds   interfaces.PriceFeedAggregator
	gas     interfaces.GasPredictor
	ranker  interfaces.LiquidityRanker
	router  interfaces.BridgeRouter
	store   interfaces.OpportunityStore
	bus     interfaces.EventBus
	metrics interfaces.MetricsCollector

	mu     sync.Mutex
	active map[string]string // VenueKey -> non-terminal opportunity id
}

// New creates an opportunity detector
func New(
	config *Config,
	feeds interfaces.PriceFeedAggregator,
	gas interfaces.GasPredictor,
	ranker interfaces.LiquidityRanker,
	router interfaces.BridgeRouter,
	store interfaces.OpportunityStore,
	bus interfaces.EventBus,
	metrics interfaces.MetricsCollector,
) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{
		config:  config,
		feeds:   feeds,
		gas:     gas,
		ranker:  ranker,
		router:  router,
		store:   store,
		bus:     bus,
		metrics: metrics,
		active:  make(map[string]string),
	}
}

// Detect evaluates one pair for the current cycle. A (nil, nil) return means
// no profitable spread; types.ErrDuplicateOpportunity and types.ErrStaleData
// are expected rejection outcomes, not faults.
func (d *Detector) Detect(ctx context.Context, pair string) (*types.ArbitrageOpportunity, error) {
	started := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.RecordDetectionLatency(pair, time.Since(started))
		}
	}()

	quotes := d.feeds.Quotes(ctx, pair)
	if len(quotes) < 2 {
		return nil, nil
	}

	low, high := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Price < low.Price {
			low = q
		}
		if q.Price > high.Price {
			high = q
		}
	}

	spreadPercent := (high.Price - low.Price) / low.Price * 100
	if spreadPercent < d.config.MinSpreadPercent {
		return nil, nil
	}

	if low.Chain != "" && high.Chain != "" {
		if !d.config.CrossDEXEnabled {
			return nil, nil
		}
		if low.Chain != high.Chain && !d.config.CrossChainEnabled {
			return nil, nil
		}
	}

	opp := &types.ArbitrageOpportunity{
		Pair:          pair,
		SourceVenue:   low.Venue,
		TargetVenue:   high.Venue,
		SourceChain:   low.Chain,
		TargetChain:   high.Chain,
		BuyPrice:      low.Price,
		SellPrice:     high.Price,
		SpreadPercent: spreadPercent,
		TradeAmount:   d.config.MaxTradeAmount,
	}

	key := opp.VenueKey()
	if !d.claim(key) {
		d.reject(opp, "duplicate venue pair")
		return nil, fmt.Errorf("detect %s: %w", pair, types.ErrDuplicateOpportunity)
	}

	if err := d.cost(ctx, opp); err != nil {
		d.releaseClaim(key)
		return nil, err
	}

	opp.GrossProfit = opp.TradeAmount * (opp.SellPrice - opp.BuyPrice) / opp.BuyPrice
	opp.NetProfit = opp.GrossProfit - opp.TotalCost

	if opp.TotalCost <= 0 || opp.NetProfit/opp.TotalCost < d.config.CoverageRatio {
		d.releaseClaim(key)
		d.reject(opp, "net profit below coverage ratio")
		return nil, nil
	}

	opp.ID = uuid.NewString()
	opp.CreatedAt = time.Now()
	opp.Status = types.StatusPending
	opp.StatusUpdated = opp.CreatedAt

	d.mu.Lock()
	d.active[key] = opp.ID
	d.mu.Unlock()

	if err := d.store.Put(ctx, opp); err != nil {
		log.Printf("detector: store opportunity %s: %v", opp.ID, err)
	}
	if d.bus != nil {
		d.bus.Publish(interfaces.Event{
			Type:        interfaces.EventOpportunityDetected,
			Timestamp:   opp.CreatedAt,
			Opportunity: opp,
		})
	}
	if d.metrics != nil {
		d.metrics.RecordOpportunity(opp)
	}

	return opp, nil
}

// Settle clears the dedup slot once an opportunity reaches a terminal state
func (d *Detector) Settle(opp *types.ArbitrageOpportunity) {
	if !opp.Status.Terminal() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[opp.VenueKey()] == opp.ID {
		delete(d.active, opp.VenueKey())
	}
}

// ActiveCount returns the number of venue-pair slots currently held
func (d *Detector) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// duplicate reports whether a non-terminal opportunity holds the venue key
// claimMarker holds a venue-pair slot between the dedup check and id
// assignment so overlapping cycles cannot both emit for the same tuple
const claimMarker = "\x00claimed"

// claim reserves the venue-pair slot for this cycle. The caller must either
// record the final opportunity id or release the claim on rejection.
func (d *Detector) claim(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, held := d.active[key]; held {
		return false
	}
	d.active[key] = claimMarker
	return true
}

func (d *Detector) releaseClaim(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active[key] == claimMarker {
		delete(d.active, key)
	}
}

// cost fills the fee, gas, slippage and bridge components of the estimate.
// cost = venue_fees + gas + slippage + bridge.
func (d *Detector) cost(ctx context.Context, opp *types.ArbitrageOpportunity) error {
	amount := opp.TradeAmount

	opp.VenueFees = amount * (d.legFeeBps(opp.SourceChain) + d.legFeeBps(opp.TargetChain)) / 10000

	gasCost, err := d.gasCost(opp)
	if err != nil {
		return err
	}
	opp.GasCost = gasCost

	opp.SlippageCost = d.slippageCost(opp.Pair, amount)

	if opp.CrossChain() {
		bridge, err := d.router.Route(ctx, opp.SourceChain, opp.TargetChain, amount)
		if err != nil {
			if errors.Is(err, types.ErrNoEligibleBridge) {
				d.reject(opp, "no eligible bridge")
			}
			return err
		}
		opp.BridgeCost = bridge.Cost(amount)
	}

	opp.TotalCost = opp.VenueFees + opp.GasCost + opp.SlippageCost + opp.BridgeCost
	return nil
}

// legFeeBps returns the fee for one leg given the venue's chain binding
func (d *Detector) legFeeBps(chain string) float64 {
	if chain == "" {
		return d.config.CEXFeeBps
	}
	return d.config.DEXFeeBps
}

// gasCost prices the on-chain legs using the predicted gas level, with the
// configured multiplier and hard cap applied
func (d *Detector) gasCost(opp *types.ArbitrageOpportunity) (float64, error) {
	total := 0.0
	for _, chain := range []string{opp.SourceChain, opp.TargetChain} {
		if chain == "" {
			continue
		}
		est, err := d.gas.Estimate(chain)
		if err != nil {
			// no usable gas data means this pair sits out the cycle
			return 0, fmt.Errorf("detect %s: gas for %s: %w", opp.Pair, chain, types.ErrStaleData)
		}

		priceGwei := est.PriceGwei * d.config.GasPriceMultiplier
		if priceGwei > d.config.GasPriceCapGwei {
			priceGwei = d.config.GasPriceCapGwei
		}

		meta, _ := chains.Get(chain)
		units := meta.SwapGasUnits
		if units == 0 {
			units = 200000
		}
		total += chains.GasCostUSD(chain, priceGwei, units)
	}
	return total, nil
}

// slippageCost estimates price impact against available depth; notional/TVL
// capped at the configured ceiling
func (d *Detector) slippageCost(pair string, amount float64) float64 {
	rec, ok := d.ranker.Record(pair)
	if !ok || rec.TVL <= 0 {
		return amount * d.config.DefaultSlippageBps / 10000
	}

	impact := amount / rec.TVL
	if impact > d.config.SlippageImpactCap {
		impact = d.config.SlippageImpactCap
	}
	return amount * impact
}

// reject publishes a rejection for observability without creating a record
func (d *Detector) reject(opp *types.ArbitrageOpportunity, reason string) {
	if d.bus != nil {
		d.bus.Publish(interfaces.Event{
			Type:        interfaces.EventOpportunityRejected,
			Timestamp:   time.Now(),
			Opportunity: opp,
			Reason:      reason,
		})
	}
	if d.metrics != nil {
		d.metrics.RecordRejection(reason)
	}
}
