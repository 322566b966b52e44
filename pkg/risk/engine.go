package risk

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// Config holds risk classification thresholds and sizing parameters
type Config struct {
	MaxExposure            float64 // ceiling on summed position size, quote currency
	BaseLeverage           float64 // leverage before the tier multiplier
	MaxLeverage            float64
	VolatilityWindow       int     // recent prices used for the volatility signal
	VolatilityThreshold    float64 // stdev/mean above this is high volatility
	HighGasGwei            float64 // gas above this forces the high tier
	MinGasConfidence       float64 // estimates below this block approval
	MaintenanceMarginRatio float64
}

// DefaultConfig returns production risk parameters
func DefaultConfig() *Config {
	return &Config{
		MaxExposure:            50000,
		BaseLeverage:           3,
		MaxLeverage:            3,
		VolatilityWindow:       20,
		VolatilityThreshold:    0.02,
		HighGasGwei:            100,
		MinGasConfidence:       0.5,
		MaintenanceMarginRatio: 0.075,
	}
}

// Stop-loss distances from entry, tightest first
var stopLossLevels = []float64{0.02, 0.05, 0.10}

// Position size fraction per risk tier
func sizeMultiplier(tier types.RiskTier) float64 {
	switch tier {
	case types.RiskHigh:
		return 0.4
	case types.RiskMedium:
		return 0.7
	default:
		return 1.0
	}
}

// Leverage fraction per risk tier
func leverageMultiplier(tier types.RiskTier) float64 {
	switch tier {
	case types.RiskHigh:
		return 0.6
	case types.RiskMedium:
		return 0.8
	default:
		return 1.0
	}
}

// tierRank orders tiers so independent signals combine to the worst case
func tierRank(tier types.RiskTier) int {
	switch tier {
	case types.RiskHigh:
		return 2
	case types.RiskMedium:
		return 1
	default:
		return 0
	}
}

func maxTier(a, b types.RiskTier) types.RiskTier {
	if tierRank(b) > tierRank(a) {
		return b
	}
	return a
}

// Engine sizes approved opportunities and owns the capital ledger
type Engine struct {
	config  *Config
	gas     interfaces.GasPredictor
	history interfaces.PriceHistory
	metrics interfaces.MetricsCollector
	ledger  *ledger
}

// New creates a risk engine with the given thresholds
func New(config *Config, gas interfaces.GasPredictor, history interfaces.PriceHistory, metrics interfaces.MetricsCollector) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config:  config,
		gas:     gas,
		history: history,
		metrics: metrics,
		ledger:  newLedger(config.MaxExposure),
	}
}

// Evaluate classifies the opportunity, sizes a position under the exposure
// ceiling and reserves its capital. types.ErrRiskLimitExceeded is a normal
// rejection outcome, not a fault.
func (e *Engine) Evaluate(ctx context.Context, opp *types.ArbitrageOpportunity) (*types.Position, error) {
	gasTier, err := e.gasTier(opp)
	if err != nil {
		return nil, err
	}
	tier := maxTier(e.volatilityTier(opp.Pair), gasTier)

	size := opp.TradeAmount * sizeMultiplier(tier)
	leverage := e.clampLeverage(e.config.BaseLeverage * leverageMultiplier(tier))

	pos := &types.Position{
		OpportunityID: opp.ID,
		Size:          size,
		Leverage:      leverage,
		EntryPrice:    opp.BuyPrice,
		Margin:        size / leverage,
		Tier:          tier,
		Long:          true,
		OpenedAt:      time.Now(),
	}
	pos.LiquidationPrice = liquidationPrice(pos.EntryPrice, leverage, pos.Long)
	for _, level := range stopLossLevels {
		pos.StopLossLevels = append(pos.StopLossLevels, pos.EntryPrice*(1-level))
	}

	if err := e.ledger.reserve(pos); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.SetReservedExposure(e.ledger.exposure())
	}
	log.Printf("risk: approved %s tier=%s size=%.2f leverage=%.2f exposure=%.2f",
		opp.ID, tier, size, leverage, e.ledger.exposure())
	return pos, nil
}

// Release returns the position's capital and records the outcome. Safe to
// call more than once; only the first call moves the ledger.
func (e *Engine) Release(opportunityID string, outcome types.PositionOutcome) {
	if !e.ledger.release(opportunityID, outcome) {
		return
	}
	if e.metrics != nil {
		e.metrics.SetReservedExposure(e.ledger.exposure())
	}
	log.Printf("risk: released %s realized=%.2f partial=%t exposure=%.2f",
		opportunityID, outcome.RealizedProfit, outcome.PartialExposure, e.ledger.exposure())
}

// Reject records a zero outcome for an opportunity declined before any
// capital was reserved, so terminal opportunities always carry an outcome
func (e *Engine) Reject(opportunityID, reason string) {
	e.ledger.close(opportunityID, types.PositionOutcome{Detail: reason})
}

// Position returns the live position for an opportunity
func (e *Engine) Position(opportunityID string) (*types.Position, bool) {
	return e.ledger.position(opportunityID)
}

// Outcome returns the recorded outcome for a closed opportunity
func (e *Engine) Outcome(opportunityID string) (*types.PositionOutcome, bool) {
	return e.ledger.outcome(opportunityID)
}

// Exposure returns the sum of sized capital across live positions
func (e *Engine) Exposure() float64 {
	return e.ledger.exposure()
}

// gasTier classifies gas conditions on the opportunity's on-chain legs.
// Estimates below the confidence floor block approval outright.
func (e *Engine) gasTier(opp *types.ArbitrageOpportunity) (types.RiskTier, error) {
	tier := types.RiskLow
	for _, chain := range []string{opp.SourceChain, opp.TargetChain} {
		if chain == "" {
			continue
		}
		est, err := e.gas.Estimate(chain)
		if err != nil {
			return "", fmt.Errorf("evaluate %s: gas for %s: %w", opp.ID, chain, types.ErrStaleData)
		}
		if est.Confidence < e.config.MinGasConfidence {
			return "", fmt.Errorf("evaluate %s: gas confidence %.2f on %s below floor: %w",
				opp.ID, est.Confidence, chain, types.ErrRiskLimitExceeded)
		}
		switch {
		case est.PriceGwei > e.config.HighGasGwei || est.Volatile:
			tier = maxTier(tier, types.RiskHigh)
		case est.Spike:
			tier = maxTier(tier, types.RiskMedium)
		}
	}
	return tier, nil
}

// volatilityTier classifies recent price variance for the pair. Too little
// history reads as medium, not low: absence of data is not absence of risk.
func (e *Engine) volatilityTier(pair string) types.RiskTier {
	prices := e.history.RecentPrices(pair, e.config.VolatilityWindow)
	if len(prices) < 2 {
		return types.RiskMedium
	}

	vol := relativeStdev(prices)
	switch {
	case vol >= e.config.VolatilityThreshold:
		return types.RiskHigh
	case vol >= e.config.VolatilityThreshold/2:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func (e *Engine) clampLeverage(leverage float64) float64 {
	if leverage < 1 {
		return 1
	}
	if leverage > e.config.MaxLeverage {
		return e.config.MaxLeverage
	}
	return leverage
}

// liquidationPrice is the price at which margin is exhausted
func liquidationPrice(entry, leverage float64, long bool) float64 {
	if long {
		return entry * (1 - 1/leverage)
	}
	return entry * (1 + 1/leverage)
}

// UnrealizedPnL values the position at the given mark price
func UnrealizedPnL(pos *types.Position, markPrice float64) float64 {
	if pos.EntryPrice == 0 {
		return 0
	}
	change := (markPrice - pos.EntryPrice) / pos.EntryPrice
	if !pos.Long {
		change = -change
	}
	return pos.Notional() * change
}

// ReturnOnEquity is the unrealized profit relative to posted margin
func ReturnOnEquity(pos *types.Position, markPrice float64) float64 {
	if pos.Margin == 0 {
		return 0
	}
	return UnrealizedPnL(pos, markPrice) / pos.Margin
}

// MarginRatio is remaining equity over notional at the mark price
func MarginRatio(pos *types.Position, markPrice float64) float64 {
	notional := pos.Notional()
	if notional == 0 {
		return 0
	}
	return (pos.Margin + UnrealizedPnL(pos, markPrice)) / notional
}

// Liquidatable reports whether the position has fallen through maintenance
// margin at the mark price
func (e *Engine) Liquidatable(pos *types.Position, markPrice float64) bool {
	return MarginRatio(pos, markPrice) < e.config.MaintenanceMarginRatio
}

func relativeStdev(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}
