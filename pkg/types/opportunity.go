package types

import (
	"time"
)

// OpportunityTTL is how long an opportunity record is retained.
const OpportunityTTL = 100 * time.Hour

// OpportunityStatus represents the lifecycle state of an arbitrage opportunity
type OpportunityStatus string

const (
	StatusPending   OpportunityStatus = "pending"
	StatusSimulated OpportunityStatus = "simulated"
	StatusExecuting OpportunityStatus = "executing"
	StatusCompleted OpportunityStatus = "completed"
	StatusFailed    OpportunityStatus = "failed"
)

// Terminal reports whether the status is a final state
func (s OpportunityStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Valid transitions: pending -> simulated, pending -> failed,
// simulated -> executing, simulated -> failed, executing -> completed,
// executing -> failed.
func (s OpportunityStatus) CanTransitionTo(next OpportunityStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSimulated || next == StatusFailed
	case StatusSimulated:
		return next == StatusExecuting || next == StatusFailed
	case StatusExecuting:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ArbitrageOpportunity is a detected, costed candidate trade between two
// venues for one pair. Amounts are denominated in the quote currency.
type ArbitrageOpportunity struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Pair        string    `json:"pair"`
	SourceVenue string    `json:"source_venue"` // venue to buy on (lower price)
	TargetVenue string    `json:"target_venue"` // venue to sell on (higher price)
	SourceChain string    `json:"source_chain,omitempty"`
	TargetChain string    `json:"target_chain,omitempty"`

	BuyPrice      float64 `json:"buy_price"`
	SellPrice     float64 `json:"sell_price"`
	SpreadPercent float64 `json:"spread_percent"`
	TradeAmount   float64 `json:"trade_amount"` // notional in quote currency

	GrossProfit  float64 `json:"gross_profit"`
	VenueFees    float64 `json:"venue_fees"`
	GasCost      float64 `json:"gas_cost"`
	SlippageCost float64 `json:"slippage_cost"`
	BridgeCost   float64 `json:"bridge_cost"`
	TotalCost    float64 `json:"total_cost"`
	NetProfit    float64 `json:"net_profit"`

	Status        OpportunityStatus `json:"status"`
	StatusUpdated time.Time         `json:"status_updated"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// CrossChain reports whether executing the trade requires a bridge
func (o *ArbitrageOpportunity) CrossChain() bool {
	return o.SourceChain != "" && o.TargetChain != "" && o.SourceChain != o.TargetChain
}

// VenueKey identifies the (pair, venue-pair) tuple used for deduplication
func (o *ArbitrageOpportunity) VenueKey() string {
	return o.Pair + "|" + o.SourceVenue + "|" + o.TargetVenue
}

// Expired reports whether the record is past its retention window
func (o *ArbitrageOpportunity) Expired(now time.Time) bool {
	return now.Sub(o.CreatedAt) > OpportunityTTL
}

// RiskTier classifies market conditions for sizing decisions
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Position is the sized capital commitment backing an approved opportunity.
// Owned exclusively by the risk engine; the execution coordinator holds a
// reference only.
type Position struct {
	OpportunityID    string    `json:"opportunity_id"`
	Size             float64   `json:"size"` // committed capital in quote currency
	Leverage         float64   `json:"leverage"`
	EntryPrice       float64   `json:"entry_price"`
	Margin           float64   `json:"margin"`
	LiquidationPrice float64   `json:"liquidation_price"`
	StopLossLevels   []float64 `json:"stop_loss_levels"`
	Tier             RiskTier  `json:"tier"`
	Long             bool      `json:"long"`
	OpenedAt         time.Time `json:"opened_at"`
}

// Notional returns the leveraged exposure of the position
func (p *Position) Notional() float64 {
	return p.Size * p.Leverage
}

// PositionOutcome records the result of a closed position. Every terminal
// opportunity has exactly one outcome, even when the realized profit is zero.
type PositionOutcome struct {
	OpportunityID   string    `json:"opportunity_id"`
	RealizedProfit  float64   `json:"realized_profit"`
	PartialExposure bool      `json:"partial_exposure"`
	Detail          string    `json:"detail,omitempty"`
	ClosedAt        time.Time `json:"closed_at"`
}

// Bridge describes one cross-chain transfer route
type Bridge struct {
	Name          string        `json:"name"`
	SourceChain   string        `json:"source_chain"`
	TargetChain   string        `json:"target_chain"`
	FixedFee      float64       `json:"fixed_fee"`
	FeeBps        float64       `json:"fee_bps"`
	EstimatedTime time.Duration `json:"estimated_time"`
	SecurityScore float64       `json:"security_score"`
	DailyVolume   float64       `json:"daily_volume"`
}

// Cost returns the total bridging cost for the given amount
func (b *Bridge) Cost(amount float64) float64 {
	return b.FixedFee + b.FeeBps*amount/10000
}

// ArbitrageStats summarizes detected opportunities for the query surface
type ArbitrageStats struct {
	TotalOpportunities int       `json:"total_opportunities"`
	AverageProfit      float64   `json:"average_profit"`
	LastUpdate         time.Time `json:"last_update"`
}
