package types

import (
	"time"
)

// QuoteTTL is how long a realtime quote stays usable for detection.
const QuoteTTL = 60 * time.Second

// LiquidityTTL is how long a liquidity record stays usable for ranking.
const LiquidityTTL = 100 * time.Hour

// VenueKind distinguishes centralized and on-chain venues
type VenueKind string

const (
	VenueCEX VenueKind = "cex"
	VenueDEX VenueKind = "dex"
)

// Quote is a normalized, side-agnostic mid-price observation from one venue
type Quote struct {
	Pair      string    `json:"pair"`
	Venue     string    `json:"venue"`
	Price     float64   `json:"price"`
	Chain     string    `json:"chain,omitempty"` // empty for CEX venues
	Timestamp time.Time `json:"timestamp"`
}

// Expired reports whether the quote is older than its TTL at the given instant
func (q *Quote) Expired(now time.Time) bool {
	return now.Sub(q.Timestamp) > QuoteTTL
}

// GasSample is one raw gas-price observation from a single source
type GasSample struct {
	Source    string    `json:"source"`
	Chain     string    `json:"chain"`
	PriceGwei float64   `json:"price_gwei"`
	Timestamp time.Time `json:"timestamp"`
}

// GasTrend describes the direction of recent gas-price movement
type GasTrend string

const (
	GasTrendRising  GasTrend = "rising"
	GasTrendFalling GasTrend = "falling"
	GasTrendStable  GasTrend = "stable"
)

// GasEstimate is a smoothed, confidence-scored chain-level gas price.
// The predictor replaces it wholesale on each update; readers hold an
// immutable snapshot.
type GasEstimate struct {
	Chain      string    `json:"chain"`
	PriceGwei  float64   `json:"price_gwei"`
	Confidence float64   `json:"confidence"`
	Trend      GasTrend  `json:"trend"`
	Volatile   bool      `json:"volatile"`
	Spike      bool      `json:"spike"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LiquidityRecord aggregates pool depth and volume for one pair on one venue
type LiquidityRecord struct {
	Pair        string    `json:"pair"`
	Venue       string    `json:"venue"`
	TVL         float64   `json:"tvl"`
	Volume24h   float64   `json:"volume_24h"`
	Score       float64   `json:"score"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Expired reports whether the record is older than the liquidity TTL
func (r *LiquidityRecord) Expired(now time.Time) bool {
	return now.Sub(r.RefreshedAt) > LiquidityTTL
}
