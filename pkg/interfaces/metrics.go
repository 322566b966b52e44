package interfaces

import (
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// MetricsCollector records pipeline activity for the monitoring surface
type MetricsCollector interface {
	RecordOpportunity(opp *types.ArbitrageOpportunity)
	RecordRejection(reason string)
	RecordExecution(opp *types.ArbitrageOpportunity, success bool, duration time.Duration)
	RecordDetectionLatency(pair string, duration time.Duration)
	RecordGasEstimate(estimate *types.GasEstimate)
	SetReservedExposure(amount float64)
}
