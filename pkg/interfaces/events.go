package interfaces

import (
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// EventType labels opportunity lifecycle events published on the bus
type EventType string

const (
	EventOpportunityDetected   EventType = "opportunity_detected"
	EventOpportunityRejected   EventType = "opportunity_rejected"
	EventStatusChanged         EventType = "status_changed"
	EventExecutionCompleted    EventType = "execution_completed"
	EventExecutionFailed       EventType = "execution_failed"
	EventPartialExposure       EventType = "partial_exposure"
	EventGasEstimateUpdated    EventType = "gas_estimate_updated"
	EventTrackedPairsRefreshed EventType = "tracked_pairs_refreshed"
)

// Event is one outbound notification. Core components publish; metrics,
// logging and the serving layer subscribe without the core depending on them.
type Event struct {
	Type        EventType                   `json:"type"`
	Timestamp   time.Time                   `json:"timestamp"`
	Opportunity *types.ArbitrageOpportunity `json:"opportunity,omitempty"`
	Estimate    *types.GasEstimate          `json:"estimate,omitempty"`
	Pairs       []string                    `json:"pairs,omitempty"`
	Reason      string                      `json:"reason,omitempty"`
}

// EventBus is the outbound publish/subscribe channel for lifecycle events
type EventBus interface {
	// Publish never blocks: a subscriber that cannot keep up drops events.
	Publish(event Event)

	// Subscribe returns a receive channel and a cancel function that must be
	// called to release the subscription.
	Subscribe(buffer int) (<-chan Event, func())
}
