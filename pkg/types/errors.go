package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the detection and execution pipeline. Callers
// classify failures with errors.Is; data-ingestion errors never cross their
// source boundary.
var (
	// ErrNoData is returned when no samples exist for a requested chain.
	ErrNoData = errors.New("no data for chain")

	// ErrStaleData marks quote, liquidity or gas data older than its TTL.
	// Detection for the affected pair is skipped for the cycle.
	ErrStaleData = errors.New("data older than ttl")

	// ErrRiskLimitExceeded is the normal rejection outcome when sizing would
	// breach the exposure ceiling or the gas confidence floor.
	ErrRiskLimitExceeded = errors.New("risk limit exceeded")

	// ErrNoEligibleBridge means no bridge met the volume and security bars.
	ErrNoEligibleBridge = errors.New("no eligible bridge")

	// ErrDuplicateOpportunity suppresses a detection while a non-terminal
	// opportunity exists for the same (pair, venue-pair) tuple.
	ErrDuplicateOpportunity = errors.New("non-terminal opportunity exists for venue pair")

	// ErrNotFound is returned by stores for unknown or expired entries.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition guards the opportunity state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DataSourceError wraps a failed or timed-out fetch from a single venue or
// source. Recoverable and isolated to that source.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// SimulationError marks a failed dry run. No capital was committed.
type SimulationError struct {
	OpportunityID string
	Err           error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed for %s: %v", e.OpportunityID, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// PartialExecutionError marks one leg confirmed while the other failed or
// timed out after capital was committed. The real-world exposure is recorded
// and surfaced, never silently retried.
type PartialExecutionError struct {
	OpportunityID string
	ConfirmedLeg  string
	FailedLeg     string
	Err           error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution for %s: %s leg confirmed, %s leg failed: %v",
		e.OpportunityID, e.ConfirmedLeg, e.FailedLeg, e.Err)
}

func (e *PartialExecutionError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup and not recoverable at runtime.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}
