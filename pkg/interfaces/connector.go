package interfaces

import (
	"context"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// VenueConnector is the uniform data-source capability implemented once per
// venue. CEX and DEX clients both satisfy it; callers never depend on the
// concrete venue.
type VenueConnector interface {
	Name() string
	Kind() types.VenueKind
	Chain() string // empty for CEX venues
	FetchQuote(ctx context.Context, pair string) (*types.Quote, error)
	FetchLiquidity(ctx context.Context, pair string) (*types.LiquidityRecord, error)
}

// ConnectorRegistry resolves venue connectors by name
type ConnectorRegistry interface {
	Register(connector VenueConnector) error
	Get(name string) (VenueConnector, bool)
	All() []VenueConnector
}
