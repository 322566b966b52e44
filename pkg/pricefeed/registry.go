package pricefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"golang.org/x/time/rate"
)

// Registry resolves venue connectors by name
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]interfaces.VenueConnector
}

// NewRegistry creates an empty connector registry
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]interfaces.VenueConnector)}
}

// Register adds a connector; duplicate names are rejected
func (r *Registry) Register(connector interfaces.VenueConnector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := connector.Name()
	if name == "" {
		return fmt.Errorf("connector name cannot be empty")
	}
	if _, exists := r.connectors[name]; exists {
		return fmt.Errorf("connector %s already registered", name)
	}
	r.connectors[name] = connector
	return nil
}

// Get returns the connector registered under name
func (r *Registry) Get(name string) (interfaces.VenueConnector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[name]
	return c, ok
}

// All returns every registered connector
func (r *Registry) All() []interfaces.VenueConnector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]interfaces.VenueConnector, 0, len(r.connectors))
	for _, c := range r.connectors {
		all = append(all, c)
	}
	return all
}

// rateLimited wraps a connector with a token-bucket limiter so one venue's
// polling stays inside its API budget
type rateLimited struct {
	inner   interfaces.VenueConnector
	limiter *rate.Limiter
}

// NewRateLimited wraps a connector with requests-per-second rate limiting
func NewRateLimited(inner interfaces.VenueConnector, rps float64, burst int) interfaces.VenueConnector {
	return &rateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *rateLimited) Name() string          { return r.inner.Name() }
func (r *rateLimited) Kind() types.VenueKind { return r.inner.Kind() }
func (r *rateLimited) Chain() string         { return r.inner.Chain() }

func (r *rateLimited) FetchQuote(ctx context.Context, pair string) (*types.Quote, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchQuote(ctx, pair)
}

func (r *rateLimited) FetchLiquidity(ctx context.Context, pair string) (*types.LiquidityRecord, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchLiquidity(ctx, pair)
}
