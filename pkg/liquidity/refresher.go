package liquidity

import (
	"context"
	"log"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// RefresherConfig controls the periodic per-venue liquidity refresh
type RefresherConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxPairs    int
}

// DefaultRefresherConfig returns default refresh cadence and backoff
func DefaultRefresherConfig() *RefresherConfig {
	return &RefresherConfig{
		Interval:    5 * time.Minute,
		Timeout:     10 * time.Second,
		BackoffBase: time.Second,
		BackoffMax:  60 * time.Second,
		MaxPairs:    30,
	}
}

// Refresher runs one refresh loop per venue connector. A failing venue backs
// off independently and degrades only its own contribution; the ranking
// never stalls on a dead source.
type Refresher struct {
	config   *RefresherConfig
	registry interfaces.ConnectorRegistry
	ranker   *Ranker
	store    interfaces.OpportunityStore
	bus      interfaces.EventBus
	pairs    []string
}

// NewRefresher creates a liquidity refresher over the given pair universe
func NewRefresher(
	config *RefresherConfig,
	registry interfaces.ConnectorRegistry,
	ranker *Ranker,
	store interfaces.OpportunityStore,
	bus interfaces.EventBus,
	pairs []string,
) *Refresher {
	if config == nil {
		config = DefaultRefresherConfig()
	}
	return &Refresher{
		config:   config,
		registry: registry,
		ranker:   ranker,
		store:    store,
		bus:      bus,
		pairs:    pairs,
	}
}

// Start launches one goroutine per venue plus the tracked-pairs publisher.
// All loops stop when the context is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	for _, connector := range r.registry.All() {
		go r.venueLoop(ctx, connector)
	}
	go r.publishLoop(ctx)
}

// venueLoop refreshes every tracked pair from one venue with exponential
// backoff on failure
func (r *Refresher) venueLoop(ctx context.Context, connector interfaces.VenueConnector) {
	backoff := r.config.BackoffBase

	for {
		if err := r.refreshVenue(ctx, connector); err != nil {
			log.Printf("liquidity refresh: %v", err)
			backoff *= 2
			if backoff > r.config.BackoffMax {
				backoff = r.config.BackoffMax
			}
		} else {
			backoff = r.config.Interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// refreshVenue fetches liquidity for all tracked pairs from one venue
func (r *Refresher) refreshVenue(ctx context.Context, connector interfaces.VenueConnector) error {
	for _, pair := range r.pairs {
		fetchCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		rec, err := connector.FetchLiquidity(fetchCtx, pair)
		cancel()

		if err != nil {
			return &types.DataSourceError{Source: connector.Name(), Err: err}
		}
		r.ranker.Refresh(rec.Pair, rec.Venue, rec.TVL, rec.Volume24h)
	}
	return nil
}

// publishLoop periodically snapshots the ranking into the store and onto
// the event bus
func (r *Refresher) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			top := r.ranker.TopPairs(r.config.MaxPairs)
			if len(top) == 0 {
				continue
			}
			if err := r.store.PutTopPairs(ctx, top); err != nil {
				log.Printf("liquidity refresh: store top pairs: %v", err)
			}
			r.bus.Publish(interfaces.Event{
				Type:      interfaces.EventTrackedPairsRefreshed,
				Timestamp: time.Now(),
				Pairs:     top,
			})
		}
	}
}
