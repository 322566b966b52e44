package pricefeed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"golang.org/x/sync/errgroup"
)

// AggregatorConfig holds per-fetch bounds for the quote fan-out
type AggregatorConfig struct {
	FetchTimeout time.Duration
	HistorySize  int
}

// DefaultAggregatorConfig returns default fan-out bounds
func DefaultAggregatorConfig() *AggregatorConfig {
	return &AggregatorConfig{
		FetchTimeout: 1500 * time.Millisecond,
		HistorySize:  64,
	}
}

// Aggregator fetches one quote per configured venue concurrently, each with
// an independent timeout. A venue that errors or times out is dropped from
// the cycle's result set without failing the call. It also keeps a short
// mid-price history per pair for the risk engine's volatility signal.
type Aggregator struct {
	config   *AggregatorConfig
	registry interfaces.ConnectorRegistry

	mu      sync.RWMutex
	history map[string][]float64

	now func() time.Time
}

// NewAggregator creates a price feed aggregator over the registry
func NewAggregator(config *AggregatorConfig, registry interfaces.ConnectorRegistry) *Aggregator {
	if config == nil {
		config = DefaultAggregatorConfig()
	}
	return &Aggregator{
		config:   config,
		registry: registry,
		history:  make(map[string][]float64),
		now:      time.Now,
	}
}

// Quotes returns all live quotes for the pair from every registered venue.
// Expired quotes are filtered out; the caller decides whether enough venues
// answered to proceed.
func (a *Aggregator) Quotes(ctx context.Context, pair string) []*types.Quote {
	connectors := a.registry.All()
	if len(connectors) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		quotes []*types.Quote
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, connector := range connectors {
		connector := connector
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, a.config.FetchTimeout)
			defer cancel()

			quote, err := connector.FetchQuote(fetchCtx, pair)
			if err != nil {
				// isolated to this venue; the cycle proceeds without it
				log.Printf("price feed: %v", &types.DataSourceError{Source: connector.Name(), Err: err})
				return nil
			}
			if quote == nil || quote.Price <= 0 || quote.Expired(a.now()) {
				return nil
			}

			mu.Lock()
			quotes = append(quotes, quote)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	a.recordHistory(pair, quotes)
	return quotes
}

// RecentPrices returns up to n most recent mid prices observed for the pair
func (a *Aggregator) RecentPrices(pair string, n int) []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	hist := a.history[pair]
	if n <= 0 || len(hist) == 0 {
		return nil
	}
	if n > len(hist) {
		n = len(hist)
	}
	out := make([]float64, n)
	copy(out, hist[len(hist)-n:])
	return out
}

// recordHistory appends the cycle's cross-venue mid price to the pair history
func (a *Aggregator) recordHistory(pair string, quotes []*types.Quote) {
	if len(quotes) == 0 {
		return
	}
	mid := 0.0
	for _, q := range quotes {
		mid += q.Price
	}
	mid /= float64(len(quotes))

	a.mu.Lock()
	defer a.mu.Unlock()

	hist := append(a.history[pair], mid)
	if len(hist) > a.config.HistorySize {
		hist = hist[1:]
	}
	a.history[pair] = hist
}
