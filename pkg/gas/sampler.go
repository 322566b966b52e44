package gas

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
)

// Source supplies gas-price samples for one chain
type Source interface {
	Name() string
	Chain() string
	Sample(ctx context.Context) (float64, error)
}

// Sampler polls each source on a fixed cadence and feeds the predictor. A
// failing source only degrades its own contribution.
type Sampler struct {
	predictor *Predictor
	sources   []Source
	cadence   time.Duration
	bus       interfaces.EventBus
	metrics   interfaces.MetricsCollector
}

// NewSampler creates a sampler over the given sources
func NewSampler(predictor *Predictor, sources []Source, cadence time.Duration, bus interfaces.EventBus, metrics interfaces.MetricsCollector) *Sampler {
	if cadence <= 0 {
		cadence = 30 * time.Second
	}
	return &Sampler{
		predictor: predictor,
		sources:   sources,
		cadence:   cadence,
		bus:       bus,
		metrics:   metrics,
	}
}

// Start launches one polling loop per source. Loops stop with the context.
func (s *Sampler) Start(ctx context.Context) {
	for _, src := range s.sources {
		go s.sourceLoop(ctx, src)
	}
}

func (s *Sampler) sourceLoop(ctx context.Context, src Source) {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	for {
		s.poll(ctx, src)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sampler) poll(ctx context.Context, src Source) {
	price, err := src.Sample(ctx)
	if err != nil {
		log.Printf("gas: sample %s on %s: %v", src.Name(), src.Chain(), err)
		return
	}
	s.predictor.Submit(src.Name(), src.Chain(), price, time.Now())

	est, err := s.predictor.Estimate(src.Chain())
	if err != nil {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordGasEstimate(est)
	}
	if s.bus != nil {
		s.bus.Publish(interfaces.Event{
			Type:      interfaces.EventGasEstimateUpdated,
			Timestamp: time.Now(),
			Estimate:  est,
		})
	}
}

// SimulatedSource produces a bounded random walk around a base gas level,
// for development and tests without live node connections
type SimulatedSource struct {
	name  string
	chain string

	mu    sync.Mutex
	price float64
	rng   *rand.Rand
}

// NewSimulatedSource creates a simulated source starting at the base level
func NewSimulatedSource(name, chain string, baseGwei float64) *SimulatedSource {
	return &SimulatedSource{
		name:  name,
		chain: chain,
		price: baseGwei,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimulatedSource) Name() string  { return s.name }
func (s *SimulatedSource) Chain() string { return s.chain }

// Sample steps the walk and returns the new level
func (s *SimulatedSource) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.price *= 1 + (s.rng.Float64()-0.5)*0.1
	if s.price < 0.01 {
		s.price = 0.01
	}
	return s.price, nil
}

var _ Source = (*SimulatedSource)(nil)
