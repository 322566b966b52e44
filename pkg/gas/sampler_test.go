package gas

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	name    string
	chain   string
	price   float64
	err     error
	samples atomic.Int64
}

func (s *fixedSource) Name() string  { return s.name }
func (s *fixedSource) Chain() string { return s.chain }

func (s *fixedSource) Sample(ctx context.Context) (float64, error) {
	s.samples.Add(1)
	return s.price, s.err
}

type captureBus struct {
	events chan interfaces.Event
}

func (b *captureBus) Publish(event interfaces.Event) {
	select {
	case b.events <- event:
	default:
	}
}

func (b *captureBus) Subscribe(buffer int) (<-chan interfaces.Event, func()) {
	return nil, func() {}
}

func TestSamplerFeedsPredictor(t *testing.T) {
	predictor := NewPredictor(nil)
	src := &fixedSource{name: "rpc", chain: "ethereum", price: 40}
	bus := &captureBus{events: make(chan interfaces.Event, 8)}

	sampler := NewSampler(predictor, []Source{src}, 10*time.Millisecond, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sampler.Start(ctx)

	// Polling happens immediately, then on the ticker.
	assert.Eventually(t, func() bool {
		return src.samples.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	est, err := predictor.Estimate("ethereum")
	require.NoError(t, err)
	assert.InDelta(t, 40, est.PriceGwei, 0.01)

	select {
	case event := <-bus.events:
		assert.Equal(t, interfaces.EventGasEstimateUpdated, event.Type)
		require.NotNil(t, event.Estimate)
		assert.Equal(t, "ethereum", event.Estimate.Chain)
	case <-time.After(time.Second):
		t.Fatal("no gas estimate event published")
	}
}

func TestSamplerFailingSourceIsIsolated(t *testing.T) {
	predictor := NewPredictor(nil)
	good := &fixedSource{name: "good", chain: "arbitrum", price: 0.2}
	bad := &fixedSource{name: "bad", chain: "optimism", err: fmt.Errorf("rpc down")}

	sampler := NewSampler(predictor, []Source{good, bad}, 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sampler.Start(ctx)

	assert.Eventually(t, func() bool {
		_, err := predictor.Estimate("arbitrum")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	_, err := predictor.Estimate("optimism")
	assert.Error(t, err)
}

func TestSimulatedSourceWalkStaysPositive(t *testing.T) {
	src := NewSimulatedSource("sim", "ethereum", 0.02)

	for i := 0; i < 200; i++ {
		price, err := src.Sample(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, price, 0.01)
	}
}

func TestSimulatedSourceCancelledContext(t *testing.T) {
	src := NewSimulatedSource("sim", "ethereum", 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Sample(ctx)
	assert.Error(t, err)
}
