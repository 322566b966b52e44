package events

import (
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch1, cancel1 := b.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(4)
	defer cancel2()

	b.Publish(interfaces.Event{Type: interfaces.EventOpportunityDetected})

	assert.Equal(t, interfaces.EventOpportunityDetected, (<-ch1).Type)
	assert.Equal(t, interfaces.EventOpportunityDetected, (<-ch2).Type)
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(interfaces.Event{Type: interfaces.EventGasEstimateUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
	assert.Equal(t, uint64(99), b.Dropped())
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, cancel := b.Subscribe(4)
	cancel()

	// the channel closes and later publishes go nowhere
	_, open := <-ch
	assert.False(t, open)
	b.Publish(interfaces.Event{Type: interfaces.EventOpportunityDetected})

	// double cancel is harmless
	cancel()
}

func TestCloseDropsSubscriptions(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Close()
	_, open := <-ch
	assert.False(t, open)

	// publish and subscribe after close are inert
	b.Publish(interfaces.Event{Type: interfaces.EventOpportunityDetected})
	dead, cancel2 := b.Subscribe(4)
	defer cancel2()
	_, open = <-dead
	require.False(t, open)
}
