package events

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
)

// Bus fans lifecycle events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full loses events rather than stalling the
// pipeline that produced them.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan interfaces.Event
	closed bool

	dropped atomic.Uint64
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan interfaces.Event)}
}

// Publish delivers the event to every subscriber with buffer room
func (b *Bus) Publish(event interfaces.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a buffered receiver. The returned cancel function
// releases the subscription and closes the channel; it is safe to call more
// than once.
func (b *Bus) Subscribe(buffer int) (<-chan interfaces.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan interfaces.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close drops all subscriptions and closes their channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	if n := b.dropped.Load(); n > 0 {
		log.Printf("events: %d events dropped over bus lifetime", n)
	}
}

// Dropped returns how many events were lost to full subscriber buffers
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
