package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/google/uuid"
)

// PaperOrderClient fills orders against an internal book instead of a live
// exchange. Orders become uncancelable once the fill window passes, which
// mirrors how market orders behave on real venues.
type PaperOrderClient struct {
	fillWindow time.Duration

	mu     sync.Mutex
	orders map[string]*paperOrder
}

type paperOrder struct {
	leg      *interfaces.OrderLeg
	placedAt time.Time
}

// NewPaperOrderClient creates a paper trading client. Orders placed more than
// fillWindow ago count as filled.
func NewPaperOrderClient(fillWindow time.Duration) *PaperOrderClient {
	return &PaperOrderClient{
		fillWindow: fillWindow,
		orders:     make(map[string]*paperOrder),
	}
}

// PlaceOrder accepts the order and returns its id
func (c *PaperOrderClient) PlaceOrder(ctx context.Context, leg *interfaces.OrderLeg) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if leg.Amount <= 0 {
		return "", fmt.Errorf("place order on %s: non-positive amount %.8f", leg.Venue, leg.Amount)
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.orders[id] = &paperOrder{leg: leg, placedAt: time.Now()}
	c.mu.Unlock()
	return id, nil
}

// CancelOrder removes the order if it has not filled yet
func (c *PaperOrderClient) CancelOrder(ctx context.Context, venue, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel %s on %s: unknown order", orderID, venue)
	}
	if time.Since(order.placedAt) > c.fillWindow {
		return fmt.Errorf("cancel %s on %s: already filled", orderID, venue)
	}
	delete(c.orders, orderID)
	return nil
}

// Open returns the number of resting orders
func (c *PaperOrderClient) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}
