package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// ledger tracks reserved capital across live positions. Reservation and the
// ceiling check happen under one lock so concurrent approvals can never push
// total exposure past the ceiling. No I/O happens while the lock is held.
type ledger struct {
	mu       sync.Mutex
	ceiling  float64
	reserved float64
	open     map[string]*types.Position
	closed   map[string]*types.PositionOutcome
}

func newLedger(ceiling float64) *ledger {
	return &ledger{
		ceiling: ceiling,
		open:    make(map[string]*types.Position),
		closed:  make(map[string]*types.PositionOutcome),
	}
}

// reserve commits the position's size against the ceiling
func (l *ledger) reserve(pos *types.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.open[pos.OpportunityID]; exists {
		return fmt.Errorf("reserve %s: %w", pos.OpportunityID, types.ErrDuplicateOpportunity)
	}
	if l.reserved+pos.Size > l.ceiling {
		return fmt.Errorf("reserve %s: %.2f over ceiling %.2f: %w",
			pos.OpportunityID, l.reserved+pos.Size, l.ceiling, types.ErrRiskLimitExceeded)
	}

	l.reserved += pos.Size
	l.open[pos.OpportunityID] = pos
	return nil
}

// release frees the position's capital and records the outcome. Releasing an
// unknown id is a no-op so double release cannot corrupt the ledger.
func (l *ledger) release(opportunityID string, outcome types.PositionOutcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.open[opportunityID]
	if !ok {
		return false
	}

	l.reserved -= pos.Size
	if l.reserved < 0 {
		l.reserved = 0
	}
	delete(l.open, opportunityID)

	outcome.OpportunityID = opportunityID
	if outcome.ClosedAt.IsZero() {
		outcome.ClosedAt = time.Now()
	}
	l.closed[opportunityID] = &outcome
	return true
}

// close records an outcome for an opportunity that never reserved capital.
// The first outcome for an id wins.
func (l *ledger) close(opportunityID string, outcome types.PositionOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.closed[opportunityID]; ok {
		return
	}
	outcome.OpportunityID = opportunityID
	if outcome.ClosedAt.IsZero() {
		outcome.ClosedAt = time.Now()
	}
	l.closed[opportunityID] = &outcome
}

func (l *ledger) position(opportunityID string) (*types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.open[opportunityID]
	return pos, ok
}

func (l *ledger) outcome(opportunityID string) (*types.PositionOutcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, ok := l.closed[opportunityID]
	return out, ok
}

func (l *ledger) exposure() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved
}
