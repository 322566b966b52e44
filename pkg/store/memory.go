package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// Memory is the in-process opportunity store. Expiry is enforced at read
// time against the record's creation timestamp, so a restarted process and a
// long-running one agree on what is visible.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]*types.ArbitrageOpportunity
	pairs    []string
	pairsSet time.Time

	now func() time.Time
}

// NewMemory creates an empty in-process store
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*types.ArbitrageOpportunity),
		now:     time.Now,
	}
}

// Put stores a snapshot of the opportunity
func (m *Memory) Put(ctx context.Context, opp *types.ArbitrageOpportunity) error {
	snapshot := *opp
	m.mu.Lock()
	m.records[opp.ID] = &snapshot
	m.mu.Unlock()
	return nil
}

// Get returns the opportunity, or types.ErrNotFound when absent or expired
func (m *Memory) Get(ctx context.Context, id string) (*types.ArbitrageOpportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opp, ok := m.records[id]
	if !ok || opp.Expired(m.now()) {
		return nil, types.ErrNotFound
	}
	snapshot := *opp
	return &snapshot, nil
}

// List returns one page of unexpired opportunities matching the filter,
// ordered by descending net profit
func (m *Memory) List(ctx context.Context, filter *interfaces.OpportunityFilter) (*interfaces.OpportunityPage, error) {
	if filter == nil {
		filter = &interfaces.OpportunityFilter{}
	}
	now := m.now()

	m.mu.RLock()
	matched := make([]*types.ArbitrageOpportunity, 0, len(m.records))
	for _, opp := range m.records {
		if opp.Expired(now) || !matches(opp, filter) {
			continue
		}
		snapshot := *opp
		matched = append(matched, &snapshot)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].NetProfit != matched[j].NetProfit {
			return matched[i].NetProfit > matched[j].NetProfit
		}
		return matched[i].ID < matched[j].ID
	})

	page := &interfaces.OpportunityPage{
		Total:  len(matched),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	page.Opportunities = paginate(matched, filter.Offset, filter.Limit)
	return page, nil
}

// Stats summarizes the unexpired records
func (m *Memory) Stats(ctx context.Context) (*types.ArbitrageStats, error) {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &types.ArbitrageStats{LastUpdate: now}
	total := 0.0
	for _, opp := range m.records {
		if opp.Expired(now) {
			continue
		}
		stats.TotalOpportunities++
		total += opp.NetProfit
	}
	if stats.TotalOpportunities > 0 {
		stats.AverageProfit = total / float64(stats.TotalOpportunities)
	}
	return stats, nil
}

// PutTopPairs replaces the tracked-pair list
func (m *Memory) PutTopPairs(ctx context.Context, pairs []string) error {
	m.mu.Lock()
	m.pairs = append([]string(nil), pairs...)
	m.pairsSet = m.now()
	m.mu.Unlock()
	return nil
}

// TopPairs returns up to n tracked pairs; the list expires with the
// liquidity TTL
func (m *Memory) TopPairs(ctx context.Context, n int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pairsSet.IsZero() || m.now().Sub(m.pairsSet) > types.LiquidityTTL {
		return nil, nil
	}
	pairs := m.pairs
	if n > 0 && n < len(pairs) {
		pairs = pairs[:n]
	}
	return append([]string(nil), pairs...), nil
}

// Sweep drops expired records and returns how many were removed
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, opp := range m.records {
		if opp.Expired(now) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}

func matches(opp *types.ArbitrageOpportunity, filter *interfaces.OpportunityFilter) bool {
	if filter.Symbol != "" && opp.Pair != filter.Symbol {
		return false
	}
	if opp.NetProfit < filter.MinProfit {
		return false
	}
	if filter.Status != "" && opp.Status != filter.Status {
		return false
	}
	return true
}

func paginate(opps []*types.ArbitrageOpportunity, offset, limit int) []*types.ArbitrageOpportunity {
	if offset >= len(opps) {
		return nil
	}
	opps = opps[offset:]
	if limit > 0 && limit < len(opps) {
		opps = opps[:limit]
	}
	return opps
}
