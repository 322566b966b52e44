package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "arbitrage:"
	opportunityKey = keyPrefix + "opportunity:"
	indexKey       = keyPrefix + "opportunities"
	topPairsKey    = keyPrefix + "top_pairs"
)

// Redis persists opportunities across restarts. Per-record expiry rides on
// Redis TTLs; the index set is repaired lazily as dead ids surface.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a store over the given client
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Put stores the opportunity under the remainder of its retention window
func (r *Redis) Put(ctx context.Context, opp *types.ArbitrageOpportunity) error {
	ttl := types.OpportunityTTL
	if !opp.CreatedAt.IsZero() {
		ttl -= time.Since(opp.CreatedAt)
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, opportunityKey+opp.ID, payload, ttl)
	pipe.SAdd(ctx, indexKey, opp.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// Get returns the opportunity, or types.ErrNotFound once its key expired
func (r *Redis) Get(ctx context.Context, id string) (*types.ArbitrageOpportunity, error) {
	payload, err := r.client.Get(ctx, opportunityKey+id).Bytes()
	if err == redis.Nil {
		r.client.SRem(ctx, indexKey, id)
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load opportunity %s: %w", id, err)
	}

	var opp types.ArbitrageOpportunity
	if err := json.Unmarshal(payload, &opp); err != nil {
		return nil, fmt.Errorf("decode opportunity %s: %w", id, err)
	}
	return &opp, nil
}

// List returns one page of live opportunities matching the filter, ordered
// by descending net profit
func (r *Redis) List(ctx context.Context, filter *interfaces.OpportunityFilter) (*interfaces.OpportunityPage, error) {
	if filter == nil {
		filter = &interfaces.OpportunityFilter{}
	}

	live, err := r.liveRecords(ctx)
	if err != nil {
		return nil, err
	}

	matched := live[:0]
	for _, opp := range live {
		if matches(opp, filter) {
			matched = append(matched, opp)
		}
	}

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

// Stats summarizes the live records
func (r *Redis) Stats(ctx context.Context) (*types.ArbitrageStats, error) {
	live, err := r.liveRecords(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.ArbitrageStats{LastUpdate: time.Now()}
	total := 0.0
	for _, opp := range live {
		stats.TotalOpportunities++
		total += opp.NetProfit
	}
	if stats.TotalOpportunities > 0 {
		stats.AverageProfit = total / float64(stats.TotalOpportunities)
	}
	return stats, nil
}

// PutTopPairs replaces the tracked-pair list under the liquidity TTL
func (r *Redis) PutTopPairs(ctx context.Context, pairs []string) error {
	payload, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("marshal top pairs: %w", err)
	}
	if err := r.client.Set(ctx, topPairsKey, payload, types.LiquidityTTL).Err(); err != nil {
		return fmt.Errorf("store top pairs: %w", err)
	}
	return nil
}

// TopPairs returns up to n tracked pairs
func (r *Redis) TopPairs(ctx context.Context, n int) ([]string, error) {
	payload, err := r.client.Get(ctx, topPairsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load top pairs: %w", err)
	}

	var pairs []string
	if err := json.Unmarshal(payload, &pairs); err != nil {
		return nil, fmt.Errorf("decode top pairs: %w", err)
	}
	if n > 0 && n < len(pairs) {
		pairs = pairs[:n]
	}
	return pairs, nil
}

// liveRecords loads every indexed record still holding a key, pruning the
// index entries whose keys have expired
func (r *Redis) liveRecords(ctx context.Context) ([]*types.ArbitrageOpportunity, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load opportunity index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = opportunityKey + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}

	var dead []interface{}
	live := make([]*types.ArbitrageOpportunity, 0, len(values))
	for i, v := range values {
		payload, ok := v.(string)
		if !ok {
			dead = append(dead, ids[i])
			continue
		}
		var opp types.ArbitrageOpportunity
		if err := json.Unmarshal([]byte(payload), &opp); err != nil {
			dead = append(dead, ids[i])
			continue
		}
		live = append(live, &opp)
	}
	if len(dead) > 0 {
		r.client.SRem(ctx, indexKey, dead...)
	}
	return live, nil
}
