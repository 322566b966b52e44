package liquidity

import (
	"sort"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// RankerConfig holds composite-score weights for the liquidity ranker
type RankerConfig struct {
	TVLWeight    float64
	VolumeWeight float64
}

// DefaultRankerConfig returns equal TVL/volume weighting
func DefaultRankerConfig() *RankerConfig {
	return &RankerConfig{TVLWeight: 0.5, VolumeWeight: 0.5}
}

// Ranker aggregates TVL and 24h volume per (pair, venue) and produces the
// ranked tracked-pairs list. Records older than the liquidity TTL are
// excluded at read time so staleness never leaks to callers.
type Ranker struct {
	config *RankerConfig

	mu      sync.RWMutex
	records map[string]map[string]*types.LiquidityRecord // pair -> venue

	now func() time.Time
}

// NewRanker creates a liquidity ranker
func NewRanker(config *RankerConfig) *Ranker {
	if config == nil {
		config = DefaultRankerConfig()
	}
	return &Ranker{
		config:  config,
		records: make(map[string]map[string]*types.LiquidityRecord),
		now:     time.Now,
	}
}

// Refresh upserts one (pair, venue) liquidity record
func (r *Ranker) Refresh(pair, venue string, tvl, volume float64) {
	if pair == "" || venue == "" || tvl < 0 || volume < 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byVenue, ok := r.records[pair]
	if !ok {
		byVenue = make(map[string]*types.LiquidityRecord)
		r.records[pair] = byVenue
	}

	byVenue[venue] = &types.LiquidityRecord{
		Pair:        pair,
		Venue:       venue,
		TVL:         tvl,
		Volume24h:   volume,
		RefreshedAt: r.now(),
	}
}

// TopPairs returns up to n pairs ordered by descending composite score.
// A pair's score is taken from its best-scoring live venue record.
func (r *Ranker) TopPairs(n int) []string {
	if n <= 0 {
		return nil
	}

	scored := r.liveRecords()
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Pair < scored[j].Pair
	})

	seen := make(map[string]struct{})
	pairs := make([]string, 0, n)
	for _, rec := range scored {
		if _, dup := seen[rec.Pair]; dup {
			continue
		}
		seen[rec.Pair] = struct{}{}
		pairs = append(pairs, rec.Pair)
		if len(pairs) == n {
			break
		}
	}
	return pairs
}

// Record returns the freshest unexpired record for the pair across venues
func (r *Ranker) Record(pair string) (*types.LiquidityRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var best *types.LiquidityRecord
	for _, rec := range r.records[pair] {
		if rec.Expired(now) {
			continue
		}
		if best == nil || rec.RefreshedAt.After(best.RefreshedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, false
	}
	snapshot := *best
	return &snapshot, true
}

// liveRecords returns score-annotated copies of all unexpired records.
// Normalization is max-scaling over the live set.
func (r *Ranker) liveRecords() []*types.LiquidityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var live []*types.LiquidityRecord
	var maxTVL, maxVolume float64

	for _, byVenue := range r.records {
		for _, rec := range byVenue {
			if rec.Expired(now) {
				continue
			}
			if rec.TVL > maxTVL {
				maxTVL = rec.TVL
			}
			if rec.Volume24h > maxVolume {
				maxVolume = rec.Volume24h
			}
			snapshot := *rec
			live = append(live, &snapshot)
		}
	}

	for _, rec := range live {
		var normTVL, normVolume float64
		if maxTVL > 0 {
			normTVL = rec.TVL / maxTVL
		}
		if maxVolume > 0 {
			normVolume = rec.Volume24h / maxVolume
		}
		rec.Score = r.config.TVLWeight*normTVL + r.config.VolumeWeight*normVolume
	}
	return live
}
