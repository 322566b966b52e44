package liquidity

import (
	"testing"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopPairsOrdering(t *testing.T) {
	r := NewRanker(nil)

	r.Refresh("WETH/USDC", "uniswap_v3", 1000000, 500000)
	r.Refresh("WBTC/USDT", "uniswap_v3", 500000, 250000)
	r.Refresh("PEPE/WETH", "uniswap_v3", 10000, 900000)

	pairs := r.TopPairs(3)
	require.Len(t, pairs, 3)
	assert.Equal(t, "WETH/USDC", pairs[0])
}

func TestTopPairsCapped(t *testing.T) {
	r := NewRanker(nil)

	r.Refresh("A/B", "dex1", 100, 100)
	r.Refresh("C/D", "dex1", 200, 200)
	r.Refresh("E/F", "dex1", 300, 300)

	assert.Len(t, r.TopPairs(2), 2)
	assert.Empty(t, r.TopPairs(0))
}

func TestTopPairsDeduplicatesVenues(t *testing.T) {
	r := NewRanker(nil)

	r.Refresh("WETH/USDC", "uniswap_v3", 1000000, 500000)
	r.Refresh("WETH/USDC", "curve", 800000, 300000)
	r.Refresh("WBTC/USDT", "uniswap_v3", 100, 100)

	pairs := r.TopPairs(10)
	assert.Equal(t, []string{"WETH/USDC", "WBTC/USDT"}, pairs)
}

func TestStaleRecordsExcluded(t *testing.T) {
	r := NewRanker(nil)

	now := time.Now()
	r.now = func() time.Time { return now }
	r.Refresh("WETH/USDC", "uniswap_v3", 1000000, 500000)

	// just inside the TTL the record is live
	r.now = func() time.Time { return now.Add(types.LiquidityTTL - time.Second) }
	assert.Equal(t, []string{"WETH/USDC"}, r.TopPairs(10))
	_, ok := r.Record("WETH/USDC")
	assert.True(t, ok)

	// just past the TTL it must not be returned
	r.now = func() time.Time { return now.Add(types.LiquidityTTL + time.Second) }
	assert.Empty(t, r.TopPairs(10))
	_, ok = r.Record("WETH/USDC")
	assert.False(t, ok)
}

func TestRecordPrefersFreshest(t *testing.T) {
	r := NewRanker(nil)

	base := time.Now()
	r.now = func() time.Time { return base }
	r.Refresh("WETH/USDC", "curve", 100, 100)

	r.now = func() time.Time { return base.Add(time.Minute) }
	r.Refresh("WETH/USDC", "uniswap_v3", 900, 900)

	rec, ok := r.Record("WETH/USDC")
	require.True(t, ok)
	assert.Equal(t, "uniswap_v3", rec.Venue)
}

func TestRefreshIgnoresInvalidInput(t *testing.T) {
	r := NewRanker(nil)

	r.Refresh("", "dex", 100, 100)
	r.Refresh("A/B", "", 100, 100)
	r.Refresh("A/B", "dex", -1, 100)
	r.Refresh("A/B", "dex", 100, -1)

	assert.Empty(t, r.TopPairs(10))
}

func TestCompositeScoreWeights(t *testing.T) {
	// all weight on volume: the volume leader must rank first even with
	// far less TVL
	r := NewRanker(&RankerConfig{TVLWeight: 0, VolumeWeight: 1})

	r.Refresh("BIG-TVL/X", "dex", 1000000, 10)
	r.Refresh("BIG-VOL/X", "dex", 10, 1000000)

	pairs := r.TopPairs(2)
	require.Len(t, pairs, 2)
	assert.Equal(t, "BIG-VOL/X", pairs[0])
}
