package config

import (
	"testing"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsConfig(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	setDefaults()

	var cfg Config
	require.NoError(t, viper.Unmarshal(&cfg))
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultsConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultValues(t *testing.T) {
	cfg := defaultsConfig(t)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Detector.MinSpreadPercent, 1e-9)
	assert.InDelta(t, 1.2, cfg.Detector.CoverageRatio, 1e-9)
	assert.InDelta(t, 0.3, cfg.Gas.Alpha, 1e-9)
	assert.InDelta(t, 50000, cfg.Risk.MaxExposure, 1e-9)
	assert.InDelta(t, 3, cfg.Risk.MaxLeverage, 1e-9)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Detector.CrossChainEnabled)
	assert.Contains(t, cfg.Venues.Pairs, "WETH/USDC")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero spread", func(c *Config) { c.Detector.MinSpreadPercent = 0 }, "detector.min_spread_percent"},
		{"negative coverage", func(c *Config) { c.Detector.CoverageRatio = -1 }, "detector.coverage_ratio"},
		{"zero trade amount", func(c *Config) { c.Detector.MaxTradeAmount = 0 }, "detector.max_trade_amount"},
		{"zero exposure", func(c *Config) { c.Risk.MaxExposure = 0 }, "risk.max_exposure"},
		{"leverage below one", func(c *Config) { c.Risk.BaseLeverage = 0.5 }, "risk.base_leverage"},
		{"leverage above max", func(c *Config) { c.Risk.BaseLeverage = 5 }, "risk.base_leverage"},
		{"confidence above one", func(c *Config) { c.Risk.MinGasConfidence = 1.5 }, "risk.min_gas_confidence"},
		{"alpha out of range", func(c *Config) { c.Gas.Alpha = 1 }, "gas.alpha"},
		{"zero weights", func(c *Config) {
			c.Liquidity.TVLWeight = 0
			c.Liquidity.VolumeWeight = 0
		}, "liquidity.tvl_weight"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"redis without url", func(c *Config) {
			c.Store.Backend = "redis"
			c.Store.RedisURL = ""
		}, "store.redis_url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultsConfig(t)
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var confErr *types.ConfigurationError
			require.ErrorAs(t, err, &confErr)
			assert.Equal(t, tc.field, confErr.Field)
		})
	}
}

func TestEnvironmentOverride(t *testing.T) {
	viper.Reset()
	setDefaults()
	t.Setenv("DETECTOR.MIN_SPREAD_PERCENT", "0.9")
	viper.AutomaticEnv()

	assert.InDelta(t, 0.9, viper.GetFloat64("detector.min_spread_percent"), 1e-9)
}
