package config

import (
	"fmt"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/spf13/viper"
)

// Config holds all configuration for the arbitrage engine
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Gas       GasConfig       `mapstructure:"gas"`
	Liquidity LiquidityConfig `mapstructure:"liquidity"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Store     StoreConfig     `mapstructure:"store"`
}

// ServerConfig contains API server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// VenuesConfig contains venue connector configuration
type VenuesConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per venue
	RateBurst    int           `mapstructure:"rate_burst"`
	Pairs        []string      `mapstructure:"pairs"` // seed universe before liquidity ranking
}

// GasConfig contains gas predictor configuration
type GasConfig struct {
	Alpha             float64       `mapstructure:"alpha"`
	WindowSize        int           `mapstructure:"window_size"`
	ExpectedCadence   time.Duration `mapstructure:"expected_cadence"`
	VolatilityRatio   float64       `mapstructure:"volatility_ratio"`
	SpikeRatio        float64       `mapstructure:"spike_ratio"`
	SpikeWeightFactor float64       `mapstructure:"spike_weight_factor"`
	MaxPriceGwei      float64       `mapstructure:"max_price_gwei"`
	TrendEpsilon      float64       `mapstructure:"trend_epsilon"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
}

// LiquidityConfig contains liquidity ranker configuration
type LiquidityConfig struct {
	TVLWeight       float64       `mapstructure:"tvl_weight"`
	VolumeWeight    float64       `mapstructure:"volume_weight"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	MaxPairs        int           `mapstructure:"max_pairs"`
}

// DetectorConfig contains opportunity detector configuration
type DetectorConfig struct {
	Cadence            time.Duration `mapstructure:"cadence"`
	MinSpreadPercent   float64       `mapstructure:"min_spread_percent"`
	CoverageRatio      float64       `mapstructure:"coverage_ratio"`
	MaxTradeAmount     float64       `mapstructure:"max_trade_amount"`
	CEXFeeBps          float64       `mapstructure:"cex_fee_bps"`
	DEXFeeBps          float64       `mapstructure:"dex_fee_bps"`
	DefaultSlippageBps float64       `mapstructure:"default_slippage_bps"`
	SlippageImpactCap  float64       `mapstructure:"slippage_impact_cap"`
	GasPriceMultiplier float64       `mapstructure:"gas_price_multiplier"`
	GasPriceCapGwei    float64       `mapstructure:"gas_price_cap_gwei"`
	CrossChainEnabled  bool          `mapstructure:"cross_chain_enabled"`
	CrossDEXEnabled    bool          `mapstructure:"cross_dex_enabled"`
}

// RiskConfig contains risk engine configuration
type RiskConfig struct {
	MaxExposure            float64 `mapstructure:"max_exposure"`
	BaseLeverage           float64 `mapstructure:"base_leverage"`
	MaxLeverage            float64 `mapstructure:"max_leverage"`
	VolatilityWindow       int     `mapstructure:"volatility_window"`
	VolatilityThreshold    float64 `mapstructure:"volatility_threshold"`
	HighGasGwei            float64 `mapstructure:"high_gas_gwei"`
	MinGasConfidence       float64 `mapstructure:"min_gas_confidence"`
	MaintenanceMarginRatio float64 `mapstructure:"maintenance_margin_ratio"`
}

// ExecutionConfig contains execution coordinator configuration
type ExecutionConfig struct {
	SimulateTimeout time.Duration     `mapstructure:"simulate_timeout"`
	LegTimeout      time.Duration     `mapstructure:"leg_timeout"`
	SenderAddress   string            `mapstructure:"sender_address"`
	RouterAddress   string            `mapstructure:"router_address"`
	RelayEndpoints  map[string]string `mapstructure:"relay_endpoints"`
	OrderFillWindow time.Duration     `mapstructure:"order_fill_window"`
}

// BridgeConfig contains cross-chain router configuration
type BridgeConfig struct {
	MinSecurityScore float64 `mapstructure:"min_security_score"`
	MinDailyVolume   float64 `mapstructure:"min_daily_volume"`
	MaxTransferRatio float64 `mapstructure:"max_transfer_ratio"`
}

// StoreConfig contains opportunity store configuration
type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the engine cannot run safely with
func (c *Config) Validate() error {
	if c.Detector.MinSpreadPercent <= 0 {
		return &types.ConfigurationError{Field: "detector.min_spread_percent", Reason: "must be positive"}
	}
	if c.Detector.CoverageRatio <= 0 {
		return &types.ConfigurationError{Field: "detector.coverage_ratio", Reason: "must be positive"}
	}
	if c.Detector.MaxTradeAmount <= 0 {
		return &types.ConfigurationError{Field: "detector.max_trade_amount", Reason: "must be positive"}
	}
	if c.Risk.MaxExposure <= 0 {
		return &types.ConfigurationError{Field: "risk.max_exposure", Reason: "must be positive"}
	}
	if c.Risk.BaseLeverage < 1 || c.Risk.BaseLeverage > c.Risk.MaxLeverage {
		return &types.ConfigurationError{Field: "risk.base_leverage",
			Reason: fmt.Sprintf("must be within [1, %.0f]", c.Risk.MaxLeverage)}
	}
	if c.Risk.MinGasConfidence < 0 || c.Risk.MinGasConfidence > 1 {
		return &types.ConfigurationError{Field: "risk.min_gas_confidence", Reason: "must be within [0, 1]"}
	}
	if c.Gas.Alpha <= 0 || c.Gas.Alpha >= 1 {
		return &types.ConfigurationError{Field: "gas.alpha", Reason: "must be within (0, 1)"}
	}
	if c.Liquidity.TVLWeight+c.Liquidity.VolumeWeight <= 0 {
		return &types.ConfigurationError{Field: "liquidity.tvl_weight", Reason: "weights must not sum to zero"}
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		return &types.ConfigurationError{Field: "store.backend", Reason: "must be memory or redis"}
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return &types.ConfigurationError{Field: "store.redis_url", Reason: "required for the redis backend"}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Venue defaults
	viper.SetDefault("venues.fetch_timeout", "1500ms")
	viper.SetDefault("venues.rate_limit", 5.0)
	viper.SetDefault("venues.rate_burst", 10)
	viper.SetDefault("venues.pairs", []string{"WETH/USDC", "WBTC/USDC", "ARB/USDC"})

	// Gas predictor defaults
	viper.SetDefault("gas.alpha", 0.3)
	viper.SetDefault("gas.window_size", 32)
	viper.SetDefault("gas.expected_cadence", "30s")
	viper.SetDefault("gas.volatility_ratio", 0.30)
	viper.SetDefault("gas.spike_ratio", 0.50)
	viper.SetDefault("gas.spike_weight_factor", 0.25)
	viper.SetDefault("gas.max_price_gwei", 100000)
	viper.SetDefault("gas.trend_epsilon", 0.01)
	viper.SetDefault("gas.stale_after", "90s")

	// Liquidity defaults
	viper.SetDefault("liquidity.tvl_weight", 0.5)
	viper.SetDefault("liquidity.volume_weight", 0.5)
	viper.SetDefault("liquidity.refresh_interval", "5m")
	viper.SetDefault("liquidity.max_pairs", 30)

	// Detector defaults
	viper.SetDefault("detector.cadence", "10s")
	viper.SetDefault("detector.min_spread_percent", 0.5)
	viper.SetDefault("detector.coverage_ratio", 1.2)
	viper.SetDefault("detector.max_trade_amount", 10000)
	viper.SetDefault("detector.cex_fee_bps", 10)
	viper.SetDefault("detector.dex_fee_bps", 30)
	viper.SetDefault("detector.default_slippage_bps", 5)
	viper.SetDefault("detector.slippage_impact_cap", 0.05)
	viper.SetDefault("detector.gas_price_multiplier", 1.1)
	viper.SetDefault("detector.gas_price_cap_gwei", 500)
	viper.SetDefault("detector.cross_chain_enabled", true)
	viper.SetDefault("detector.cross_dex_enabled", true)

	// Risk defaults
	viper.SetDefault("risk.max_exposure", 50000)
	viper.SetDefault("risk.base_leverage", 3)
	viper.SetDefault("risk.max_leverage", 3)
	viper.SetDefault("risk.volatility_window", 20)
	viper.SetDefault("risk.volatility_threshold", 0.02)
	viper.SetDefault("risk.high_gas_gwei", 100)
	viper.SetDefault("risk.min_gas_confidence", 0.5)
	viper.SetDefault("risk.maintenance_margin_ratio", 0.075)

	// Execution defaults
	viper.SetDefault("execution.simulate_timeout", "5s")
	viper.SetDefault("execution.leg_timeout", "2m")
	viper.SetDefault("execution.order_fill_window", "500ms")

	// Bridge defaults
	viper.SetDefault("bridge.min_security_score", 0.7)
	viper.SetDefault("bridge.min_daily_volume", 1000000)
	viper.SetDefault("bridge.max_transfer_ratio", 0.01)

	// Store defaults
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.redis_url", "redis://localhost:6379")
}
