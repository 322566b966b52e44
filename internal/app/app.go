package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/internal/api"
	"github.com/arb-engine/cross-venue-arbitrage-engine/internal/config"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/bridge"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/detector"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/events"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/execution"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/gas"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/liquidity"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/metrics"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/pricefeed"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/processing"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/risk"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/store"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Application wires the detection pipeline: gas sampling and liquidity
// ranking feed the detector, approved opportunities flow through the risk
// engine into the execution coordinator, and the API server exposes the
// results.
type Application struct {
	config *config.Config

	bus         *events.Bus
	collector   *metrics.Collector
	predictor   *gas.Predictor
	sampler     *gas.Sampler
	refresher   *liquidity.Refresher
	ranker      *liquidity.Ranker
	aggregator  *pricefeed.Aggregator
	detector    *detector.Detector
	riskEngine  *risk.Engine
	coordinator *execution.Coordinator
	relay       interfaces.RelaySubmitter
	opps        interfaces.OpportunityStore
	server      *api.Server
	pool        *processing.Pool

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewApplication builds the full pipeline from configuration
func NewApplication(cfg *config.Config) (*Application, error) {
	bus := events.NewBus()
	collector := metrics.NewCollector()

	opps, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	predictor := gas.NewPredictor(&gas.PredictorConfig{
		Alpha:             cfg.Gas.Alpha,
		WindowSize:        cfg.Gas.WindowSize,
		ExpectedCadence:   cfg.Gas.ExpectedCadence,
		VolatilityRatio:   cfg.Gas.VolatilityRatio,
		SpikeRatio:        cfg.Gas.SpikeRatio,
		SpikeWeightFactor: cfg.Gas.SpikeWeightFactor,
		MaxPriceGwei:      cfg.Gas.MaxPriceGwei,
		TrendEpsilon:      cfg.Gas.TrendEpsilon,
		StaleAfter:        cfg.Gas.StaleAfter,
	})
	sampler := gas.NewSampler(predictor, defaultGasSources(), cfg.Gas.ExpectedCadence, bus, collector)

	registry := pricefeed.NewRegistry()
	for _, connector := range defaultVenues() {
		limited := pricefeed.NewRateLimited(connector, cfg.Venues.RateLimit, cfg.Venues.RateBurst)
		if err := registry.Register(limited); err != nil {
			return nil, fmt.Errorf("register venue: %w", err)
		}
	}

	aggregator := pricefeed.NewAggregator(&pricefeed.AggregatorConfig{
		FetchTimeout: cfg.Venues.FetchTimeout,
		HistorySize:  cfg.Risk.VolatilityWindow * 2,
	}, registry)

	ranker := liquidity.NewRanker(&liquidity.RankerConfig{
		TVLWeight:    cfg.Liquidity.TVLWeight,
		VolumeWeight: cfg.Liquidity.VolumeWeight,
	})
	refresher := liquidity.NewRefresher(&liquidity.RefresherConfig{
		Interval:    cfg.Liquidity.RefreshInterval,
		Timeout:     cfg.Venues.FetchTimeout,
		BackoffBase: time.Second,
		BackoffMax:  60 * time.Second,
		MaxPairs:    cfg.Liquidity.MaxPairs,
	}, registry, ranker, opps, bus, cfg.Venues.Pairs)

	router := bridge.NewRouter(&bridge.RouterConfig{
		MinSecurityScore: cfg.Bridge.MinSecurityScore,
		MinDailyVolume:   cfg.Bridge.MinDailyVolume,
		MaxTransferRatio: cfg.Bridge.MaxTransferRatio,
	}, nil)

	riskEngine := risk.New(&risk.Config{
		MaxExposure:            cfg.Risk.MaxExposure,
		BaseLeverage:           cfg.Risk.BaseLeverage,
		MaxLeverage:            cfg.Risk.MaxLeverage,
		VolatilityWindow:       cfg.Risk.VolatilityWindow,
		VolatilityThreshold:    cfg.Risk.VolatilityThreshold,
		HighGasGwei:            cfg.Risk.HighGasGwei,
		MinGasConfidence:       cfg.Risk.MinGasConfidence,
		MaintenanceMarginRatio: cfg.Risk.MaintenanceMarginRatio,
	}, predictor, aggregator, collector)

	det := detector.New(&detector.Config{
		MinSpreadPercent:   cfg.Detector.MinSpreadPercent,
		CoverageRatio:      cfg.Detector.CoverageRatio,
		MaxTradeAmount:     cfg.Detector.MaxTradeAmount,
		CEXFeeBps:          cfg.Detector.CEXFeeBps,
		DEXFeeBps:          cfg.Detector.DEXFeeBps,
		DefaultSlippageBps: cfg.Detector.DefaultSlippageBps,
		SlippageImpactCap:  cfg.Detector.SlippageImpactCap,
		GasPriceMultiplier: cfg.Detector.GasPriceMultiplier,
		GasPriceCapGwei:    cfg.Detector.GasPriceCapGwei,
		CrossChainEnabled:  cfg.Detector.CrossChainEnabled,
		CrossDEXEnabled:    cfg.Detector.CrossDEXEnabled,
	}, aggregator, predictor, ranker, router, opps, bus, collector)

	relay := newRelay(cfg)
	coordinator := execution.New(&execution.Config{
		SimulateTimeout: cfg.Execution.SimulateTimeout,
		LegTimeout:      cfg.Execution.LegTimeout,
		SenderAddress:   cfg.Execution.SenderAddress,
		RouterAddress:   cfg.Execution.RouterAddress,
	},
		execution.NewDryRun(aggregator, ranker),
		execution.NewPaperOrderClient(cfg.Execution.OrderFillWindow),
		relay, predictor, riskEngine, opps, bus, collector)

	server := api.NewServer(cfg, opps, riskEngine, bus)
	pool := processing.NewPool(nil)

	return &Application{
		config:      cfg,
		bus:         bus,
		collector:   collector,
		predictor:   predictor,
		sampler:     sampler,
		refresher:   refresher,
		ranker:      ranker,
		aggregator:  aggregator,
		detector:    det,
		riskEngine:  riskEngine,
		coordinator: coordinator,
		relay:       relay,
		opps:        opps,
		server:      server,
		pool:        pool,
		done:        make(chan struct{}),
	}, nil
}

// Start launches the samplers, the API server and the detection loop
func (a *Application) Start(ctx context.Context) error {
	log.Printf("app: starting arbitrage engine on %s:%d", a.config.Server.Host, a.config.Server.Port)

	runCtx, cancel := context.WithCancel(context.Background())
	a.runCtx = runCtx
	a.cancel = cancel

	a.sampler.Start(runCtx)
	a.refresher.Start(runCtx)

	if err := a.pool.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("worker pool: %w", err)
	}
	if err := a.server.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("api server: %w", err)
	}

	go a.detectionLoop(runCtx)

	log.Println("app: arbitrage engine started")
	return nil
}

// Stop shuts the pipeline down. In-flight executions run to their terminal
// state before the loop exits.
func (a *Application) Stop(ctx context.Context) error {
	log.Println("app: stopping arbitrage engine")

	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	case <-ctx.Done():
	}

	if err := a.pool.Stop(ctx); err != nil {
		log.Printf("app: worker pool shutdown: %v", err)
	}
	if err := a.server.Stop(ctx); err != nil {
		log.Printf("app: api shutdown: %v", err)
	}
	if closer, ok := a.relay.(interface{ Close() }); ok {
		closer.Close()
	}
	a.bus.Close()

	log.Println("app: arbitrage engine stopped")
	return nil
}

// detectionLoop runs one detection cycle per cadence tick over the tracked
// pair universe
func (a *Application) detectionLoop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.config.Detector.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runCycle(ctx)
		}
	}
}

// runCycle schedules one scan per tracked pair on the worker pool
func (a *Application) runCycle(ctx context.Context) {
	pairs := a.ranker.TopPairs(a.config.Liquidity.MaxPairs)
	if len(pairs) == 0 {
		pairs = a.config.Venues.Pairs
	}

	for _, pair := range pairs {
		if err := a.pool.Submit(&pairScanJob{app: a, pair: pair}); err != nil {
			log.Printf("app: scan %s not scheduled: %v", pair, err)
		}
	}
}

// pairScanJob evaluates one pair for the current detection cycle
type pairScanJob struct {
	app  *Application
	pair string
}

func (j *pairScanJob) ID() string             { return "scan-" + j.pair }
func (j *pairScanJob) Timeout() time.Duration { return 0 }

func (j *pairScanJob) Execute(ctx context.Context) error {
	opp, err := j.app.detector.Detect(ctx, j.pair)
	if err != nil {
		if !errors.Is(err, types.ErrDuplicateOpportunity) && !errors.Is(err, types.ErrStaleData) {
			log.Printf("app: detect %s: %v", j.pair, err)
		}
		return err
	}
	if opp == nil {
		return nil
	}
	j.app.dispatch(ctx, opp)
	return nil
}

// dispatch sizes an opportunity through the risk engine and hands approved
// ones to the execution coordinator
func (a *Application) dispatch(ctx context.Context, opp *types.ArbitrageOpportunity) {
	pos, err := a.riskEngine.Evaluate(ctx, opp)
	if err != nil {
		log.Printf("app: risk rejected %s (%s): %v", opp.ID, opp.Pair, err)
		opp.Status = types.StatusFailed
		opp.StatusUpdated = time.Now()
		opp.FailureReason = err.Error()
		a.riskEngine.Reject(opp.ID, err.Error())
		if putErr := a.opps.Put(ctx, opp); putErr != nil {
			log.Printf("app: persist rejection %s: %v", opp.ID, putErr)
		}
		a.bus.Publish(interfaces.Event{
			Type:        interfaces.EventOpportunityRejected,
			Timestamp:   time.Now(),
			Opportunity: opp,
			Reason:      err.Error(),
		})
		a.detector.Settle(opp)
		return
	}

	// Executions outlive the scan job's timeout; they run under the
	// application context so legs are only cut on shutdown.
	go func() {
		if err := a.coordinator.Execute(a.runCtx, opp, pos); err != nil {
			log.Printf("app: execution %s: %v", opp.ID, err)
		}
		a.detector.Settle(opp)
	}()
}

// newStore selects the opportunity store backend
func newStore(cfg *config.Config) (interfaces.OpportunityStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return store.NewRedis(redis.NewClient(opts)), nil
	default:
		return store.NewMemory(), nil
	}
}

// newRelay returns the configured private relay, or the simulated relay for
// paper trading when no endpoints are set
func newRelay(cfg *config.Config) interfaces.RelaySubmitter {
	if len(cfg.Execution.RelayEndpoints) > 0 {
		return execution.NewRelay(&execution.RelayConfig{
			Endpoints:    cfg.Execution.RelayEndpoints,
			PollInterval: 2 * time.Second,
		})
	}
	return execution.NewSimulatedRelay(200 * time.Millisecond)
}

// defaultGasSources returns simulated samplers for each supported chain
func defaultGasSources() []gas.Source {
	return []gas.Source{
		gas.NewSimulatedSource("rpc-primary", "ethereum", 30),
		gas.NewSimulatedSource("rpc-backup", "ethereum", 32),
		gas.NewSimulatedSource("rpc-primary", "arbitrum", 0.1),
		gas.NewSimulatedSource("rpc-primary", "optimism", 0.05),
		gas.NewSimulatedSource("rpc-primary", "base", 0.05),
	}
}

// defaultVenues returns the paper-trading venue set
func defaultVenues() []interfaces.VenueConnector {
	seed := map[string]float64{
		"WETH/USDC": 3000,
		"WBTC/USDC": 60000,
		"ARB/USDC":  1.1,
	}
	return []interfaces.VenueConnector{
		pricefeed.NewSimulatedConnector("binance", types.VenueCEX, "", seed),
		pricefeed.NewSimulatedConnector("coinbase", types.VenueCEX, "", seed),
		pricefeed.NewSimulatedConnector("uniswap_v3", types.VenueDEX, "ethereum", seed),
		pricefeed.NewSimulatedConnector("camelot", types.VenueDEX, "arbitrum", seed),
	}
}

// Module provides the fx module for dependency injection
var Module = fx.Options(
	fx.Provide(
		NewApplication,
	),
)
