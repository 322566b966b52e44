package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/chains"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// Config holds per-phase time budgets and chain-leg parameters
type Config struct {
	SimulateTimeout time.Duration // dry-run budget
	LegTimeout      time.Duration // bounded join over both trade legs
	SenderAddress   string        // hot wallet for chain legs
	RouterAddress   string        // swap/bridge router contract
}

// DefaultConfig returns production execution budgets
func DefaultConfig() *Config {
	return &Config{
		SimulateTimeout: 5 * time.Second,
		LegTimeout:      2 * time.Minute,
	}
}

// Calldata selectors stamped on outgoing chain legs
var (
	swapSelector   = common.Hex2Bytes("38ed1739")
	bridgeSelector = common.Hex2Bytes("9fbf10fc")
)

// Coordinator drives approved opportunities through the execution state
// machine. It references positions but never owns them; capital moves only
// through the risk engine.
type Coordinator struct {
	config    *Config
	simulator interfaces.Simulator
	orders    interfaces.OrderClient
	relay     interfaces.RelaySubmitter
	gas       interfaces.GasPredictor
	risk      interfaces.RiskEngine
	store     interfaces.OpportunityStore
	bus       interfaces.EventBus
	metrics   interfaces.MetricsCollector
}

// New creates an execution coordinator
func New(
	config *Config,
	simulator interfaces.Simulator,
	orders interfaces.OrderClient,
	relay interfaces.RelaySubmitter,
	gas interfaces.GasPredictor,
	risk interfaces.RiskEngine,
	store interfaces.OpportunityStore,
	bus interfaces.EventBus,
	metrics interfaces.MetricsCollector,
) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Coordinator{
		config:    config,
		simulator: simulator,
		orders:    orders,
		relay:     relay,
		gas:       gas,
		risk:      risk,
		store:     store,
		bus:       bus,
		metrics:   metrics,
	}
}

// legResult is the outcome of one trade leg. committed means the leg passed
// its point of no return: a filled order or a submitted chain transaction.
type legResult struct {
	name      string
	committed bool
	orderID   string
	venue     string
	err       error
}

// Execute runs one approved opportunity to a terminal state. Reserved capital
// is released on every exit path.
func (c *Coordinator) Execute(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) (err error) {
	started := time.Now()
	outcome := types.PositionOutcome{}
	defer func() {
		c.risk.Release(opp.ID, outcome)
		if c.metrics != nil {
			c.metrics.RecordExecution(opp, err == nil, time.Since(started))
		}
	}()

	simCtx, cancel := context.WithTimeout(ctx, c.config.SimulateTimeout)
	simErr := c.simulator.Simulate(simCtx, opp, pos)
	cancel()
	if simErr != nil {
		c.fail(ctx, opp, fmt.Sprintf("simulation: %v", simErr))
		return &types.SimulationError{OpportunityID: opp.ID, Err: simErr}
	}

	if err := c.transition(ctx, opp, types.StatusSimulated, ""); err != nil {
		return err
	}
	if err := c.transition(ctx, opp, types.StatusExecuting, ""); err != nil {
		return err
	}

	source, target := c.runLegs(ctx, opp, pos)

	if source.err == nil && target.err == nil {
		outcome.RealizedProfit = opp.NetProfit
		if err := c.transition(ctx, opp, types.StatusCompleted, ""); err != nil {
			return err
		}
		c.publish(interfaces.EventExecutionCompleted, opp, "")
		log.Printf("execution: completed %s profit=%.2f in %s", opp.ID, opp.NetProfit, time.Since(started))
		return nil
	}

	failed, confirmed := failedAndConfirmed(source, target)
	exposed := c.compensate(ctx, opp, confirmed)
	if confirmed != nil && confirmed.committed && confirmed.err != nil {
		// submitted but unconfirmed still counts as real-world exposure
		exposed = true
	}
	if failed.committed {
		// the failed leg itself committed before failing; that exposure
		// cannot be compensated away
		exposed = true
	}

	outcome.PartialExposure = exposed
	outcome.Detail = failed.err.Error()
	c.fail(ctx, opp, outcome.Detail)

	if exposed {
		c.publish(interfaces.EventPartialExposure, opp, outcome.Detail)
		return &types.PartialExecutionError{
			OpportunityID: opp.ID,
			ConfirmedLeg:  confirmed.name,
			FailedLeg:     failed.name,
			Err:           failed.err,
		}
	}
	return fmt.Errorf("execute %s: %s leg: %w", opp.ID, failed.name, failed.err)
}

// runLegs dispatches both legs concurrently under one deadline. A leg failing
// before the other commits cancels the shared context so the unsent leg
// aborts instead of committing into a known-failed trade.
func (c *Coordinator) runLegs(ctx context.Context, opp *types.ArbitrageOpportunity, pos *types.Position) (legResult, legResult) {
	legCtx, cancel := context.WithTimeout(ctx, c.config.LegTimeout)
	defer cancel()

	type tagged struct {
		source bool
		legResult
	}
	results := make(chan tagged, 2)
	run := func(source bool, venue, chain, side string, price float64) {
		var r legResult
		if chain == "" {
			r = c.cexLeg(legCtx, venue, side, price, opp, pos)
		} else {
			r = c.chainLeg(legCtx, chain, opp, pos)
		}
		results <- tagged{source: source, legResult: r}
	}
	go run(true, opp.SourceVenue, opp.SourceChain, "buy", opp.BuyPrice)
	go run(false, opp.TargetVenue, opp.TargetChain, "sell", opp.SellPrice)

	first := <-results
	if first.err != nil {
		cancel()
	}
	second := <-results

	if first.source {
		return first.legResult, second.legResult
	}
	return second.legResult, first.legResult
}

func legName(venue, chain string) string {
	if chain == "" {
		return "cex:" + venue
	}
	return "chain:" + chain
}

// cexLeg places the off-chain order. Placement is the commit point; a market
// order is treated as filled once accepted.
func (c *Coordinator) cexLeg(ctx context.Context, venue, side string, price float64, opp *types.ArbitrageOpportunity, pos *types.Position) legResult {
	result := legResult{name: legName(venue, ""), venue: venue}

	amount := pos.Notional()
	if price > 0 {
		amount = pos.Notional() / price
	}
	orderID, err := c.orders.PlaceOrder(ctx, &interfaces.OrderLeg{
		Venue:  venue,
		Pair:   opp.Pair,
		Side:   side,
		Amount: amount,
		Price:  price,
	})
	if err != nil {
		result.err = fmt.Errorf("place order on %s: %w", venue, err)
		return result
	}
	result.committed = true
	result.orderID = orderID
	return result
}

// chainLeg submits the on-chain side through the private relay and waits for
// confirmation. A submitted transaction is never re-sent verbatim.
func (c *Coordinator) chainLeg(ctx context.Context, chain string, opp *types.ArbitrageOpportunity, pos *types.Position) legResult {
	result := legResult{name: legName("", chain)}

	tx, err := c.buildChainTx(chain, opp)
	if err != nil {
		result.err = err
		return result
	}

	hash, err := c.relay.SubmitPrivate(ctx, tx)
	if err != nil {
		result.err = fmt.Errorf("submit on %s: %w", chain, err)
		return result
	}
	result.committed = true

	if err := c.relay.WaitConfirmed(ctx, chain, hash); err != nil {
		result.err = fmt.Errorf("confirm %s on %s: %w", hash.Hex(), chain, err)
	}
	return result
}

// buildChainTx assembles the swap or bridge transaction for the leg
func (c *Coordinator) buildChainTx(chain string, opp *types.ArbitrageOpportunity) (*types.ChainTx, error) {
	meta, ok := chains.Get(chain)
	if !ok {
		return nil, fmt.Errorf("build tx: unknown chain %s", chain)
	}
	est, err := c.gas.Estimate(chain)
	if err != nil {
		return nil, fmt.Errorf("build tx: gas for %s: %w", chain, types.ErrStaleData)
	}

	gasLimit := meta.SwapGasUnits
	data := swapSelector
	if opp.CrossChain() {
		gasLimit = meta.BridgeGasUnits
		data = bridgeSelector
	}

	router := common.HexToAddress(c.config.RouterAddress)
	return &types.ChainTx{
		Chain:    chain,
		From:     common.HexToAddress(c.config.SenderAddress),
		To:       &router,
		Value:    big.NewInt(0),
		GasPrice: new(big.Int).SetInt64(int64(est.PriceGwei * 1e9)),
		GasLimit: gasLimit,
		Data:     data,
		ChainID:  big.NewInt(meta.ChainID),
	}, nil
}

// compensate tries to unwind a confirmed cancelable leg after the other side
// failed. Returns true when real-world exposure remains.
func (c *Coordinator) compensate(ctx context.Context, opp *types.ArbitrageOpportunity, confirmed *legResult) bool {
	if confirmed == nil || !confirmed.committed {
		return false
	}
	if confirmed.orderID == "" {
		// a chain transaction cannot be recalled
		return true
	}
	if err := c.orders.CancelOrder(ctx, confirmed.venue, confirmed.orderID); err != nil {
		log.Printf("execution: cancel order %s on %s: %v", confirmed.orderID, confirmed.venue, err)
		return true
	}
	log.Printf("execution: cancelled order %s on %s after opposite leg failed", confirmed.orderID, confirmed.venue)
	return false
}

// failedAndConfirmed splits the leg results after a failure. confirmed is nil
// when both legs failed before committing.
func failedAndConfirmed(source, target legResult) (failed legResult, confirmed *legResult) {
	if source.err != nil && target.err != nil {
		if target.committed && !source.committed {
			return source, &target
		}
		if source.committed && !target.committed {
			return target, &source
		}
		if source.committed && target.committed {
			// both legs are live on the wire; surface one as the
			// confirmed side so exposure handling sees it
			return source, &target
		}
		return source, nil
	}
	if source.err != nil {
		return source, &target
	}
	return target, &source
}

// transition validates, persists and announces one status change
func (c *Coordinator) transition(ctx context.Context, opp *types.ArbitrageOpportunity, next types.OpportunityStatus, reason string) error {
	if !opp.Status.CanTransitionTo(next) {
		return fmt.Errorf("opportunity %s: %s -> %s: %w", opp.ID, opp.Status, next, types.ErrInvalidTransition)
	}
	opp.Status = next
	opp.StatusUpdated = time.Now()
	opp.FailureReason = reason

	if err := c.store.Put(ctx, opp); err != nil {
		log.Printf("execution: persist %s status %s: %v", opp.ID, next, err)
	}
	c.publish(interfaces.EventStatusChanged, opp, reason)
	return nil
}

func (c *Coordinator) fail(ctx context.Context, opp *types.ArbitrageOpportunity, reason string) {
	if err := c.transition(ctx, opp, types.StatusFailed, reason); err != nil {
		if !errors.Is(err, types.ErrInvalidTransition) {
			log.Printf("execution: fail %s: %v", opp.ID, err)
		}
		return
	}
	c.publish(interfaces.EventExecutionFailed, opp, reason)
}

func (c *Coordinator) publish(eventType interfaces.EventType, opp *types.ArbitrageOpportunity, reason string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(interfaces.Event{
		Type:        eventType,
		Timestamp:   time.Now(),
		Opportunity: opp,
		Reason:      reason,
	})
}
