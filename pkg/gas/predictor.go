package gas

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
)

// PredictorConfig holds tuning parameters for the gas predictor
type PredictorConfig struct {
	Alpha             float64       // EMA smoothing factor
	WindowSize        int           // rolling window for stdev
	ExpectedCadence   time.Duration // max age before a source is down-weighted to zero
	VolatilityRatio   float64       // stdev/mean threshold for the volatility flag
	SpikeRatio        float64       // relative jump threshold for the spike flag
	SpikeWeightFactor float64       // weight multiplier applied to a spiking source
	MaxPriceGwei      float64       // samples above this are discarded
	TrendEpsilon      float64       // relative change below this is "stable"
	StaleAfter        time.Duration // estimate age beyond which Estimate refuses to serve
}

// DefaultPredictorConfig returns default predictor tuning
func DefaultPredictorConfig() *PredictorConfig {
	return &PredictorConfig{
		Alpha:             0.3,
		WindowSize:        32,
		ExpectedCadence:   30 * time.Second,
		VolatilityRatio:   0.30,
		SpikeRatio:        0.50,
		SpikeWeightFactor: 0.25,
		MaxPriceGwei:      100000,
		TrendEpsilon:      0.01,
		StaleAfter:        90 * time.Second,
	}
}

// sourceState tracks one (source, chain) sample stream
type sourceState struct {
	ema        float64
	window     []float64
	lastUpdate time.Time
	spiking    bool // reduced weight for the current cycle only
	seeded     bool
}

// variance returns the sample variance over the rolling window
func (s *sourceState) variance() float64 {
	if len(s.window) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range s.window {
		mean += v
	}
	mean /= float64(len(s.window))

	sum := 0.0
	for _, v := range s.window {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(s.window))
}

// Predictor combines per-source EMAs into chain-level gas estimates.
// Readers always see a complete snapshot; Submit replaces the estimate
// wholesale under the write lock.
type Predictor struct {
	config *PredictorConfig

	mu        sync.RWMutex
	sources   map[string]map[string]*sourceState // chain -> source
	window    map[string][]float64               // chain-level raw samples
	estimates map[string]*types.GasEstimate
}

// NewPredictor creates a gas predictor with the given configuration
func NewPredictor(config *PredictorConfig) *Predictor {
	if config == nil {
		config = DefaultPredictorConfig()
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 3 * config.ExpectedCadence
	}
	return &Predictor{
		config:    config,
		sources:   make(map[string]map[string]*sourceState),
		window:    make(map[string][]float64),
		estimates: make(map[string]*types.GasEstimate),
	}
}

// Submit ingests one gas-price sample. Out-of-range prices are discarded
// without error; the call never blocks on I/O.
func (p *Predictor) Submit(source, chain string, priceGwei float64, timestamp time.Time) {
	if source == "" || chain == "" {
		return
	}
	if priceGwei <= 0 || priceGwei > p.config.MaxPriceGwei || math.IsNaN(priceGwei) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	byChain, ok := p.sources[chain]
	if !ok {
		byChain = make(map[string]*sourceState)
		p.sources[chain] = byChain
	}

	state, ok := byChain[source]
	if !ok {
		state = &sourceState{}
		byChain[source] = state
	}

	if !state.seeded {
		state.ema = priceGwei
		state.seeded = true
	} else {
		// per-source spike check against the source's own smoothed level
		state.spiking = state.ema > 0 &&
			math.Abs(priceGwei-state.ema)/state.ema > p.config.SpikeRatio
		state.ema = p.config.Alpha*priceGwei + (1-p.config.Alpha)*state.ema
	}

	state.window = append(state.window, priceGwei)
	if len(state.window) > p.config.WindowSize {
		state.window = state.window[1:]
	}
	state.lastUpdate = timestamp

	// raw samples feed the chain-level volatility window; they are retained
	// only as long as the window needs them
	window := append(p.window[chain], priceGwei)
	if len(window) > p.config.WindowSize {
		window = window[1:]
	}
	p.window[chain] = window

	p.recompute(chain, timestamp)
}

// Estimate returns the latest snapshot for a chain. A snapshot that has not
// been refreshed within the staleness bound is refused rather than served,
// so quiet sources cannot feed old gas prices into sizing decisions.
func (p *Predictor) Estimate(chain string) (*types.GasEstimate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	est, ok := p.estimates[chain]
	if !ok {
		return nil, fmt.Errorf("gas estimate for %s: %w", chain, types.ErrNoData)
	}
	if age := time.Since(est.UpdatedAt); age > p.config.StaleAfter {
		return nil, fmt.Errorf("gas estimate for %s is %s old: %w", chain, age.Round(time.Second), types.ErrStaleData)
	}
	snapshot := *est
	return &snapshot, nil
}

// recompute rebuilds the chain-level estimate. Caller holds the write lock.
// Staleness is measured against the newest sample for the chain, which keeps
// the combination deterministic under replay.
func (p *Predictor) recompute(chain string, now time.Time) {
	byChain := p.sources[chain]

	var (
		weightSum float64
		combined  float64
		liveEMAs  []float64
		total     int
	)

	for _, state := range byChain {
		total++
		if now.Sub(state.lastUpdate) > p.config.ExpectedCadence {
			continue // down-weighted to zero, never deleted
		}

		weight := 1.0 / (state.variance() + 1.0)
		if state.spiking {
			weight *= p.config.SpikeWeightFactor
		}

		combined += weight * state.ema
		weightSum += weight
		liveEMAs = append(liveEMAs, state.ema)
	}

	if weightSum == 0 {
		return
	}
	combined /= weightSum

	prev := p.estimates[chain]

	spike := false
	trend := types.GasTrendStable
	if prev != nil && prev.PriceGwei > 0 {
		change := (combined - prev.PriceGwei) / prev.PriceGwei
		spike = math.Abs(change) > p.config.SpikeRatio
		switch {
		case change > p.config.TrendEpsilon:
			trend = types.GasTrendRising
		case change < -p.config.TrendEpsilon:
			trend = types.GasTrendFalling
		}
	}

	p.estimates[chain] = &types.GasEstimate{
		Chain:      chain,
		PriceGwei:  combined,
		Confidence: p.confidence(liveEMAs, total),
		Trend:      trend,
		Volatile:   p.volatile(p.window[chain]),
		Spike:      spike,
		UpdatedAt:  now,
	}
}

// volatile reports whether stdev/mean over the chain window exceeds the
// configured ratio
func (p *Predictor) volatile(window []float64) bool {
	if len(window) < 2 {
		return false
	}
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	if mean == 0 {
		return false
	}

	sum := 0.0
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	stdev := math.Sqrt(sum / float64(len(window)))

	return stdev/mean > p.config.VolatilityRatio
}

// confidence decreases with inter-source disagreement and with fewer live
// sources. Result is clamped to [0, 1].
func (p *Predictor) confidence(liveEMAs []float64, totalSources int) float64 {
	if totalSources == 0 || len(liveEMAs) == 0 {
		return 0
	}

	liveFraction := float64(len(liveEMAs)) / float64(totalSources)

	mean := 0.0
	for _, v := range liveEMAs {
		mean += v
	}
	mean /= float64(len(liveEMAs))

	disagreement := 0.0
	if mean > 0 && len(liveEMAs) > 1 {
		sum := 0.0
		for _, v := range liveEMAs {
			d := v - mean
			sum += d * d
		}
		disagreement = math.Sqrt(sum/float64(len(liveEMAs))) / mean
	}
	if disagreement > 1 {
		disagreement = 1
	}

	score := liveFraction * (1 - disagreement)
	if score < 0 {
		return 0
	}
	return score
}
