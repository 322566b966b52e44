package metrics

import (
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements the MetricsCollector interface over Prometheus plus a
// small in-process execution summary for the stats endpoint
type Collector struct {
	mu sync.RWMutex

	executions    int
	failures      int
	realizedTotal float64

	prom *prometheusMetrics
}

type prometheusMetrics struct {
	opportunitiesDetected *prometheus.CounterVec
	opportunitiesRejected *prometheus.CounterVec
	executionsTotal       *prometheus.CounterVec
	executionDuration     prometheus.Histogram
	detectionLatency      *prometheus.HistogramVec
	netProfit             prometheus.Histogram
	gasPriceGwei          *prometheus.GaugeVec
	gasConfidence         *prometheus.GaugeVec
	reservedExposure      prometheus.Gauge
}

// NewCollector creates a collector registered against the default registry
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector against a custom registry,
// which keeps parallel tests from colliding on metric names
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	prom := &prometheusMetrics{
		opportunitiesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_opportunities_detected_total",
			Help: "Opportunities accepted by the detector, by pair",
		}, []string{"pair"}),
		opportunitiesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_opportunities_rejected_total",
			Help: "Opportunities rejected before execution, by reason",
		}, []string{"reason"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_executions_total",
			Help: "Execution attempts, by outcome",
		}, []string{"outcome"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_execution_duration_seconds",
			Help:    "Wall time from simulation start to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		detectionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arb_detection_latency_seconds",
			Help:    "Per-pair detection cycle latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"pair"}),
		netProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_net_profit_usd",
			Help:    "Estimated net profit of accepted opportunities",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		gasPriceGwei: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_gas_price_gwei",
			Help: "Predicted gas price per chain",
		}, []string{"chain"}),
		gasConfidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_gas_confidence",
			Help: "Confidence of the gas estimate per chain",
		}, []string{"chain"}),
		reservedExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_reserved_exposure_usd",
			Help: "Capital reserved across live positions",
		}),
	}

	registry.MustRegister(
		prom.opportunitiesDetected,
		prom.opportunitiesRejected,
		prom.executionsTotal,
		prom.executionDuration,
		prom.detectionLatency,
		prom.netProfit,
		prom.gasPriceGwei,
		prom.gasConfidence,
		prom.reservedExposure,
	)
	return &Collector{prom: prom}
}

// RecordOpportunity counts an accepted opportunity
func (c *Collector) RecordOpportunity(opp *types.ArbitrageOpportunity) {
	c.prom.opportunitiesDetected.WithLabelValues(opp.Pair).Inc()
	c.prom.netProfit.Observe(opp.NetProfit)
}

// RecordRejection counts a pre-execution rejection by reason
func (c *Collector) RecordRejection(reason string) {
	c.prom.opportunitiesRejected.WithLabelValues(reason).Inc()
}

// RecordExecution records a terminal execution outcome
func (c *Collector) RecordExecution(opp *types.ArbitrageOpportunity, success bool, duration time.Duration) {
	outcome := "completed"
	if !success {
		outcome = "failed"
	}
	c.prom.executionsTotal.WithLabelValues(outcome).Inc()
	c.prom.executionDuration.Observe(duration.Seconds())

	c.mu.Lock()
	c.executions++
	if success {
		c.realizedTotal += opp.NetProfit
	} else {
		c.failures++
	}
	c.mu.Unlock()
}

// RecordDetectionLatency records one detection cycle's duration
func (c *Collector) RecordDetectionLatency(pair string, duration time.Duration) {
	c.prom.detectionLatency.WithLabelValues(pair).Observe(duration.Seconds())
}

// RecordGasEstimate exports the latest estimate for the chain
func (c *Collector) RecordGasEstimate(estimate *types.GasEstimate) {
	c.prom.gasPriceGwei.WithLabelValues(estimate.Chain).Set(estimate.PriceGwei)
	c.prom.gasConfidence.WithLabelValues(estimate.Chain).Set(estimate.Confidence)
}

// SetReservedExposure exports the current capital reservation level
func (c *Collector) SetReservedExposure(amount float64) {
	c.prom.reservedExposure.Set(amount)
}

// ExecutionSummary is a point-in-time view of execution results
type ExecutionSummary struct {
	Executions    int     `json:"executions"`
	Failures      int     `json:"failures"`
	RealizedTotal float64 `json:"realized_total"`
	SuccessRate   float64 `json:"success_rate"`
}

// Summary returns the in-process execution summary
func (c *Collector) Summary() ExecutionSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := ExecutionSummary{
		Executions:    c.executions,
		Failures:      c.failures,
		RealizedTotal: c.realizedTotal,
	}
	if c.executions > 0 {
		s.SuccessRate = float64(c.executions-c.failures) / float64(c.executions)
	}
	return s
}
