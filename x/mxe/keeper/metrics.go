package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MXEMetrics holds all Prometheus metrics for the mxe module
type MXEMetrics struct {
	// Registry metrics
	DefinitionsRegistered prometheus.Counter

	// Queue metrics
	ComputationsQueued    *prometheus.CounterVec
	ComputationsRejected  *prometheus.CounterVec
	ComputationsFinalized *prometheus.CounterVec
	PendingComputations   prometheus.Gauge

	// Verification metrics
	OutputsVerified      *prometheus.CounterVec
	VerificationFailures *prometheus.CounterVec
	VerificationTime     prometheus.Histogram
	SignersPerOutput     prometheus.Histogram

	// Delivery metrics
	CallbacksDelivered *prometheus.CounterVec
	DeliveryRejections *prometheus.CounterVec

	// Cluster metrics
	ClusterEpoch     prometheus.Gauge
	ClusterThreshold prometheus.Gauge

	CircuitBreakerTriggers *prometheus.CounterVec
}

var (
	mxeMetricsOnce sync.Once
	mxeMetrics     *MXEMetrics
)

// NewMXEMetrics creates and registers mxe metrics (singleton pattern)
func NewMXEMetrics() *MXEMetrics {
	mxeMetricsOnce.Do(func() {
		mxeMetrics = &MXEMetrics{
			DefinitionsRegistered: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "definitions_registered_total",
					Help:      "Total computation definitions registered",
				},
			),
			ComputationsQueued: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "computations_queued_total",
					Help:      "Total computations accepted into the queue",
				},
				[]string{"definition"},
			),
			ComputationsRejected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "computations_rejected_total",
					Help:      "Total queue submissions rejected",
				},
				[]string{"reason"},
			),
			ComputationsFinalized: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "computations_finalized_total",
					Help:      "Total computations reaching a terminal status",
				},
				[]string{"status"},
			),
			PendingComputations: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "pending_computations",
					Help:      "Computations queued or executing",
				},
			),
			OutputsVerified: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "outputs_verified_total",
					Help:      "Total cluster outputs checked",
				},
				[]string{"result"},
			),
			VerificationFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "verification_failures_total",
					Help:      "Cluster outputs rejected by reason",
				},
				[]string{"reason"},
			),
			VerificationTime: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "verification_seconds",
					Help:      "Time spent verifying one cluster output",
					Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
				},
			),
			SignersPerOutput: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "signers_per_output",
					Help:      "Number of cluster signers aggregated into an accepted output",
					Buckets:   prometheus.LinearBuckets(1, 1, 16),
				},
			),
			CallbacksDelivered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "callbacks_delivered_total",
					Help:      "Total callbacks routed to consuming modules",
				},
				[]string{"module", "instruction"},
			),
			DeliveryRejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "delivery_rejections_total",
					Help:      "Deliveries refused for already finalized or misordered requests",
				},
				[]string{"reason"},
			),
			ClusterEpoch: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "cluster_epoch",
					Help:      "Epoch of the active cluster configuration",
				},
			),
			ClusterThreshold: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "cluster_threshold",
					Help:      "Signatures required by the active cluster configuration",
				},
			),
			CircuitBreakerTriggers: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "wheel",
					Subsystem: "mxe",
					Name:      "circuit_breaker_triggers_total",
					Help:      "Circuit breaker state changes",
				},
				[]string{"state"},
			),
		}
	})
	return mxeMetrics
}

// GetMXEMetrics returns the singleton metrics instance
func GetMXEMetrics() *MXEMetrics {
	return NewMXEMetrics()
}
