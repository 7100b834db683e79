package cycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linecheck_cycles_total",
			Help: "Total number of emitted cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linecheck_cycle_duration_seconds",
			Help:    "Wall-clock duration of a cycle from trigger to emission",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	busyRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linecheck_busy_rejections_total",
			Help: "Triggers refused because a cycle was in flight",
		},
	)

	ticksDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linecheck_ticks_dropped_total",
			Help: "Ticker triggers dropped because the runner was busy",
		},
	)

	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linecheck_cycle_failures_total",
			Help: "Failures recorded in emitted cycles by kind",
		},
		[]string{"kind"},
	)

	sinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linecheck_sink_errors_total",
			Help: "Emission errors by sink",
		},
		[]string{"sink"},
	)

	stateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linecheck_cycle_state",
			Help: "Current orchestrator state (0=IDLE, 4=EMITTED)",
		},
	)
)

// Outcome labels for linecheck_cycles_total.
const (
	OutcomeClean    = "clean"
	OutcomeDegraded = "degraded"
)
