package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linecheck"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http",
		Name:    "request_duration_seconds",
		Help:    "HTTP request latency including the cycle for /cycle.",
		Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})

	// result is clean, degraded, busy, rejected or error.
	cycleRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "cycle_requests_total",
		Help: "Manually triggered cycles by result.",
	}, []string{"result"})

	rateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "rate_limit_hits_total",
		Help: "Requests refused by the trigger limiter.",
	}, []string{"type"})

	uploadSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http",
		Name:    "upload_size_bytes",
		Help:    "Size of uploaded frames.",
		Buckets: prometheus.ExponentialBuckets(10*1024, 4, 6),
	})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "websocket",
		Name: "active_connections",
		Help: "Connected websocket clients.",
	})

	// direction is sent or received.
	websocketMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "websocket",
		Name: "messages_total",
		Help: "Websocket messages by direction.",
	}, []string{"direction"})

	websocketDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "websocket",
		Name: "dropped_total",
		Help: "Messages dropped for clients whose queue was full.",
	})
)
