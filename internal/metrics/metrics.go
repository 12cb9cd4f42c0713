package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Realtime metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_connections",
			Help: "Currently open websocket connections",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Total messages persisted",
		},
	)

	MessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_delivered_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"result"}, // "delivered" or "offline"
	)

	SignalsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signals_forwarded_total",
			Help: "Ephemeral signals forwarded to live connections",
		},
		[]string{"kind"}, // "typing" or "read_receipt"
	)

	HistoryLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_history_loads_total",
			Help: "Total conversation history loads",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
	)
)
