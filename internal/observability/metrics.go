package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesCreated      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "rides_created_total", Help: "Total ride requests created"})
	RideTransitions   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "ride_transitions_total", Help: "Applied ride status transitions"}, []string{"status"})
	DispatchFanout    = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_dispatch", Name: "fanout_duration_seconds", Help: "Time spent notifying candidate drivers for one ride"})
	DispatchBroadcast = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "broadcast_fallbacks_total", Help: "Ride creations that fell back to a broadcast"})

	NotificationsSent   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "notifications_sent_total", Help: "WebSocket events delivered"})
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "notifications_failed_total", Help: "WebSocket sends that failed and pruned the connection"})
	WSConnections       = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "ws_connections", Help: "Currently registered websocket connections"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
