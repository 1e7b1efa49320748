// ABOUTME: Prometheus metrics instrumentation for the gateway
// ABOUTME: Session-layer gauges plus HTTP request counters and histograms

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helplane_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helplane_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ConnectionsActive tracks active websocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helplane_ws_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	// RoomsActive tracks live conversation rooms.
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helplane_rooms_active",
			Help: "Number of live conversation rooms",
		},
	)

	// MessagesBuffered tracks messages held in memory awaiting flush.
	MessagesBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helplane_messages_buffered",
			Help: "Messages buffered in memory, not yet durable",
		},
	)

	// FramesTotal tracks processed inbound frames by event and outcome.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helplane_frames_total",
			Help: "Inbound websocket frames processed",
		},
		[]string{"event", "outcome"},
	)

	// MessagesFlushed tracks messages batch-persisted at conversation close.
	MessagesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helplane_messages_flushed_total",
			Help: "Buffered messages batch-persisted to the store",
		},
	)
)
