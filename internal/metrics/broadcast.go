package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		wsConnections,
		wsDropped,
		wsPruned,
	)
}

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablescout_ws_connections",
			Help: "Live-channel connections currently registered.",
		},
	)

	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescout_ws_dropped_messages_total",
			Help: "Outbound messages dropped because a connection queue was full.",
		},
	)

	wsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescout_ws_pruned_connections_total",
			Help: "Connections removed after a failed send.",
		},
	)
)

// ConnectionOpened tracks a registered connection
func ConnectionOpened() { wsConnections.Inc() }

// ConnectionClosed tracks a removed connection
func ConnectionClosed() { wsConnections.Dec() }

// MessageDropped records a drop-oldest eviction
func MessageDropped() { wsDropped.Inc() }

// ConnectionPruned records a connection removed after a send failure
func ConnectionPruned() { wsPruned.Inc() }
