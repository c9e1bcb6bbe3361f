package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collabpads",
			Name:      "active_connections",
			Help:      "Number of sockets currently held by the hub",
		},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collabpads",
			Name:      "frames_total",
			Help:      "Inbound frames processed by the hub, by event",
		},
		[]string{"event"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collabpads",
			Name:      "deliveries_total",
			Help:      "Outbound frames handed to connections, by event",
		},
		[]string{"event"},
	)

	droppedConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "collabpads",
			Name:      "dropped_connections_total",
			Help:      "Connections closed because their send buffer was full",
		},
	)
)

// Collectors returns the hub metrics for registration on a metrics registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		activeConnections,
		framesTotal,
		deliveriesTotal,
		droppedConnectionsTotal,
	}
}
