package realtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AnhTuIT04/SmartHomeServer/metric"
)

// Metrics holds Prometheus metrics for the realtime gateway.
type Metrics struct {
	connectionsTotal    prometheus.Counter
	disconnectionsTotal *prometheus.CounterVec
	clientsConnected    prometheus.Gauge
	framesSent          *prometheus.CounterVec
	bytesSent           prometheus.Counter
	framesDropped       prometheus.Counter
	errorsTotal         *prometheus.CounterVec
}

// newMetrics creates and registers gateway metrics. Returns nil when no
// registry is provided.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "client_connections_total",
			Help:      "Total client connections (including disconnected)",
		}),

		disconnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "client_disconnections_total",
			Help:      "Total client disconnections",
		}, []string{"reason"}),

		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),

		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "frames_sent_total",
			Help:      "Total frames written to clients",
		}, []string{"type"}),

		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to clients",
		}),

		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a client's send queue overflowed",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smarthome",
			Subsystem: "realtime",
			Name:      "errors_total",
			Help:      "Gateway errors",
		}, []string{"error_type"}),
	}

	registry.PrometheusRegistry().MustRegister(
		m.connectionsTotal,
		m.disconnectionsTotal,
		m.clientsConnected,
		m.framesSent,
		m.bytesSent,
		m.framesDropped,
		m.errorsTotal,
	)

	return m
}
