package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core platform metrics shared by all components.
// Component-local metrics are registered separately through the
// MetricsRegistrar interface.
type Metrics struct {
	// Monitoring pipeline metrics
	ReadingsProcessed      *prometheus.CounterVec
	ConditionsTriggered    *prometheus.CounterVec
	ConditionsSuppressed   *prometheus.CounterVec
	NotificationsPublished *prometheus.CounterVec
	ActuatorWrites         *prometheus.CounterVec
	SensorsWatched         prometheus.Gauge

	// Session metrics
	SessionsConnected prometheus.Gauge
	DeliveryFailures  prometheus.Counter

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ReadingsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "monitor",
				Name:      "readings_processed_total",
				Help:      "Total sensor readings evaluated against thresholds",
			},
			[]string{"sensor"},
		),

		ConditionsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "monitor",
				Name:      "conditions_triggered_total",
				Help:      "Total threshold conditions triggered",
			},
			[]string{"metric", "severity"},
		),

		ConditionsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "monitor",
				Name:      "conditions_suppressed_total",
				Help:      "Total conditions suppressed by the cooldown gate",
			},
			[]string{"metric"},
		),

		NotificationsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "alert",
				Name:      "notifications_published_total",
				Help:      "Total notifications persisted and fanned out",
			},
			[]string{"status"},
		),

		ActuatorWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "actuator",
				Name:      "writes_total",
				Help:      "Total actuator correction writes",
			},
			[]string{"field", "status"},
		),

		SensorsWatched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "smarthome",
				Subsystem: "monitor",
				Name:      "sensors_watched",
				Help:      "Number of sensors with a live pipeline",
			},
		),

		SessionsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "smarthome",
				Subsystem: "session",
				Name:      "connected",
				Help:      "Number of currently open client sessions",
			},
		),

		DeliveryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "session",
				Name:      "delivery_failures_total",
				Help:      "Total failed sends to client sessions",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "smarthome",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "smarthome",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordReading increments the processed readings counter for a sensor
func (c *Metrics) RecordReading(sensorID string) {
	c.ReadingsProcessed.WithLabelValues(sensorID).Inc()
}

// RecordCondition increments the triggered conditions counter
func (c *Metrics) RecordCondition(metric, severity string) {
	c.ConditionsTriggered.WithLabelValues(metric, severity).Inc()
}

// RecordSuppressed increments the cooldown suppression counter
func (c *Metrics) RecordSuppressed(metric string) {
	c.ConditionsSuppressed.WithLabelValues(metric).Inc()
}

// RecordNotification increments the published notifications counter
func (c *Metrics) RecordNotification(status string) {
	c.NotificationsPublished.WithLabelValues(status).Inc()
}

// RecordActuatorWrite increments the actuator write counter
func (c *Metrics) RecordActuatorWrite(field, status string) {
	c.ActuatorWrites.WithLabelValues(field, status).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, errorType string) {
	c.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments the reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
