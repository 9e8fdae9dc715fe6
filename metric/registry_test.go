package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewMetricsRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test",
	})
	require.NoError(t, r.RegisterCounter("gateway", "test_counter_total", c))

	c2 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test",
	})
	err := r.RegisterCounter("gateway", "test_counter_total", c2)
	assert.Error(t, err)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "test",
	})
	require.NoError(t, r.RegisterGauge("supervisor", "test_gauge", g))

	assert.True(t, r.Unregister("supervisor", "test_gauge"))
	assert.False(t, r.Unregister("supervisor", "test_gauge"))

	// Re-registration after unregister must succeed.
	require.NoError(t, r.RegisterGauge("supervisor", "test_gauge", g))
}

func TestCoreMetricsRegistered(t *testing.T) {
	r := NewMetricsRegistry()
	core := r.CoreMetrics()
	require.NotNil(t, core)

	// Recording must not panic and must be visible through the registry.
	core.RecordReading("sensor-1")
	core.RecordCondition("TEMPERATURE", "FORCE")
	core.RecordSuppressed("HUMIDITY")
	core.RecordNotification("ok")
	core.RecordActuatorWrite("button_for_fan", "ok")
	core.RecordNATSStatus(true)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["smarthome_monitor_readings_processed_total"])
	assert.True(t, names["smarthome_monitor_conditions_triggered_total"])
	assert.True(t, names["smarthome_nats_connected"])
}
