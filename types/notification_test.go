package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationWireFormat(t *testing.T) {
	n := &Notification{
		ID:       "n-1",
		SensorID: "sensor-1",
		Details: []Detail{
			{Type: MetricTemperature, Mode: SeverityForce},
			{Type: MetricHumidity, Mode: SeverityWarn},
		},
		CreatedAt: 1700000000000,
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "n-1",
		"sensorId": "sensor-1",
		"details": [
			{"type": "TEMPERATURE", "mode": "FORCE"},
			{"type": "HUMIDITY", "mode": "WARN"}
		],
		"timestamp": 1700000000000
	}`, string(data))

	var back Notification
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *n, back)
}

func TestNewNotificationPreservesOrder(t *testing.T) {
	conds := []Condition{
		{SensorID: "s", Metric: MetricLight, Severity: SeverityForce},
		{SensorID: "s", Metric: MetricTemperature, Severity: SeverityWarn},
	}
	n := NewNotification("s", conds)

	require.Len(t, n.Details, 2)
	assert.Equal(t, Detail{Type: MetricLight, Mode: SeverityForce}, n.Details[0])
	assert.Equal(t, Detail{Type: MetricTemperature, Mode: SeverityWarn}, n.Details[1])
	assert.Empty(t, n.ID)
	assert.NotZero(t, n.CreatedAt)
}

func TestMetricUnmarshalUnknown(t *testing.T) {
	var m Metric
	assert.Error(t, json.Unmarshal([]byte(`"PRESSURE"`), &m))
	var s Severity
	assert.Error(t, json.Unmarshal([]byte(`"NOTICE"`), &s))
}
