package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadingApplyPartialUpdate(t *testing.T) {
	r := NewReading()
	r.Apply([]byte(`{"humidity": 55.5, "temperature": 21, "light_intensity": 300, "timestamp": 1700000000000}`))

	assert.Equal(t, 55.5, r.Humidity)
	assert.Equal(t, 21.0, r.Temperature)
	assert.Equal(t, 300.0, r.LightIntensity)
	assert.Equal(t, int64(1700000000000), r.ObservedAt)

	// Control update must not disturb telemetry fields.
	r.Apply([]byte(`{"button_for_led": 2, "button_for_fan": 1, "candel_power_for_led": 70}`))

	assert.Equal(t, 55.5, r.Humidity)
	assert.Equal(t, int64(2), r.LedMode)
	assert.Equal(t, int64(1), r.FanMode)
	assert.Equal(t, int64(70), r.Brightness)
}

func TestReadingApplyMalformedFields(t *testing.T) {
	r := NewReading()
	r.Apply([]byte(`{"humidity": 40, "temperature": 20}`))

	// Bad fields are skipped individually, good ones still apply.
	r.Apply([]byte(`{"humidity": "not-a-number", "temperature": 25}`))
	assert.Equal(t, 40.0, r.Humidity)
	assert.Equal(t, 25.0, r.Temperature)

	// Unparsable payload leaves the snapshot untouched.
	r.Apply([]byte(`{{{`))
	assert.Equal(t, 40.0, r.Humidity)
	assert.Equal(t, 25.0, r.Temperature)
}

func TestReadingValue(t *testing.T) {
	r := &Reading{Humidity: 1, Temperature: 2, LightIntensity: 3}
	assert.Equal(t, 1.0, r.Value(MetricHumidity))
	assert.Equal(t, 2.0, r.Value(MetricTemperature))
	assert.Equal(t, 3.0, r.Value(MetricLight))
}
