package types

import (
	"encoding/json"
	"time"
)

// Telemetry and control object field names as stored in the realtime store.
const (
	FieldHumidity       = "humidity"
	FieldLightIntensity = "light_intensity"
	FieldTemperature    = "temperature"
	FieldTimestamp      = "timestamp"
	FieldLedMode        = "button_for_led"
	FieldFanMode        = "button_for_fan"
	FieldBrightness     = "candel_power_for_led"
)

// Reading is the merged live snapshot for one sensor, fed by two
// independent change streams: telemetry (humidity/temperature/light)
// and control (led/fan/brightness). It is recreated fresh each time a
// sensor watch (re)starts and mutated in place for the watch lifetime.
//
// Primed implements warm-up suppression: the first change absorbed
// after creation seeds the snapshot without being forwarded, because a
// single-channel update right after subscribing is a partial, possibly
// stale picture.
type Reading struct {
	Humidity       float64
	Temperature    float64
	LightIntensity float64
	LedMode        int64
	FanMode        int64
	Brightness     int64
	ObservedAt     int64 // unix milliseconds
	Primed         bool
}

// NewReading returns a zeroed snapshot stamped with the current time.
func NewReading() *Reading {
	return &Reading{ObservedAt: time.Now().UnixMilli()}
}

// Apply merges a partial JSON object onto the snapshot. Fields absent
// from the update keep their previous value. Malformed or non-numeric
// fields are skipped individually; the snapshot degrades to stale
// values for those fields rather than failing the whole update.
func (r *Reading) Apply(raw []byte) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}

	if v, ok := asFloat(fields[FieldHumidity]); ok {
		r.Humidity = v
	}
	if v, ok := asFloat(fields[FieldLightIntensity]); ok {
		r.LightIntensity = v
	}
	if v, ok := asFloat(fields[FieldTemperature]); ok {
		r.Temperature = v
	}
	if v, ok := asInt(fields[FieldTimestamp]); ok {
		r.ObservedAt = v
	}
	if v, ok := asInt(fields[FieldLedMode]); ok {
		r.LedMode = v
	}
	if v, ok := asInt(fields[FieldFanMode]); ok {
		r.FanMode = v
	}
	if v, ok := asInt(fields[FieldBrightness]); ok {
		r.Brightness = v
	}
}

// Value returns the current value of the given metric.
func (r *Reading) Value(m Metric) float64 {
	switch m {
	case MetricHumidity:
		return r.Humidity
	case MetricTemperature:
		return r.Temperature
	case MetricLight:
		return r.LightIntensity
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
