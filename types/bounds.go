package types

import "encoding/json"

// Range is an inclusive [Lower, Upper] interval.
type Range struct {
	Lower float64
	Upper float64
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Lower && v <= r.Upper
}

// MetricBounds holds the nested warn and force ranges for one metric.
// The config store guarantees Force.Lower <= Warn.Lower <= Warn.Upper
// <= Force.Upper; this subsystem is a read-only consumer and does not
// re-validate the invariant.
type MetricBounds struct {
	Warn  Range
	Force Range
}

// SensorBounds holds the configured thresholds for one sensor, loaded
// fresh from the config store on every evaluation so edits take effect
// immediately.
type SensorBounds struct {
	Humidity    MetricBounds
	Temperature MetricBounds
	Light       MetricBounds
}

// For returns the bounds of the given metric.
func (b SensorBounds) For(m Metric) MetricBounds {
	switch m {
	case MetricHumidity:
		return b.Humidity
	case MetricTemperature:
		return b.Temperature
	case MetricLight:
		return b.Light
	default:
		return MetricBounds{}
	}
}

// sensorBoundsDoc is the flat document schema used by the config store.
type sensorBoundsDoc struct {
	HumWarnUpper    float64 `json:"humWarnUpper"`
	HumWarnLower    float64 `json:"humWarnLower"`
	TempWarnUpper   float64 `json:"tempWarnUpper"`
	TempWarnLower   float64 `json:"tempWarnLower"`
	LightWarnUpper  float64 `json:"lightWarnUpper"`
	LightWarnLower  float64 `json:"lightWarnLower"`
	HumForceUpper   float64 `json:"humForceUpper"`
	HumForceLower   float64 `json:"humForceLower"`
	TempForceUpper  float64 `json:"tempForceUpper"`
	TempForceLower  float64 `json:"tempForceLower"`
	LightForceUpper float64 `json:"lightForceUpper"`
	LightForceLower float64 `json:"lightForceLower"`
}

// ParseSensorBounds decodes the flat 12-field document stored per
// sensor into nested ranges.
func ParseSensorBounds(raw []byte) (SensorBounds, error) {
	var doc sensorBoundsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SensorBounds{}, err
	}
	return SensorBounds{
		Humidity: MetricBounds{
			Warn:  Range{Lower: doc.HumWarnLower, Upper: doc.HumWarnUpper},
			Force: Range{Lower: doc.HumForceLower, Upper: doc.HumForceUpper},
		},
		Temperature: MetricBounds{
			Warn:  Range{Lower: doc.TempWarnLower, Upper: doc.TempWarnUpper},
			Force: Range{Lower: doc.TempForceLower, Upper: doc.TempForceUpper},
		},
		Light: MetricBounds{
			Warn:  Range{Lower: doc.LightWarnLower, Upper: doc.LightWarnUpper},
			Force: Range{Lower: doc.LightForceLower, Upper: doc.LightForceUpper},
		},
	}, nil
}

// DefaultSensorBounds returns the thresholds applied to a sensor that
// has never been configured.
func DefaultSensorBounds() SensorBounds {
	return SensorBounds{
		Humidity: MetricBounds{
			Warn:  Range{Lower: 20, Upper: 80},
			Force: Range{Lower: 10, Upper: 90},
		},
		Temperature: MetricBounds{
			Warn:  Range{Lower: 10, Upper: 30},
			Force: Range{Lower: 5, Upper: 35},
		},
		Light: MetricBounds{
			Warn:  Range{Lower: 100, Upper: 1000},
			Force: Range{Lower: 50, Upper: 1500},
		},
	}
}
