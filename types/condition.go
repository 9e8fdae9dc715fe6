package types

import (
	"encoding/json"
	"fmt"
)

// Metric identifies one of the monitored telemetry channels.
type Metric int

const (
	// MetricHumidity is relative humidity in percent.
	MetricHumidity Metric = iota
	// MetricTemperature is temperature in degrees Celsius.
	MetricTemperature
	// MetricLight is light intensity in lux.
	MetricLight
)

// String returns the wire name of the metric.
func (m Metric) String() string {
	switch m {
	case MetricHumidity:
		return "HUMIDITY"
	case MetricTemperature:
		return "TEMPERATURE"
	case MetricLight:
		return "LIGHT_INTENSITY"
	default:
		return "UNKNOWN"
	}
}

// Metrics lists all monitored metrics in evaluation order.
func Metrics() []Metric {
	return []Metric{MetricHumidity, MetricTemperature, MetricLight}
}

// MarshalJSON encodes the metric as its wire name.
func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a metric from its wire name.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "HUMIDITY":
		*m = MetricHumidity
	case "TEMPERATURE":
		*m = MetricTemperature
	case "LIGHT_INTENSITY":
		*m = MetricLight
	default:
		return fmt.Errorf("unknown metric %q", s)
	}
	return nil
}

// Severity classifies how a threshold breach must be handled.
type Severity int

const (
	// SeverityWarn requires alerting only.
	SeverityWarn Severity = iota
	// SeverityForce requires automatic actuator correction in addition
	// to alerting.
	SeverityForce
)

// String returns the wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "WARN"
	case SeverityForce:
		return "FORCE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the severity as its wire name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its wire name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "WARN":
		*s = SeverityWarn
	case "FORCE":
		*s = SeverityForce
	default:
		return fmt.Errorf("unknown severity %q", str)
	}
	return nil
}

// Breach records which side of the configured range a value crossed.
// The actuator needs the direction to decide whether to raise or lower
// the correction.
type Breach int

const (
	// BreachUpper means the value exceeded the upper bound.
	BreachUpper Breach = iota
	// BreachLower means the value fell below the lower bound.
	BreachLower
)

// Condition is one triggered threshold breach produced by the evaluator.
// Conditions are ephemeral: produced per reading, consumed once by the
// cooldown gate, actuator, and alert publisher.
type Condition struct {
	SensorID   string
	Metric     Metric
	Severity   Severity
	Breach     Breach
	Value      float64
	ObservedAt int64 // unix milliseconds
}
