package monitor

import "github.com/AnhTuIT04/SmartHomeServer/types"

// Evaluate checks one merged reading against the sensor's configured
// thresholds and returns the triggered conditions, one per breached
// metric at most. A value outside the force range yields a single
// FORCE condition; a value outside the warn range but inside the force
// range yields WARN. A metric never yields both in one evaluation.
//
// Pure function: no I/O, no clock, deterministic given its inputs.
func Evaluate(sensorID string, r *types.Reading, bounds types.SensorBounds) []types.Condition {
	var conds []types.Condition

	for _, m := range types.Metrics() {
		value := r.Value(m)
		mb := bounds.For(m)

		var severity types.Severity
		var rng types.Range
		switch {
		case !mb.Force.Contains(value):
			severity = types.SeverityForce
			rng = mb.Force
		case !mb.Warn.Contains(value):
			severity = types.SeverityWarn
			rng = mb.Warn
		default:
			continue
		}

		breach := types.BreachUpper
		if value < rng.Lower {
			breach = types.BreachLower
		}

		conds = append(conds, types.Condition{
			SensorID:   sensorID,
			Metric:     m,
			Severity:   severity,
			Breach:     breach,
			Value:      value,
			ObservedAt: r.ObservedAt,
		})
	}

	return conds
}
