package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func defaultReading() *types.Reading {
	return &types.Reading{
		Humidity:       50,
		Temperature:    20,
		LightIntensity: 500,
		ObservedAt:     1700000000000,
	}
}

func TestEvaluateInRangeEmitsNothing(t *testing.T) {
	conds := Evaluate("s1", defaultReading(), types.DefaultSensorBounds())
	assert.Empty(t, conds)
}

func TestEvaluateWarnOnly(t *testing.T) {
	r := defaultReading()
	r.Humidity = 85 // warn upper 80, force upper 90

	conds := Evaluate("s1", r, types.DefaultSensorBounds())
	require.Len(t, conds, 1)
	assert.Equal(t, types.MetricHumidity, conds[0].Metric)
	assert.Equal(t, types.SeverityWarn, conds[0].Severity)
	assert.Equal(t, types.BreachUpper, conds[0].Breach)
	assert.Equal(t, 85.0, conds[0].Value)
	assert.Equal(t, r.ObservedAt, conds[0].ObservedAt)
}

func TestEvaluateForceEscalatesOverWarn(t *testing.T) {
	r := defaultReading()
	r.Temperature = 40 // outside both warn [10,30] and force [5,35]

	conds := Evaluate("s1", r, types.DefaultSensorBounds())
	require.Len(t, conds, 1, "a force breach must not also emit warn")
	assert.Equal(t, types.SeverityForce, conds[0].Severity)
	assert.Equal(t, types.BreachUpper, conds[0].Breach)
}

func TestEvaluateLowerBreachDirection(t *testing.T) {
	r := defaultReading()
	r.Temperature = 2 // below force lower 5

	conds := Evaluate("s1", r, types.DefaultSensorBounds())
	require.Len(t, conds, 1)
	assert.Equal(t, types.SeverityForce, conds[0].Severity)
	assert.Equal(t, types.BreachLower, conds[0].Breach)
}

func TestEvaluateMetricsIndependent(t *testing.T) {
	r := defaultReading()
	r.Humidity = 95       // force
	r.Temperature = 32    // warn
	r.LightIntensity = 20 // force lower

	conds := Evaluate("s1", r, types.DefaultSensorBounds())
	require.Len(t, conds, 3)

	bySeverity := map[types.Metric]types.Severity{}
	for _, c := range conds {
		bySeverity[c.Metric] = c.Severity
	}
	assert.Equal(t, types.SeverityForce, bySeverity[types.MetricHumidity])
	assert.Equal(t, types.SeverityWarn, bySeverity[types.MetricTemperature])
	assert.Equal(t, types.SeverityForce, bySeverity[types.MetricLight])
}

func TestEvaluateNeverBothSeveritiesForOneMetric(t *testing.T) {
	bounds := types.DefaultSensorBounds()
	values := []float64{-100, 0, 4.99, 5, 9.99, 10, 20, 30, 30.01, 35, 35.01, 100}

	for _, v := range values {
		r := defaultReading()
		r.Temperature = v

		seen := map[types.Metric]int{}
		for _, c := range Evaluate("s1", r, bounds) {
			seen[c.Metric]++
		}
		assert.LessOrEqual(t, seen[types.MetricTemperature], 1,
			"temperature=%v emitted more than one condition", v)
	}
}

func TestEvaluateBoundaryValuesInclusive(t *testing.T) {
	bounds := types.DefaultSensorBounds()

	r := defaultReading()
	r.Temperature = 30 // exactly warn upper
	assert.Empty(t, Evaluate("s1", r, bounds))

	r.Temperature = 35 // exactly force upper: outside warn, inside force
	conds := Evaluate("s1", r, bounds)
	require.Len(t, conds, 1)
	assert.Equal(t, types.SeverityWarn, conds[0].Severity)
}
