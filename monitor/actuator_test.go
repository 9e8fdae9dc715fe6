package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/testutil"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func forceCond(m types.Metric, breach types.Breach) types.Condition {
	return types.Condition{
		SensorID: "s1",
		Metric:   m,
		Severity: types.SeverityForce,
		Breach:   breach,
	}
}

func TestCorrectTemperatureStepsFan(t *testing.T) {
	state := types.ControlState{FanMode: 1, Brightness: 50}

	assert.True(t, Correct(&state, forceCond(types.MetricTemperature, types.BreachUpper)))
	assert.Equal(t, int64(2), state.FanMode)

	assert.True(t, Correct(&state, forceCond(types.MetricTemperature, types.BreachLower)))
	assert.Equal(t, int64(1), state.FanMode)
}

func TestCorrectTemperatureSaturates(t *testing.T) {
	state := types.ControlState{FanMode: types.FanModeMax}

	// At the boundary the correction is a no-op, not an overflow.
	for i := 0; i < 3; i++ {
		changed := Correct(&state, forceCond(types.MetricTemperature, types.BreachUpper))
		assert.False(t, changed)
		assert.Equal(t, int64(types.FanModeMax), state.FanMode)
	}

	state.FanMode = types.FanModeMin
	assert.False(t, Correct(&state, forceCond(types.MetricTemperature, types.BreachLower)))
	assert.Equal(t, int64(types.FanModeMin), state.FanMode)
}

func TestCorrectHumiditySetsFanDirectly(t *testing.T) {
	state := types.ControlState{FanMode: 3}

	assert.True(t, Correct(&state, forceCond(types.MetricHumidity, types.BreachUpper)))
	assert.Equal(t, int64(2), state.FanMode, "upper breach is a direct set to 2, not an increment")

	assert.True(t, Correct(&state, forceCond(types.MetricHumidity, types.BreachLower)))
	assert.Equal(t, int64(0), state.FanMode)

	assert.False(t, Correct(&state, forceCond(types.MetricHumidity, types.BreachLower)),
		"already at target, no write needed")
}

func TestCorrectLightAdjustsBrightnessAndLed(t *testing.T) {
	state := types.ControlState{LedMode: 2, Brightness: 50}

	assert.True(t, Correct(&state, forceCond(types.MetricLight, types.BreachUpper)))
	assert.Equal(t, int64(40), state.Brightness, "upper breach dims")
	assert.Equal(t, int64(1), state.LedMode)

	assert.True(t, Correct(&state, forceCond(types.MetricLight, types.BreachLower)))
	assert.Equal(t, int64(50), state.Brightness, "lower breach brightens")
	assert.Equal(t, int64(2), state.LedMode)
}

func TestCorrectLightClampsIndependently(t *testing.T) {
	// Brightness already at the floor, led still has room.
	state := types.ControlState{LedMode: 3, Brightness: types.BrightnessMin}

	assert.True(t, Correct(&state, forceCond(types.MetricLight, types.BreachUpper)))
	assert.Equal(t, int64(types.BrightnessMin), state.Brightness)
	assert.Equal(t, int64(2), state.LedMode)

	// Both saturated: nothing to write.
	state = types.ControlState{LedMode: types.LedModeMin, Brightness: types.BrightnessMin}
	assert.False(t, Correct(&state, forceCond(types.MetricLight, types.BreachUpper)))
}

func TestCorrectAlwaysWithinRange(t *testing.T) {
	for fan := int64(-1); fan <= types.FanModeMax+1; fan++ {
		for _, breach := range []types.Breach{types.BreachUpper, types.BreachLower} {
			state := types.ControlState{FanMode: types.ClampFanMode(fan), Brightness: 50}
			Correct(&state, forceCond(types.MetricTemperature, breach))
			assert.GreaterOrEqual(t, state.FanMode, int64(types.FanModeMin))
			assert.LessOrEqual(t, state.FanMode, int64(types.FanModeMax))
		}
	}
}

func TestControllerAppliesCorrectionThroughStore(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetControl("s1", types.ControlState{FanMode: 1, Brightness: 50})

	c := NewController(store, ControllerOptions{Workers: 1, QueueSize: 8}, nil)
	require.NoError(t, c.Start(context.Background()))
	defer func() { _ = c.Stop(time.Second) }()

	require.NoError(t, c.Apply(forceCond(types.MetricTemperature, types.BreachUpper)))

	require.Eventually(t, func() bool {
		return store.Control("s1").FanMode == 2
	}, time.Second, 5*time.Millisecond)
}

func TestControllerRejectsWarnConditions(t *testing.T) {
	store := testutil.NewFakeStore()
	c := NewController(store, ControllerOptions{Workers: 1, QueueSize: 8}, nil)

	cond := forceCond(types.MetricTemperature, types.BreachUpper)
	cond.Severity = types.SeverityWarn
	assert.Error(t, c.Apply(cond))
}
