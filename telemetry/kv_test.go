package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func TestParseControlDefaults(t *testing.T) {
	state := parseControl(nil)
	assert.Equal(t, int64(0), state.LedMode)
	assert.Equal(t, int64(0), state.FanMode)
	assert.Equal(t, int64(types.BrightnessDefault), state.Brightness)
}

func TestParseControlFullDocument(t *testing.T) {
	raw := []byte(`{"button_for_led": 3, "button_for_fan": 2, "candel_power_for_led": 70}`)
	state := parseControl(raw)

	assert.Equal(t, int64(3), state.LedMode)
	assert.Equal(t, int64(2), state.FanMode)
	assert.Equal(t, int64(70), state.Brightness)
}

func TestParseControlPartialDocument(t *testing.T) {
	// No brightness recorded yet, default applies
	raw := []byte(`{"button_for_fan": 1}`)
	state := parseControl(raw)

	assert.Equal(t, int64(1), state.FanMode)
	assert.Equal(t, int64(types.BrightnessDefault), state.Brightness)
}

func TestParseControlBelowRangeBrightness(t *testing.T) {
	// A zero brightness means the field was never set by anything
	// respecting the actuator range
	raw := []byte(`{"candel_power_for_led": 0}`)
	state := parseControl(raw)
	assert.Equal(t, int64(types.BrightnessDefault), state.Brightness)
}

func TestParseControlMalformed(t *testing.T) {
	state := parseControl([]byte(`not json`))
	assert.Equal(t, int64(types.BrightnessDefault), state.Brightness)

	state = parseControl([]byte(`{"button_for_led": "high"}`))
	assert.Equal(t, int64(0), state.LedMode)
}
