package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func TestParseControlFrame_Numbers(t *testing.T) {
	cmd := parseControlFrame([]byte(`{"led_mode":2,"fan_mode":1,"led_brightness":70}`))

	require.NotNil(t, cmd.LedMode)
	require.NotNil(t, cmd.FanMode)
	require.NotNil(t, cmd.Brightness)
	assert.Equal(t, int64(2), *cmd.LedMode)
	assert.Equal(t, int64(1), *cmd.FanMode)
	assert.Equal(t, int64(70), *cmd.Brightness)
}

func TestParseControlFrame_NumericStrings(t *testing.T) {
	cmd := parseControlFrame([]byte(`{"led_mode":"3","fan_mode":"0"}`))

	require.NotNil(t, cmd.LedMode)
	require.NotNil(t, cmd.FanMode)
	assert.Equal(t, int64(3), *cmd.LedMode)
	assert.Equal(t, int64(0), *cmd.FanMode)
	assert.Nil(t, cmd.Brightness)
}

func TestParseControlFrame_EmptyStringMeansNoChange(t *testing.T) {
	cmd := parseControlFrame([]byte(`{"led_mode":"","fan_mode":2}`))

	assert.Nil(t, cmd.LedMode)
	require.NotNil(t, cmd.FanMode)
	assert.Equal(t, int64(2), *cmd.FanMode)
}

func TestParseControlFrame_OutOfRangeFieldsSkippedIndividually(t *testing.T) {
	cmd := parseControlFrame([]byte(`{"led_mode":9,"fan_mode":2,"led_brightness":5}`))

	assert.Nil(t, cmd.LedMode)
	assert.Nil(t, cmd.Brightness)
	require.NotNil(t, cmd.FanMode)
	assert.Equal(t, int64(2), *cmd.FanMode)
}

func TestParseControlFrame_Malformed(t *testing.T) {
	assert.True(t, parseControlFrame([]byte(`not json`)).Empty())
	assert.True(t, parseControlFrame([]byte(`{"led_mode":"abc"}`)).Empty())
	assert.True(t, parseControlFrame([]byte(`{}`)).Empty())
}

func TestViewFrame_WireNames(t *testing.T) {
	frame := newViewFrame(types.Reading{
		Humidity:       55.5,
		Temperature:    28.1,
		LightIntensity: 430,
		LedMode:        3,
		FanMode:        1,
		ObservedAt:     1700000000000,
	})

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, float64(3), fields["led_status"])
	assert.Equal(t, float64(1), fields["fan_status"])
	assert.Equal(t, 55.5, fields["humidity"])
	assert.Equal(t, 28.1, fields["temperature"])
	assert.Equal(t, float64(430), fields["light_intensity"])
	assert.Equal(t, float64(1700000000000), fields["timestamp"])
}
