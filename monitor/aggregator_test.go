package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func TestAggregatorAbsorbsFirstChange(t *testing.T) {
	var forwarded []types.Reading
	agg := NewAggregator(func(r types.Reading) { forwarded = append(forwarded, r) })

	// First change seeds the snapshot silently, even if it already
	// breaches a threshold.
	agg.OnChange([]byte(`{"temperature": 99}`))
	assert.Empty(t, forwarded)
	assert.True(t, agg.Primed())

	agg.OnChange([]byte(`{"humidity": 50}`))
	require.Len(t, forwarded, 1)
	assert.Equal(t, 99.0, forwarded[0].Temperature, "seeded value survives the merge")
	assert.Equal(t, 50.0, forwarded[0].Humidity)
}

func TestAggregatorPrimesExactlyOnce(t *testing.T) {
	var count int
	agg := NewAggregator(func(types.Reading) { count++ })

	for i := 0; i < 5; i++ {
		agg.OnChange([]byte(`{"temperature": 20}`))
	}
	assert.Equal(t, 4, count, "only the first change is suppressed")
}

func TestAggregatorMergesBothStreams(t *testing.T) {
	var last types.Reading
	agg := NewAggregator(func(r types.Reading) { last = r })

	agg.OnChange([]byte(`{"humidity": 40, "temperature": 22, "light_intensity": 600}`))
	agg.OnChange([]byte(`{"button_for_led": 2, "button_for_fan": 1, "candel_power_for_led": 70}`))

	assert.Equal(t, 40.0, last.Humidity)
	assert.Equal(t, int64(2), last.LedMode)
	assert.Equal(t, int64(1), last.FanMode)
	assert.Equal(t, int64(70), last.Brightness)

	// Telemetry update leaves control fields untouched.
	agg.OnChange([]byte(`{"temperature": 25}`))
	assert.Equal(t, 25.0, last.Temperature)
	assert.Equal(t, int64(2), last.LedMode)
}

func TestAggregatorIgnoresMalformedPayload(t *testing.T) {
	var count int
	agg := NewAggregator(func(types.Reading) { count++ })

	agg.OnChange([]byte(`{"temperature": 20}`))
	agg.OnChange([]byte(`not json at all`))

	// Unparsable payloads still count as changes; the snapshot simply
	// keeps its previous values.
	assert.Equal(t, 1, count)
}
