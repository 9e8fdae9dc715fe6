package realtime

import (
	"encoding/json"
	"strconv"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// viewFrame is the merged telemetry/control snapshot pushed to a
// session after every post-priming change.
type viewFrame struct {
	LedStatus      int64   `json:"led_status"`
	FanStatus      int64   `json:"fan_status"`
	Humidity       float64 `json:"humidity"`
	LightIntensity float64 `json:"light_intensity"`
	Temperature    float64 `json:"temperature"`
	Timestamp      int64   `json:"timestamp"`
}

func newViewFrame(r types.Reading) viewFrame {
	return viewFrame{
		LedStatus:      r.LedMode,
		FanStatus:      r.FanMode,
		Humidity:       r.Humidity,
		LightIntensity: r.LightIntensity,
		Temperature:    r.Temperature,
		Timestamp:      r.ObservedAt,
	}
}

// errorFrame is sent once before closing a refused connection.
type errorFrame struct {
	Error string `json:"error"`
}

// parseControlFrame decodes an inbound device command. Fields are
// optional; absent fields and empty strings mean "no change". Fields
// that do not parse or fall outside the actuator ranges are skipped
// individually so one bad field never kills the connection.
func parseControlFrame(raw []byte) types.ControlCommand {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return types.ControlCommand{}
	}

	var cmd types.ControlCommand
	if v, ok := frameInt(fields["led_mode"]); ok && v >= types.LedModeMin && v <= types.LedModeMax {
		cmd.LedMode = &v
	}
	if v, ok := frameInt(fields["fan_mode"]); ok && v >= types.FanModeMin && v <= types.FanModeMax {
		cmd.FanMode = &v
	}
	if v, ok := frameInt(fields["led_brightness"]); ok && v >= types.BrightnessMin && v <= types.BrightnessMax {
		cmd.Brightness = &v
	}
	return cmd
}

// frameInt accepts JSON numbers and numeric strings; device firmware
// and older dashboard builds disagree on which one they send.
func frameInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
