package types

import "fmt"

// Actuator ranges. Every write to the control namespace is clamped to
// these, whether it originates from a forced correction or a client
// command.
const (
	FanModeMin = 0
	FanModeMax = 3

	LedModeMin = 0
	LedModeMax = 4

	BrightnessMin = 10
	BrightnessMax = 100

	// BrightnessDefault is assumed when a sensor's control object has
	// no brightness yet.
	BrightnessDefault = 50
)

// ControlState is the desired actuator state stored in the control
// namespace for one sensor.
type ControlState struct {
	LedMode    int64 `json:"button_for_led"`
	FanMode    int64 `json:"button_for_fan"`
	Brightness int64 `json:"candel_power_for_led"`
}

// ClampFanMode saturates v to the fan range.
func ClampFanMode(v int64) int64 {
	return clamp(v, FanModeMin, FanModeMax)
}

// ClampLedMode saturates v to the led range.
func ClampLedMode(v int64) int64 {
	return clamp(v, LedModeMin, LedModeMax)
}

// ClampBrightness saturates v to the brightness range.
func ClampBrightness(v int64) int64 {
	return clamp(v, BrightnessMin, BrightnessMax)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ControlCommand is a client-issued device command. Nil fields mean
// "no change".
type ControlCommand struct {
	LedMode    *int64
	FanMode    *int64
	Brightness *int64
}

// Empty reports whether the command changes nothing.
func (c ControlCommand) Empty() bool {
	return c.LedMode == nil && c.FanMode == nil && c.Brightness == nil
}

// Validate checks every present field against its actuator range.
func (c ControlCommand) Validate() error {
	if c.LedMode != nil && (*c.LedMode < LedModeMin || *c.LedMode > LedModeMax) {
		return fmt.Errorf("led mode %d out of range [%d,%d]", *c.LedMode, LedModeMin, LedModeMax)
	}
	if c.FanMode != nil && (*c.FanMode < FanModeMin || *c.FanMode > FanModeMax) {
		return fmt.Errorf("fan mode %d out of range [%d,%d]", *c.FanMode, FanModeMin, FanModeMax)
	}
	if c.Brightness != nil && (*c.Brightness < BrightnessMin || *c.Brightness > BrightnessMax) {
		return fmt.Errorf("brightness %d out of range [%d,%d]", *c.Brightness, BrightnessMin, BrightnessMax)
	}
	return nil
}
