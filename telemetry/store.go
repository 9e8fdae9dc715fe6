package telemetry

import (
	"context"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// Event is one change observed on a watched store key.
type Event struct {
	SensorID string
	Raw      []byte
	Deleted  bool
}

// SensorEvent is a change in the sensor registry.
type SensorEvent struct {
	SensorID string
	Removed  bool
}

// Store is the sensor state store consumed by the monitoring pipelines
// and the realtime gateway. Watch channels close when the context is
// cancelled or the underlying watcher fails.
type Store interface {
	// WatchData streams changes to a sensor's latest reading, starting
	// with the current value if one exists.
	WatchData(ctx context.Context, sensorID string) (<-chan Event, error)

	// WatchControl streams changes to a sensor's control document.
	WatchControl(ctx context.Context, sensorID string) (<-chan Event, error)

	// ReadData returns the sensor's latest raw reading document, or
	// errors.ErrKeyNotFound when the sensor has never reported.
	ReadData(ctx context.Context, sensorID string) ([]byte, error)

	// ReadControl returns the sensor's current control state. A missing
	// document or missing brightness yields the default brightness.
	ReadControl(ctx context.Context, sensorID string) (types.ControlState, error)

	// WriteControl applies a client command to the control document.
	// Only fields present in the command change; the write goes through
	// compare-and-swap so concurrent corrections are not lost.
	WriteControl(ctx context.Context, sensorID string, cmd types.ControlCommand) error

	// ApplyCorrection mutates the control document under compare-and-swap.
	// mutate runs against the latest state and may run more than once on
	// revision conflicts; returning false skips the write entirely.
	ApplyCorrection(ctx context.Context, sensorID string, mutate func(*types.ControlState) bool) error
}

// Registry exposes the sensor fleet for pipeline discovery.
type Registry interface {
	// ListSensors returns the IDs of all registered sensors.
	ListSensors(ctx context.Context) ([]string, error)

	// WatchSensors streams registry membership changes, starting with
	// the sensors registered at watch time.
	WatchSensors(ctx context.Context) (<-chan SensorEvent, error)
}

// BoundsStore supplies threshold configuration. Implementations read
// fresh on every call so operator edits take effect on the next reading.
type BoundsStore interface {
	// BoundsFor returns the sensor's configured thresholds, falling back
	// to defaults when the sensor has no configuration.
	BoundsFor(ctx context.Context, sensorID string) (types.SensorBounds, error)
}

// IdentityStore resolves dashboard credentials to a sensor binding.
type IdentityStore interface {
	// ResolveToken maps an access token to a user ID, or
	// errors.ErrUnauthorized when the token is unknown.
	ResolveToken(ctx context.Context, token string) (string, error)

	// SensorForUser returns the sensor bound to the user, or
	// errors.ErrSensorNotFound when the user has no sensor.
	SensorForUser(ctx context.Context, userID string) (string, error)
}
