package telemetry

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/natsclient"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// KVRegistry implements Registry and BoundsStore over the sensors
// bucket. Each key is a sensor ID; the value is the sensor document
// carrying its threshold configuration.
type KVRegistry struct {
	sensors *natsclient.KVStore
	logger  *slog.Logger
}

// NewKVRegistry builds a registry over the sensors bucket.
func NewKVRegistry(client *natsclient.Client, sensors jetstream.KeyValue, logger *slog.Logger) *KVRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVRegistry{
		sensors: client.NewKVStore(sensors),
		logger:  logger.With("component", "registry"),
	}
}

// ListSensors returns the IDs of all registered sensors.
func (r *KVRegistry) ListSensors(ctx context.Context) ([]string, error) {
	keys, err := r.sensors.ListKeys(ctx, "")
	if err != nil {
		return nil, errors.WrapTransient(err, "KVRegistry", "ListSensors", "list sensor keys")
	}
	return keys, nil
}

// WatchSensors streams registry membership changes. The initial values
// of the watch surface the sensors registered at watch time, so an
// eager supervisor needs no separate list-then-watch dance.
func (r *KVRegistry) WatchSensors(ctx context.Context) (<-chan SensorEvent, error) {
	watcher, err := r.sensors.Watch(ctx, ">")
	if err != nil {
		return nil, errors.WrapTransient(err, "KVRegistry", "WatchSensors", "create watcher")
	}

	events := make(chan SensorEvent)
	go func() {
		defer close(events)
		defer func() {
			if err := watcher.Stop(); err != nil {
				r.logger.Debug("sensor watcher stop failed", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}

				ev := SensorEvent{SensorID: entry.Key()}
				switch entry.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					ev.Removed = true
				}

				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// BoundsFor returns the sensor's configured thresholds. Unconfigured
// sensors and undecodable documents fall back to the defaults so a bad
// config edit degrades monitoring rather than halting it.
func (r *KVRegistry) BoundsFor(ctx context.Context, sensorID string) (types.SensorBounds, error) {
	entry, err := r.sensors.Get(ctx, sensorID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return types.DefaultSensorBounds(), nil
		}
		return types.SensorBounds{}, errors.WrapTransient(err, "KVRegistry", "BoundsFor", "read sensor document")
	}

	bounds, err := types.ParseSensorBounds(entry.Value)
	if err != nil {
		r.logger.Warn("sensor document undecodable, using default bounds",
			"sensor_id", sensorID, "error", err)
		return types.DefaultSensorBounds(), nil
	}

	// A registered sensor whose document carries no threshold fields
	// parses to all zeros, which would flag every reading.
	if bounds == (types.SensorBounds{}) {
		return types.DefaultSensorBounds(), nil
	}

	return bounds, nil
}
