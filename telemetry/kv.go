package telemetry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/natsclient"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// KVStore implements Store over two JetStream KV buckets: one holding
// the latest reading per sensor, one holding the control document.
type KVStore struct {
	data    *natsclient.KVStore
	control *natsclient.KVStore
	logger  *slog.Logger
}

// NewKVStore builds a Store over the data and control buckets.
func NewKVStore(client *natsclient.Client, data, control jetstream.KeyValue, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		data:    client.NewKVStore(data),
		control: client.NewKVStore(control),
		logger:  logger.With("component", "telemetry"),
	}
}

// WatchData streams changes to a sensor's latest reading.
func (s *KVStore) WatchData(ctx context.Context, sensorID string) (<-chan Event, error) {
	return s.watch(ctx, s.data, sensorID)
}

// WatchControl streams changes to a sensor's control document.
func (s *KVStore) WatchControl(ctx context.Context, sensorID string) (<-chan Event, error) {
	return s.watch(ctx, s.control, sensorID)
}

// watch converts a KV key watcher into an Event channel. The consumer
// owns the channel lifetime through ctx.
func (s *KVStore) watch(ctx context.Context, kv *natsclient.KVStore, sensorID string) (<-chan Event, error) {
	watcher, err := kv.Watch(ctx, sensorID)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "watch", "create watcher")
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() {
			if err := watcher.Stop(); err != nil {
				s.logger.Debug("watcher stop failed", "sensor_id", sensorID, "error", err)
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
				// nil marks the end of initial values
				if entry == nil {
					continue
				}

				ev := Event{SensorID: sensorID}
				switch entry.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					ev.Deleted = true
				default:
					ev.Raw = entry.Value()
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

// ReadData returns the sensor's latest raw reading document.
func (s *KVStore) ReadData(ctx context.Context, sensorID string) ([]byte, error) {
	entry, err := s.data.Get(ctx, sensorID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "KVStore", "ReadData", "read reading")
	}
	return entry.Value, nil
}

// ReadControl returns the sensor's current control state. Absent
// documents and absent brightness fields yield the default brightness.
func (s *KVStore) ReadControl(ctx context.Context, sensorID string) (types.ControlState, error) {
	entry, err := s.control.Get(ctx, sensorID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return parseControl(nil), nil
		}
		return types.ControlState{}, errors.WrapTransient(err, "KVStore", "ReadControl", "read control")
	}
	return parseControl(entry.Value), nil
}

// WriteControl applies a client command to the control document.
func (s *KVStore) WriteControl(ctx context.Context, sensorID string, cmd types.ControlCommand) error {
	if err := cmd.Validate(); err != nil {
		return errors.WrapInvalid(err, "KVStore", "WriteControl", "validate command")
	}
	if cmd.Empty() {
		return nil
	}

	err := s.control.UpdateJSON(ctx, sensorID, func(doc map[string]any) error {
		if cmd.LedMode != nil {
			doc[types.FieldLedMode] = *cmd.LedMode
		}
		if cmd.FanMode != nil {
			doc[types.FieldFanMode] = *cmd.FanMode
		}
		if cmd.Brightness != nil {
			doc[types.FieldBrightness] = *cmd.Brightness
		}
		return nil
	})
	if err != nil {
		return errors.WrapTransient(err, "KVStore", "WriteControl", "update control document")
	}
	return nil
}

// errNoChange aborts a CAS update whose mutate function decided the
// current state needs no write.
var errNoChange = stderrors.New("control state unchanged")

// ApplyCorrection mutates the control document under compare-and-swap.
func (s *KVStore) ApplyCorrection(ctx context.Context, sensorID string, mutate func(*types.ControlState) bool) error {
	err := s.control.UpdateWithRetry(ctx, sensorID, func(current []byte) ([]byte, error) {
		state := parseControl(current)
		if !mutate(&state) {
			return nil, errNoChange
		}

		state.LedMode = types.ClampLedMode(state.LedMode)
		state.FanMode = types.ClampFanMode(state.FanMode)
		state.Brightness = types.ClampBrightness(state.Brightness)

		// Merge onto the existing document so fields owned by the
		// device firmware survive the write.
		doc := make(map[string]any)
		if len(current) > 0 {
			if err := json.Unmarshal(current, &doc); err != nil {
				doc = make(map[string]any)
			}
		}
		doc[types.FieldLedMode] = state.LedMode
		doc[types.FieldFanMode] = state.FanMode
		doc[types.FieldBrightness] = state.Brightness

		return json.Marshal(doc)
	})
	if err != nil {
		if stderrors.Is(err, errNoChange) {
			return nil
		}
		return errors.WrapTransient(err, "KVStore", "ApplyCorrection", "update control document")
	}
	return nil
}

// parseControl decodes a control document, tolerating missing or
// malformed fields. Brightness defaults when the document has no value
// in range yet.
func parseControl(raw []byte) types.ControlState {
	state := types.ControlState{Brightness: types.BrightnessDefault}

	if len(raw) == 0 {
		return state
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return state
	}

	if v, ok := asInt(fields[types.FieldLedMode]); ok {
		state.LedMode = v
	}
	if v, ok := asInt(fields[types.FieldFanMode]); ok {
		state.FanMode = v
	}
	if v, ok := asInt(fields[types.FieldBrightness]); ok && v >= types.BrightnessMin {
		state.Brightness = v
	}

	return state
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
