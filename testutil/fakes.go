// Package testutil provides in-memory fakes for the store interfaces
// and a manual clock, so pipeline behavior is testable without NATS or
// real sleeps.
package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// FakeStore is an in-memory telemetry.Store. Watch channels are fed
// manually with PushData/PushControl; writes are recorded for
// assertions.
type FakeStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	control  map[string]types.ControlState
	dataCh   map[string][]chan telemetry.Event
	ctrlCh   map[string][]chan telemetry.Event
	writes   []types.ControlCommand
	WriteErr error
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		data:    make(map[string][]byte),
		control: make(map[string]types.ControlState),
		dataCh:  make(map[string][]chan telemetry.Event),
		ctrlCh:  make(map[string][]chan telemetry.Event),
	}
}

// WatchData returns a channel fed by PushData for the sensor.
func (f *FakeStore) WatchData(ctx context.Context, sensorID string) (<-chan telemetry.Event, error) {
	return f.watch(ctx, sensorID, f.dataCh)
}

// WatchControl returns a channel fed by PushControl for the sensor.
func (f *FakeStore) WatchControl(ctx context.Context, sensorID string) (<-chan telemetry.Event, error) {
	return f.watch(ctx, sensorID, f.ctrlCh)
}

func (f *FakeStore) watch(ctx context.Context, sensorID string, chans map[string][]chan telemetry.Event) (<-chan telemetry.Event, error) {
	ch := make(chan telemetry.Event, 64)

	f.mu.Lock()
	chans[sensorID] = append(chans[sensorID], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, c := range chans[sensorID] {
			if c == ch {
				chans[sensorID] = append(chans[sensorID][:i], chans[sensorID][i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// PushData delivers a telemetry change to every data watcher of the sensor.
func (f *FakeStore) PushData(sensorID string, raw []byte) {
	f.mu.Lock()
	f.data[sensorID] = raw
	watchers := append([]chan telemetry.Event(nil), f.dataCh[sensorID]...)
	f.mu.Unlock()

	for _, ch := range watchers {
		ch <- telemetry.Event{SensorID: sensorID, Raw: raw}
	}
}

// PushControl delivers a control change to every control watcher of the sensor.
func (f *FakeStore) PushControl(sensorID string, raw []byte) {
	f.mu.Lock()
	watchers := append([]chan telemetry.Event(nil), f.ctrlCh[sensorID]...)
	f.mu.Unlock()

	for _, ch := range watchers {
		ch <- telemetry.Event{SensorID: sensorID, Raw: raw}
	}
}

// ReadData returns the latest pushed raw document.
func (f *FakeStore) ReadData(_ context.Context, sensorID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[sensorID]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return raw, nil
}

// ReadControl returns the current control state.
func (f *FakeStore) ReadControl(_ context.Context, sensorID string) (types.ControlState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.control[sensorID]
	if !ok {
		return types.ControlState{Brightness: types.BrightnessDefault}, nil
	}
	return state, nil
}

// SetControl seeds the control state for a sensor.
func (f *FakeStore) SetControl(sensorID string, state types.ControlState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control[sensorID] = state
}

// WriteControl records the command and applies present fields.
func (f *FakeStore) WriteControl(_ context.Context, sensorID string, cmd types.ControlCommand) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, cmd)
	state := f.control[sensorID]
	if cmd.LedMode != nil {
		state.LedMode = *cmd.LedMode
	}
	if cmd.FanMode != nil {
		state.FanMode = *cmd.FanMode
	}
	if cmd.Brightness != nil {
		state.Brightness = *cmd.Brightness
	}
	f.control[sensorID] = state
	return nil
}

// ApplyCorrection runs mutate against the stored state.
func (f *FakeStore) ApplyCorrection(_ context.Context, sensorID string, mutate func(*types.ControlState) bool) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.control[sensorID]
	if !ok {
		state = types.ControlState{Brightness: types.BrightnessDefault}
	}
	if mutate(&state) {
		f.control[sensorID] = state
	}
	return nil
}

// Control returns the current control state without error plumbing.
func (f *FakeStore) Control(sensorID string) types.ControlState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.control[sensorID]
}

// Writes returns every recorded WriteControl command.
func (f *FakeStore) Writes() []types.ControlCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ControlCommand(nil), f.writes...)
}

// FakeRegistry is an in-memory telemetry.Registry fed with Add/Remove.
type FakeRegistry struct {
	mu       sync.Mutex
	sensors  map[string]struct{}
	watchers []chan telemetry.SensorEvent
}

// NewFakeRegistry creates a registry preloaded with the given sensors.
func NewFakeRegistry(sensors ...string) *FakeRegistry {
	r := &FakeRegistry{sensors: make(map[string]struct{})}
	for _, id := range sensors {
		r.sensors[id] = struct{}{}
	}
	return r
}

// ListSensors returns the current membership.
func (r *FakeRegistry) ListSensors(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sensors))
	for id := range r.sensors {
		out = append(out, id)
	}
	return out, nil
}

// WatchSensors streams membership changes, starting with the current
// membership.
func (r *FakeRegistry) WatchSensors(ctx context.Context) (<-chan telemetry.SensorEvent, error) {
	ch := make(chan telemetry.SensorEvent, 64)

	r.mu.Lock()
	for id := range r.sensors {
		ch <- telemetry.SensorEvent{SensorID: id}
	}
	r.watchers = append(r.watchers, ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, c := range r.watchers {
			if c == ch {
				r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// Add registers a sensor and notifies watchers.
func (r *FakeRegistry) Add(sensorID string) {
	r.mu.Lock()
	r.sensors[sensorID] = struct{}{}
	watchers := append([]chan telemetry.SensorEvent(nil), r.watchers...)
	r.mu.Unlock()
	for _, ch := range watchers {
		ch <- telemetry.SensorEvent{SensorID: sensorID}
	}
}

// Remove deregisters a sensor and notifies watchers.
func (r *FakeRegistry) Remove(sensorID string) {
	r.mu.Lock()
	delete(r.sensors, sensorID)
	watchers := append([]chan telemetry.SensorEvent(nil), r.watchers...)
	r.mu.Unlock()
	for _, ch := range watchers {
		ch <- telemetry.SensorEvent{SensorID: sensorID, Removed: true}
	}
}

// FakeBounds is a telemetry.BoundsStore returning fixed bounds per
// sensor, with defaults for unknown sensors.
type FakeBounds struct {
	mu     sync.Mutex
	bounds map[string]types.SensorBounds
	Err    error
}

// NewFakeBounds creates an empty bounds store.
func NewFakeBounds() *FakeBounds {
	return &FakeBounds{bounds: make(map[string]types.SensorBounds)}
}

// Set fixes the bounds returned for a sensor.
func (b *FakeBounds) Set(sensorID string, bounds types.SensorBounds) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bounds[sensorID] = bounds
}

// BoundsFor returns the configured bounds or the defaults.
func (b *FakeBounds) BoundsFor(_ context.Context, sensorID string) (types.SensorBounds, error) {
	if b.Err != nil {
		return types.SensorBounds{}, b.Err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if bounds, ok := b.bounds[sensorID]; ok {
		return bounds, nil
	}
	return types.DefaultSensorBounds(), nil
}

// FakeIdentity is a telemetry.IdentityStore backed by two maps.
type FakeIdentity struct {
	Tokens  map[string]string // token -> userID
	Sensors map[string]string // userID -> sensorID
}

// NewFakeIdentity creates an empty identity store.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{
		Tokens:  make(map[string]string),
		Sensors: make(map[string]string),
	}
}

// Bind wires token -> user -> sensor in one call.
func (f *FakeIdentity) Bind(token, userID, sensorID string) {
	f.Tokens[token] = userID
	f.Sensors[userID] = sensorID
}

// ResolveToken maps a token to its user.
func (f *FakeIdentity) ResolveToken(_ context.Context, token string) (string, error) {
	userID, ok := f.Tokens[token]
	if !ok {
		return "", errors.ErrUnauthorized
	}
	return userID, nil
}

// SensorForUser maps a user to their sensor.
func (f *FakeIdentity) SensorForUser(_ context.Context, userID string) (string, error) {
	sensorID, ok := f.Sensors[userID]
	if !ok {
		return "", errors.ErrSensorNotFound
	}
	return sensorID, nil
}

// FakeNotificationStore records saved notifications in memory.
type FakeNotificationStore struct {
	mu      sync.Mutex
	saved   []types.Notification
	SaveErr error
	nextID  int
}

// NewFakeNotificationStore creates an empty store.
func NewFakeNotificationStore() *FakeNotificationStore {
	return &FakeNotificationStore{}
}

// Save records the notification and assigns a sequential id.
func (f *FakeNotificationStore) Save(_ context.Context, n *types.Notification) error {
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if n.ID == "" {
		n.ID = "n-" + strconv.Itoa(f.nextID)
	}
	f.saved = append(f.saved, *n)
	return nil
}

// List returns the saved notifications for one sensor.
func (f *FakeNotificationStore) List(_ context.Context, sensorID string) ([]types.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Notification
	for _, n := range f.saved {
		if n.SensorID == sensorID {
			out = append(out, n)
		}
	}
	return out, nil
}

// Saved returns every recorded notification.
func (f *FakeNotificationStore) Saved() []types.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Notification(nil), f.saved...)
}

// CaptureSink records every delivered payload per sensor.
type CaptureSink struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

// NewCaptureSink creates an empty sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{payloads: make(map[string][][]byte)}
}

// Deliver records the payload.
func (c *CaptureSink) Deliver(sensorID string, message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[sensorID] = append(c.payloads[sensorID], append([]byte(nil), message...))
}

// Delivered returns the payloads recorded for one sensor.
func (c *CaptureSink) Delivered(sensorID string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.payloads[sensorID]...)
}

// ManualClock is a settable time source for cooldown tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts the clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
