package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/testutil"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (f *fakeSender) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), message...))
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeWatcher struct {
	mu       sync.Mutex
	acquired []string
	released []string
}

func (f *fakeWatcher) Acquire(sensorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = append(f.acquired, sensorID)
	return nil
}

func (f *fakeWatcher) Release(sensorID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, sensorID)
}

func newTestRegistry(watcher Watcher) (*Registry, *testutil.FakeStore) {
	identity := testutil.NewFakeIdentity()
	identity.Bind("token-1", "user-1", "sensor-1")
	identity.Bind("token-2", "user-2", "sensor-1")
	identity.Bind("token-3", "user-3", "sensor-2")
	store := testutil.NewFakeStore()
	return NewRegistry(identity, store, watcher, nil, nil), store
}

func TestConnectResolvesBinding(t *testing.T) {
	r, _ := newTestRegistry(nil)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "sensor-1", s.SensorID)
	assert.Equal(t, 1, r.Count())
}

func TestConnectRejectsUnknownToken(t *testing.T) {
	r, _ := newTestRegistry(nil)

	_, err := r.Connect(context.Background(), "bogus", &fakeSender{})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Zero(t, r.Count())
}

func TestConnectRejectsUserWithoutSensor(t *testing.T) {
	identity := testutil.NewFakeIdentity()
	identity.Tokens["orphan-token"] = "orphan-user"
	r := NewRegistry(identity, testutil.NewFakeStore(), nil, nil, nil)

	_, err := r.Connect(context.Background(), "orphan-token", &fakeSender{})
	assert.ErrorIs(t, err, errors.ErrSensorNotFound)
}

func TestConnectAcquiresWatch(t *testing.T) {
	w := &fakeWatcher{}
	r, _ := newTestRegistry(w)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sensor-1"}, w.acquired)

	r.Disconnect(s.ID)
	assert.Equal(t, []string{"sensor-1"}, w.released)
	assert.Zero(t, r.Count())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	w := &fakeWatcher{}
	r, _ := newTestRegistry(w)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)

	r.Disconnect(s.ID)
	r.Disconnect(s.ID)

	assert.Len(t, w.released, 1, "double disconnect must not double release")
}

func TestDeliverFansOutToSensorSessions(t *testing.T) {
	r, _ := newTestRegistry(nil)

	a, b, c := &fakeSender{}, &fakeSender{}, &fakeSender{}
	_, err := r.Connect(context.Background(), "token-1", a)
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "token-2", b)
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "token-3", c)
	require.NoError(t, err)

	r.Deliver("sensor-1", []byte(`{"id":"n-1"}`))

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Zero(t, c.count(), "sessions on other sensors receive nothing")
}

func TestDeliverFailureIsolatesSession(t *testing.T) {
	r, _ := newTestRegistry(nil)

	healthy := &fakeSender{}
	broken := &fakeSender{err: errors.ErrSessionClosed}
	_, err := r.Connect(context.Background(), "token-1", healthy)
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "token-2", broken)
	require.NoError(t, err)

	r.Deliver("sensor-1", []byte(`{"id":"n-1"}`))

	assert.Equal(t, 1, healthy.count(), "one bad session must not block the rest")
	assert.Equal(t, 1, r.Count(), "failed session is closed")

	// The closed session is gone from follow-up deliveries.
	r.Deliver("sensor-1", []byte(`{"id":"n-2"}`))
	assert.Equal(t, 2, healthy.count())
}

func TestHandleControlCommandWrites(t *testing.T) {
	r, store := newTestRegistry(nil)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)

	fan := int64(2)
	require.NoError(t, r.HandleControlCommand(context.Background(), s.ID, types.ControlCommand{FanMode: &fan}))

	assert.Equal(t, int64(2), store.Control("sensor-1").FanMode)
}

func TestHandleControlCommandValidatesRange(t *testing.T) {
	r, store := newTestRegistry(nil)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)

	bad := int64(999)
	err = r.HandleControlCommand(context.Background(), s.ID, types.ControlCommand{Brightness: &bad})
	assert.Error(t, err)
	assert.Empty(t, store.Writes(), "out-of-range command never reaches the store")
}

func TestHandleControlCommandEmptyIsNoop(t *testing.T) {
	r, store := newTestRegistry(nil)

	s, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)

	require.NoError(t, r.HandleControlCommand(context.Background(), s.ID, types.ControlCommand{}))
	assert.Empty(t, store.Writes())
}

func TestHandleControlCommandUnknownSession(t *testing.T) {
	r, _ := newTestRegistry(nil)
	fan := int64(1)
	err := r.HandleControlCommand(context.Background(), "missing", types.ControlCommand{FanMode: &fan})
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDrainRefusesNewConnections(t *testing.T) {
	r, _ := newTestRegistry(nil)

	_, err := r.Connect(context.Background(), "token-1", &fakeSender{})
	require.NoError(t, err)

	r.Drain()
	assert.Zero(t, r.Count())

	_, err = r.Connect(context.Background(), "token-2", &fakeSender{})
	assert.ErrorIs(t, err, errors.ErrShuttingDown)
}
