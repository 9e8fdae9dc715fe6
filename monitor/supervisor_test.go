package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/config"
	"github.com/AnhTuIT04/SmartHomeServer/testutil"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

type harness struct {
	store    *testutil.FakeStore
	registry *testutil.FakeRegistry
	nstore   *testutil.FakeNotificationStore
	sink     *testutil.CaptureSink
	clock    *testutil.ManualClock
	gate     *CooldownGate
	sup      *Supervisor
}

func newHarness(t *testing.T, discovery string, window time.Duration) *harness {
	t.Helper()

	h := &harness{
		store:    testutil.NewFakeStore(),
		registry: testutil.NewFakeRegistry(),
		nstore:   testutil.NewFakeNotificationStore(),
		sink:     testutil.NewCaptureSink(),
		clock:    testutil.NewManualClock(time.Now()),
		gate:     NewCooldownGate(window),
	}

	actuator := NewController(h.store, ControllerOptions{Workers: 1, QueueSize: 16}, nil)
	publisher := NewPublisher(h.nstore, h.sink, nil, nil)

	h.sup = NewSupervisor(SupervisorOptions{
		Store:     h.store,
		Registry:  h.registry,
		Bounds:    testutil.NewFakeBounds(),
		Gate:      h.gate,
		Actuator:  actuator,
		Publisher: publisher,
		Discovery: discovery,
		Clock:     h.clock.Now,
	})

	require.NoError(t, h.sup.Initialize())
	require.NoError(t, h.sup.Start(context.Background()))
	t.Cleanup(func() { _ = h.sup.Stop(2 * time.Second) })

	return h
}

func (h *harness) waitWatching(t *testing.T, sensorID string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.Watching(sensorID) },
		time.Second, 5*time.Millisecond)
}

func (h *harness) prime(t *testing.T, sensorID string) {
	t.Helper()
	h.store.PushData(sensorID, []byte(`{"temperature": 20, "humidity": 50, "light_intensity": 500}`))
}

func TestSupervisorForceBreachCorrectsAndAlerts(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, 60*time.Second)
	h.store.SetControl("s1", types.ControlState{FanMode: 1, Brightness: 50})
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	h.prime(t, "s1")
	h.store.PushData("s1", []byte(`{"temperature": 40}`)) // force upper is 35

	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 1 },
		time.Second, 5*time.Millisecond)

	n := h.nstore.Saved()[0]
	require.Len(t, n.Details, 1)
	assert.Equal(t, types.MetricTemperature, n.Details[0].Type)
	assert.Equal(t, types.SeverityForce, n.Details[0].Mode)

	require.Eventually(t, func() bool { return h.store.Control("s1").FanMode == 2 },
		time.Second, 5*time.Millisecond)

	assert.Len(t, h.sink.Delivered("s1"), 1)
}

func TestSupervisorWarnBreachAlertsWithoutCorrection(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, 60*time.Second)
	h.store.SetControl("s1", types.ControlState{FanMode: 1, Brightness: 50})
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	h.prime(t, "s1")
	h.store.PushData("s1", []byte(`{"humidity": 85}`)) // warn 80, force 90

	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 1 },
		time.Second, 5*time.Millisecond)

	n := h.nstore.Saved()[0]
	require.Len(t, n.Details, 1)
	assert.Equal(t, types.MetricHumidity, n.Details[0].Type)
	assert.Equal(t, types.SeverityWarn, n.Details[0].Mode)

	assert.Equal(t, int64(1), h.store.Control("s1").FanMode, "warn must not touch the actuator")
}

func TestSupervisorCooldownSuppressesRepeat(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, 60*time.Second)
	h.store.SetControl("s1", types.ControlState{FanMode: 1, Brightness: 50})
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	h.prime(t, "s1")
	h.store.PushData("s1", []byte(`{"temperature": 40}`))
	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 1 },
		time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.store.Control("s1").FanMode == 2 },
		time.Second, 5*time.Millisecond)

	// Same breach 5s later: computed but suppressed.
	h.clock.Advance(5 * time.Second)
	h.store.PushData("s1", []byte(`{"temperature": 41}`))

	// A different metric fires afterwards; readings for one sensor are
	// processed in order, so seeing its notification proves the
	// suppressed reading has been fully handled.
	h.store.PushData("s1", []byte(`{"humidity": 85}`))
	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 2 },
		time.Second, 5*time.Millisecond)

	for _, n := range h.nstore.Saved()[1:] {
		for _, d := range n.Details {
			assert.NotEqual(t, types.MetricTemperature, d.Type,
				"suppressed breach must not produce a notification")
		}
	}
	assert.Equal(t, int64(2), h.store.Control("s1").FanMode, "no second correction")

	// Past the window the same breach fires again.
	h.clock.Advance(60 * time.Second)
	h.store.PushData("s1", []byte(`{"temperature": 42}`))
	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 3 },
		time.Second, 5*time.Millisecond)
}

func TestSupervisorFirstChangeNeverEvaluated(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, 0)
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	// First change breaches hard, but only seeds the snapshot.
	h.store.PushData("s1", []byte(`{"temperature": 99}`))
	h.store.PushData("s1", []byte(`{"temperature": 20, "humidity": 50, "light_intensity": 500}`))
	h.store.PushData("s1", []byte(`{"humidity": 85}`))

	require.Eventually(t, func() bool { return len(h.nstore.Saved()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, types.MetricHumidity, h.nstore.Saved()[0].Details[0].Type)
}

func TestSupervisorTeardownOnRemoval(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, time.Hour)
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	// Burn the cooldown key.
	require.True(t, h.gate.Admit("s1", types.MetricTemperature, h.clock.Now()))

	h.registry.Remove("s1")
	require.Eventually(t, func() bool { return !h.sup.Watching("s1") },
		time.Second, 5*time.Millisecond)

	// Teardown released the sensor's cooldown keys.
	assert.True(t, h.gate.Admit("s1", types.MetricTemperature, h.clock.Now()))

	// Re-adding rewatches with a fresh, unprimed snapshot.
	h.registry.Add("s1")
	h.waitWatching(t, "s1")
	h.store.PushData("s1", []byte(`{"temperature": 99}`))
	h.store.PushData("s1", []byte(`{"humidity": 85}`))
	require.Eventually(t, func() bool { return len(h.nstore.Saved()) >= 1 },
		time.Second, 5*time.Millisecond)
}

func TestSupervisorDemandDiscovery(t *testing.T) {
	h := newHarness(t, config.DiscoveryDemand, time.Minute)

	assert.False(t, h.sup.Watching("s1"))

	require.NoError(t, h.sup.Acquire("s1"))
	require.NoError(t, h.sup.Acquire("s1"))
	assert.True(t, h.sup.Watching("s1"))

	h.sup.Release("s1")
	assert.True(t, h.sup.Watching("s1"), "one reference still held")

	h.sup.Release("s1")
	assert.False(t, h.sup.Watching("s1"), "last release tears down")

	// Releasing an unwatched sensor is a no-op.
	h.sup.Release("s1")
}

func TestSupervisorEagerIgnoresAcquire(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, time.Minute)

	require.NoError(t, h.sup.Acquire("s1"))
	assert.False(t, h.sup.Watching("s1"), "eager discovery is registry-driven only")
}

func TestSupervisorStopIsIdempotent(t *testing.T) {
	h := newHarness(t, config.DiscoveryEager, time.Minute)
	h.registry.Add("s1")
	h.waitWatching(t, "s1")

	require.NoError(t, h.sup.Stop(2*time.Second))
	require.NoError(t, h.sup.Stop(2*time.Second))
	assert.False(t, h.sup.Watching("s1"))
}
