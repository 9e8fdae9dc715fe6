package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AnhTuIT04/SmartHomeServer/component"
	"github.com/AnhTuIT04/SmartHomeServer/testutil"
)

func newTestPipeline(t *testing.T, store *testutil.FakeStore) *pipeline {
	t.Helper()
	return newPipeline(context.Background(), "sensor-1", pipelineDeps{
		store:     store,
		bounds:    testutil.NewFakeBounds(),
		gate:      NewCooldownGate(0),
		actuator:  NewController(store, ControllerOptions{Workers: 1, QueueSize: 1}, nil),
		publisher: NewPublisher(testutil.NewFakeNotificationStore(), nil, nil, nil),
		clock:     time.Now,
		logger:    component.NewLogger("monitor", "sensor-1", nil, nil),
	})
}

// A supervisor shutdown can reach a pipeline between its publication
// and its start call. Stopping at that point must neither panic nor
// hang once start runs.
func TestPipeline_StopRacingStart(t *testing.T) {
	store := testutil.NewFakeStore()
	p := newTestPipeline(t, store)

	stopped := make(chan struct{})
	go func() {
		p.stop()
		close(stopped)
	}()

	require.NoError(t, p.start())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after start")
	}
}

func TestPipeline_CancelArmedAtConstruction(t *testing.T) {
	p := newTestPipeline(t, testutil.NewFakeStore())
	require.NotNil(t, p.cancel)
	require.NotNil(t, p.ctx)

	// Cancelling before start must be observable by the watch context.
	p.cancel()
	select {
	case <-p.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline context not cancelled")
	}
}

func TestPipeline_StopAfterCleanStart(t *testing.T) {
	store := testutil.NewFakeStore()
	p := newTestPipeline(t, store)

	require.NoError(t, p.start())
	done := make(chan struct{})
	go func() {
		p.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not drain the watch goroutine")
	}
}
