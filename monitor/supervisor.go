package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AnhTuIT04/SmartHomeServer/component"
	"github.com/AnhTuIT04/SmartHomeServer/config"
	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
)

// Supervisor keeps exactly one evaluation pipeline alive per watched
// sensor. Two discovery policies, chosen at construction and never
// mixed:
//
//   - eager: every sensor present in the registry is watched, driven by
//     the registry's membership feed. Alerting runs with no client
//     connected, which is what keeps persisted notifications flowing
//     for later retrieval.
//   - demand: sensors are watched only while at least one session holds
//     a reference via Acquire/Release. The last release tears the
//     pipeline down and drops the sensor's cooldown keys.
//
// Per sensor the lifecycle is unwatched -> watching -> unwatched, and a
// sensor can be rewatched after teardown with a fresh snapshot.
type Supervisor struct {
	store     telemetry.Store
	registry  telemetry.Registry
	bounds    telemetry.BoundsStore
	gate      *CooldownGate
	actuator  *Controller
	publisher *Publisher
	discovery string
	clock     func() time.Time
	nc        *nats.Conn
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu        sync.Mutex
	state     component.State
	pipelines map[string]*watchedSensor
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type watchedSensor struct {
	pipeline *pipeline
	refs     int
}

// SupervisorOptions carries the supervisor's collaborators.
type SupervisorOptions struct {
	Store     telemetry.Store
	Registry  telemetry.Registry
	Bounds    telemetry.BoundsStore
	Gate      *CooldownGate
	Actuator  *Controller
	Publisher *Publisher

	// Discovery selects the policy, config.DiscoveryEager or
	// config.DiscoveryDemand. Defaults to eager.
	Discovery string

	// Clock overrides the time source for cooldown admission. Tests
	// inject a manual clock; production leaves it nil.
	Clock func() time.Time

	// Conn is used for per-sensor log publishing. May be nil.
	Conn    *nats.Conn
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// NewSupervisor creates a supervisor in the created state.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	discovery := opts.Discovery
	if discovery == "" {
		discovery = config.DiscoveryEager
	}

	return &Supervisor{
		store:     opts.Store,
		registry:  opts.Registry,
		bounds:    opts.Bounds,
		gate:      opts.Gate,
		actuator:  opts.Actuator,
		publisher: opts.Publisher,
		discovery: discovery,
		clock:     clock,
		nc:        opts.Conn,
		logger:    logger.With("component", "supervisor"),
		metrics:   opts.Metrics,
		state:     component.StateCreated,
		pipelines: make(map[string]*watchedSensor),
	}
}

// Name returns the component name.
func (s *Supervisor) Name() string { return "sensor-watch-supervisor" }

// State returns the current lifecycle state.
func (s *Supervisor) State() component.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize validates collaborators.
func (s *Supervisor) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != component.StateCreated {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Supervisor", "Initialize", "already initialized")
	}
	if s.store == nil || s.bounds == nil || s.gate == nil || s.actuator == nil || s.publisher == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Supervisor", "Initialize", "missing collaborator")
	}
	if s.discovery == config.DiscoveryEager && s.registry == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Supervisor", "Initialize", "eager discovery requires a registry")
	}

	s.state = component.StateInitialized
	return nil
}

// Start launches the correction workers and, under eager discovery, the
// registry membership watcher.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != component.StateInitialized {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Supervisor", "Start",
			fmt.Sprintf("cannot start from state %s", s.state))
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state = component.StateRunning
	s.mu.Unlock()

	if err := s.actuator.Start(s.ctx); err != nil {
		s.mu.Lock()
		s.state = component.StateFailed
		s.mu.Unlock()
		return errors.Wrap(err, "Supervisor", "Start", "start actuator workers")
	}

	if s.discovery == config.DiscoveryEager {
		events, err := s.registry.WatchSensors(s.ctx)
		if err != nil {
			s.mu.Lock()
			s.state = component.StateFailed
			s.mu.Unlock()
			return errors.Wrap(err, "Supervisor", "Start", "watch sensor registry")
		}

		s.wg.Add(1)
		go s.discover(events)
	}

	s.logger.Info("supervisor started", "discovery", s.discovery)
	return nil
}

// Stop tears down every pipeline and drains the correction workers.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != component.StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = component.StateStopped
	cancel := s.cancel
	sensors := make([]string, 0, len(s.pipelines))
	for id := range s.pipelines {
		sensors = append(sensors, id)
	}
	s.mu.Unlock()

	cancel()
	for _, id := range sensors {
		s.teardown(id)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Supervisor", "Stop", "discovery loop did not drain")
	}

	if err := s.actuator.Stop(timeout); err != nil {
		return errors.Wrap(err, "Supervisor", "Stop", "stop actuator workers")
	}

	s.logger.Info("supervisor stopped")
	return nil
}

// Health reports the number of live pipelines.
func (s *Supervisor) Health() component.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return component.HealthStatus{
		Healthy: s.state == component.StateRunning,
		State:   s.state.String(),
		Details: map[string]string{
			"discovery": s.discovery,
			"pipelines": fmt.Sprintf("%d", len(s.pipelines)),
		},
		Checked: time.Now(),
	}
}

// Acquire registers interest in a sensor. Under demand discovery the
// first acquisition starts the pipeline; under eager discovery this is
// a no-op because the registry feed owns the watch set.
func (s *Supervisor) Acquire(sensorID string) error {
	if s.discovery != config.DiscoveryDemand {
		return nil
	}
	return s.watch(sensorID, true)
}

// Release drops one reference to a sensor. Under demand discovery the
// last release tears the pipeline down.
func (s *Supervisor) Release(sensorID string) {
	if s.discovery != config.DiscoveryDemand {
		return
	}

	s.mu.Lock()
	ws, ok := s.pipelines[sensorID]
	if !ok {
		s.mu.Unlock()
		return
	}
	ws.refs--
	last := ws.refs <= 0
	s.mu.Unlock()

	if last {
		s.teardown(sensorID)
	}
}

// Watching reports whether the sensor currently has a live pipeline.
func (s *Supervisor) Watching(sensorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pipelines[sensorID]
	return ok
}

func (s *Supervisor) discover(events <-chan telemetry.SensorEvent) {
	defer s.wg.Done()

	for ev := range events {
		if ev.Removed {
			s.teardown(ev.SensorID)
			continue
		}
		if err := s.watch(ev.SensorID, false); err != nil {
			s.logger.Error("sensor watch failed",
				"sensor_id", ev.SensorID, "error", err)
		}
	}
}

// watch starts a pipeline for the sensor if none is live. refCounted
// acquisitions bump the reference so demand teardown fires only on the
// last release.
func (s *Supervisor) watch(sensorID string, refCounted bool) error {
	s.mu.Lock()
	if s.state != component.StateRunning {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Supervisor", "watch", "supervisor not running")
	}
	if ws, ok := s.pipelines[sensorID]; ok {
		if refCounted {
			ws.refs++
		}
		s.mu.Unlock()
		return nil
	}

	p := newPipeline(s.ctx, sensorID, pipelineDeps{
		store:     s.store,
		bounds:    s.bounds,
		gate:      s.gate,
		actuator:  s.actuator,
		publisher: s.publisher,
		clock:     s.clock,
		logger:    component.NewLogger("monitor", sensorID, s.nc, s.logger),
		metrics:   s.metrics,
	})
	ws := &watchedSensor{pipeline: p}
	if refCounted {
		ws.refs = 1
	}
	s.pipelines[sensorID] = ws
	s.mu.Unlock()

	if err := p.start(); err != nil {
		s.mu.Lock()
		delete(s.pipelines, sensorID)
		s.mu.Unlock()
		return errors.WrapTransient(err, "Supervisor", "watch", "start pipeline")
	}

	if s.metrics != nil {
		s.metrics.SensorsWatched.Inc()
	}
	return nil
}

// teardown stops the sensor's pipeline and releases its cooldown keys.
// Idempotent: a sensor with no live pipeline is a no-op.
func (s *Supervisor) teardown(sensorID string) {
	s.mu.Lock()
	ws, ok := s.pipelines[sensorID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pipelines, sensorID)
	s.mu.Unlock()

	ws.pipeline.stop()
	s.gate.ReleaseSensor(sensorID)
	if s.metrics != nil {
		s.metrics.SensorsWatched.Dec()
	}
}
