// Package session tracks live client connections and their sensor
// bindings, and fans alert payloads out to every session watching a
// sensor.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

// Sender pushes one outbound message to a client. Implementations must
// be cheap to call from the alert fan-out path; the websocket gateway
// backs this with a bounded per-session queue.
type Sender interface {
	Send(message []byte) error
}

// Watcher is the supervisor surface the registry drives under
// demand discovery. Under eager discovery both calls are no-ops.
type Watcher interface {
	Acquire(sensorID string) error
	Release(sensorID string)
}

type liveSession struct {
	session types.Session
	sender  Sender
}

// Registry owns connection lifecycle and per-sensor fan-out
// membership. A session is bound to exactly one sensor at connect time
// and keeps that binding until disconnect; there is no rebinding.
type Registry struct {
	identity telemetry.IdentityStore
	store    telemetry.Store
	watcher  Watcher
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu       sync.RWMutex
	sessions map[string]*liveSession            // session id -> session
	bySensor map[string]map[string]*liveSession // sensor id -> session id -> session
	draining bool
}

// NewRegistry creates a session registry. watcher may be nil when the
// supervisor runs eagerly and needs no per-session references.
func NewRegistry(identity telemetry.IdentityStore, store telemetry.Store, watcher Watcher, logger *slog.Logger, metrics *metric.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		identity: identity,
		store:    store,
		watcher:  watcher,
		logger:   logger.With("component", "session"),
		metrics:  metrics,
		sessions: make(map[string]*liveSession),
		bySensor: make(map[string]map[string]*liveSession),
	}
}

// Connect resolves the caller's token to their bound sensor and
// registers the session. Returns errors.ErrUnauthorized for an unknown
// token and errors.ErrSensorNotFound when the user has no sensor.
func (r *Registry) Connect(ctx context.Context, token string, sender Sender) (types.Session, error) {
	r.mu.RLock()
	draining := r.draining
	r.mu.RUnlock()
	if draining {
		return types.Session{}, errors.WrapInvalid(errors.ErrShuttingDown, "Registry", "Connect", "registry draining")
	}

	userID, err := r.identity.ResolveToken(ctx, token)
	if err != nil {
		return types.Session{}, err
	}

	sensorID, err := r.identity.SensorForUser(ctx, userID)
	if err != nil {
		return types.Session{}, err
	}

	s := types.Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		SensorID:    sensorID,
		ConnectedAt: time.Now(),
	}

	if r.watcher != nil {
		if err := r.watcher.Acquire(sensorID); err != nil {
			return types.Session{}, errors.WrapTransient(err, "Registry", "Connect", "acquire sensor watch")
		}
	}

	live := &liveSession{session: s, sender: sender}

	r.mu.Lock()
	r.sessions[s.ID] = live
	if r.bySensor[sensorID] == nil {
		r.bySensor[sensorID] = make(map[string]*liveSession)
	}
	r.bySensor[sensorID][s.ID] = live
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SessionsConnected.Set(float64(count))
	}
	r.logger.Info("session connected",
		"session_id", s.ID, "user_id", userID, "sensor_id", sensorID)

	return s, nil
}

// Disconnect deregisters the session and releases its sensor
// reference. Unknown session ids are a no-op, so double disconnects
// (read-loop error plus explicit close) are safe.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	live, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	sensorID := live.session.SensorID
	if peers, ok := r.bySensor[sensorID]; ok {
		delete(peers, sessionID)
		if len(peers) == 0 {
			delete(r.bySensor, sensorID)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if r.watcher != nil {
		r.watcher.Release(sensorID)
	}
	if r.metrics != nil {
		r.metrics.SessionsConnected.Set(float64(count))
	}
	r.logger.Info("session disconnected",
		"session_id", sessionID, "sensor_id", sensorID)
}

// Deliver sends the message to every open session bound to the sensor.
// A failed send closes that one session; delivery to the rest
// continues unaffected.
func (r *Registry) Deliver(sensorID string, message []byte) {
	r.mu.RLock()
	targets := make([]*liveSession, 0, len(r.bySensor[sensorID]))
	for _, live := range r.bySensor[sensorID] {
		targets = append(targets, live)
	}
	r.mu.RUnlock()

	for _, live := range targets {
		if err := live.sender.Send(message); err != nil {
			if r.metrics != nil {
				r.metrics.DeliveryFailures.Inc()
			}
			r.logger.Warn("delivery failed, closing session",
				"session_id", live.session.ID, "error", err)
			r.Disconnect(live.session.ID)
		}
	}
}

// HandleControlCommand validates a client-issued device command and
// writes it to the control document of the session's sensor. This path
// bypasses threshold logic entirely. Empty commands are a no-op.
func (r *Registry) HandleControlCommand(ctx context.Context, sessionID string, cmd types.ControlCommand) error {
	r.mu.RLock()
	live, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return errors.WrapInvalid(errors.ErrSessionNotFound, "Registry", "HandleControlCommand", "unknown session")
	}

	if cmd.Empty() {
		return nil
	}
	if err := cmd.Validate(); err != nil {
		return errors.WrapInvalid(err, "Registry", "HandleControlCommand", "command out of range")
	}

	if err := r.store.WriteControl(ctx, live.session.SensorID, cmd); err != nil {
		return errors.WrapTransient(err, "Registry", "HandleControlCommand", "write control document")
	}
	return nil
}

// Session looks up a live session by id.
func (r *Registry) Session(sessionID string) (types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.sessions[sessionID]
	if !ok {
		return types.Session{}, false
	}
	return live.session, true
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionsFor returns the ids of the sessions bound to a sensor.
func (r *Registry) SessionsFor(sensorID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.bySensor[sensorID]))
	for id := range r.bySensor[sensorID] {
		ids = append(ids, id)
	}
	return ids
}

// Drain refuses new connections and disconnects every open session.
// Called once during shutdown.
func (r *Registry) Drain() {
	r.mu.Lock()
	r.draining = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Disconnect(id)
	}
}
