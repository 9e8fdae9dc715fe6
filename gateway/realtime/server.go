package realtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnhTuIT04/SmartHomeServer/component"
	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/monitor"
	"github.com/AnhTuIT04/SmartHomeServer/session"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

const defaultQueueSize = 32

// Config holds construction parameters for the realtime gateway.
type Config struct {
	Port      int
	Path      string
	QueueSize int // per-client outbound queue capacity

	Sessions        *session.Registry
	Store           telemetry.Store
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Server is the websocket gateway. Each accepted connection becomes one
// registered session bound to the caller's sensor: the session receives
// merged telemetry/control view frames and alert frames, and may send
// device control frames back.
type Server struct {
	port      int
	path      string
	queueSize int

	sessions *session.Registry
	store    telemetry.Store
	logger   *slog.Logger
	metrics  *Metrics

	server   *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	state    component.State
	shutdown chan struct{}
	wg       sync.WaitGroup

	clientsMu sync.RWMutex
	clients   map[*client]struct{}
}

var _ component.LifecycleComponent = (*Server)(nil)
var _ component.HealthReporter = (*Server)(nil)

// NewServer creates a realtime gateway.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Server{
		port:      cfg.Port,
		path:      cfg.Path,
		queueSize: queueSize,
		sessions:  cfg.Sessions,
		store:     cfg.Store,
		logger:    logger.With("component", "realtime"),
		metrics:   newMetrics(cfg.MetricsRegistry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from a different origin than the
			// gateway; auth is the token, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		state:   component.StateCreated,
		clients: make(map[*client]struct{}),
	}
}

// Name returns the component name.
func (s *Server) Name() string { return "realtime-gateway" }

// State returns the current lifecycle state.
func (s *Server) State() component.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize validates configuration.
func (s *Server) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port < 1 || s.port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "Initialize",
			fmt.Sprintf("invalid port %d", s.port))
	}
	if s.path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "Initialize", "websocket path cannot be empty")
	}
	if s.sessions == nil || s.store == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Server", "Initialize", "missing collaborator")
	}

	s.state = component.StateInitialized
	return nil
}

// Start launches the HTTP server and the client maintenance loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == component.StateRunning {
		return nil
	}
	if s.state != component.StateInitialized {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Start",
			fmt.Sprintf("cannot start from state %s", s.state))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}
	s.shutdown = make(chan struct{})

	s.wg.Add(2)
	go s.runServer()
	go s.maintainClients(ctx)

	s.state = component.StateRunning
	s.logger.Info("realtime gateway started", "addr", s.server.Addr, "path", s.path)
	return nil
}

// Stop refuses new connections, closes every client, and waits for
// goroutines to drain.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != component.StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = component.StateStopped
	close(s.shutdown)
	server := s.server
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", "error", err)
	}

	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		s.drop(c, "server_shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Server", "Stop", "client goroutines did not drain")
	}

	s.logger.Info("realtime gateway stopped")
	return nil
}

// Health reports connected client count.
func (s *Server) Health() component.HealthStatus {
	s.clientsMu.RLock()
	clients := len(s.clients)
	s.clientsMu.RUnlock()

	return component.HealthStatus{
		Healthy: s.State() == component.StateRunning,
		State:   s.State().String(),
		Details: map[string]string{
			"clients": fmt.Sprintf("%d", clients),
		},
		Checked: time.Now(),
	}
}

// Address returns the websocket URL clients connect to.
func (s *Server) Address() string {
	return fmt.Sprintf("ws://localhost:%d%s", s.port, s.path)
}

func (s *Server) runServer() {
	defer s.wg.Done()

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("http server failed", "error", err)
		s.mu.Lock()
		s.state = component.StateFailed
		s.mu.Unlock()
	}
}

// handleWebSocket upgrades the connection, authenticates the bearer
// token from the query string, and registers the session. A refused
// handshake gets one error frame before close, never a silent drop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.errorsTotal.WithLabelValues("connection_upgrade").Inc()
		}
		return
	}

	c, err := newClient(conn, s.queueSize, s.onFrameDrop)
	if err != nil {
		_ = conn.Close()
		return
	}

	token := r.URL.Query().Get("token")
	sess, err := s.sessions.Connect(r.Context(), token, c)
	if err != nil {
		s.refuse(c, err)
		return
	}
	c.session = sess

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.connectionsTotal.Inc()
		s.metrics.clientsConnected.Set(float64(count))
	}

	s.wg.Add(3)
	go s.writeLoop(c)
	go s.viewLoop(ctx, c)
	go s.readLoop(ctx, c)
}

// refuse sends one error frame and closes the connection. No session
// was registered and no sensor watch was started.
func (s *Server) refuse(c *client, cause error) {
	msg := "Internal Error"
	switch {
	case stderrors.Is(cause, errors.ErrUnauthorized):
		msg = "Unauthorized"
	case stderrors.Is(cause, errors.ErrSensorNotFound), stderrors.Is(cause, errors.ErrUserNotFound):
		msg = "Not Found"
	case stderrors.Is(cause, errors.ErrShuttingDown):
		msg = "Shutting Down"
	}

	frame, _ := json.Marshal(errorFrame{Error: msg})
	if err := c.writeDirect(frame); err != nil {
		s.logger.Debug("error frame write failed", "error", err)
	}
	c.close()

	if s.metrics != nil {
		s.metrics.errorsTotal.WithLabelValues("handshake_refused").Inc()
	}
	s.logger.Info("connection refused", "reason", msg)
}

// writeLoop drains the client's outbound queue onto the wire.
func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case _, ok := <-c.wake:
			if !ok {
				return
			}
		}

		for {
			frames := c.outbound.ReadBatch(16)
			if len(frames) == 0 {
				break
			}
			for _, frame := range frames {
				if c.closed.Load() {
					return
				}
				if err := c.writeDirect(frame); err != nil {
					s.drop(c, "write_error")
					return
				}
				if s.metrics != nil {
					s.metrics.framesSent.WithLabelValues("outbound").Inc()
					s.metrics.bytesSent.Add(float64(len(frame)))
				}
			}
		}

		if c.closed.Load() {
			return
		}
	}
}

// viewLoop streams merged telemetry/control snapshots to the client.
// The same warm-up suppression as the monitoring pipeline applies: the
// first change after subscribing seeds the per-session view silently.
func (s *Server) viewLoop(ctx context.Context, c *client) {
	defer s.wg.Done()

	sensorID := c.session.SensorID

	dataCh, err := s.store.WatchData(ctx, sensorID)
	if err != nil {
		s.logger.Error("view telemetry watch failed", "sensor_id", sensorID, "error", err)
		s.drop(c, "watch_error")
		return
	}
	controlCh, err := s.store.WatchControl(ctx, sensorID)
	if err != nil {
		s.logger.Error("view control watch failed", "sensor_id", sensorID, "error", err)
		s.drop(c, "watch_error")
		return
	}

	agg := monitor.NewAggregator(func(r types.Reading) {
		frame, err := json.Marshal(newViewFrame(r))
		if err != nil {
			return
		}
		if err := c.Send(frame); err != nil {
			s.drop(c, "send_error")
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dataCh:
			if !ok {
				return
			}
			if !ev.Deleted {
				agg.OnChange(ev.Raw)
			}
		case ev, ok := <-controlCh:
			if !ok {
				return
			}
			if !ev.Deleted {
				agg.OnChange(ev.Raw)
			}
		}
	}
}

// readLoop consumes inbound control frames. Malformed frames and
// out-of-range fields are skipped; only a transport error ends the
// connection.
func (s *Server) readLoop(ctx context.Context, c *client) {
	defer s.wg.Done()

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			s.drop(c, disconnectReason(err))
			return
		}

		cmd := parseControlFrame(data)
		if cmd.Empty() {
			continue
		}
		if err := s.sessions.HandleControlCommand(ctx, c.session.ID, cmd); err != nil {
			s.logger.Warn("control command failed",
				"session_id", c.session.ID, "error", err)
			if s.metrics != nil {
				s.metrics.errorsTotal.WithLabelValues("control_write").Inc()
			}
		}
	}
}

// maintainClients pings clients periodically so dead connections are
// detected even when no frames flow.
func (s *Server) maintainClients(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.clientsMu.RLock()
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.clientsMu.RUnlock()

			for _, c := range clients {
				if err := c.ping(); err != nil {
					s.drop(c, "ping_failed")
				}
			}
		}
	}
}

// drop removes the client, deregisters its session, and closes the
// connection. Safe to call from any goroutine and more than once.
func (s *Server) drop(c *client, reason string) {
	s.clientsMu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	s.clientsMu.Unlock()

	c.close()
	s.sessions.Disconnect(c.session.ID)

	if present {
		if s.metrics != nil {
			s.metrics.disconnectionsTotal.WithLabelValues(reason).Inc()
			s.metrics.clientsConnected.Set(float64(count))
		}
		s.logger.Info("client dropped", "session_id", c.session.ID, "reason", reason)
	}
}

func (s *Server) onFrameDrop() {
	if s.metrics != nil {
		s.metrics.framesDropped.Inc()
	}
}

func disconnectReason(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return "client_closed"
	}
	return "read_error"
}
