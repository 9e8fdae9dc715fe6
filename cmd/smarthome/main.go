// Package main implements the entry point for the smart home backend.
// It wires the NATS-backed stores, the threshold monitoring pipelines,
// the session registry, and the websocket gateway into one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/AnhTuIT04/SmartHomeServer/config"
	"github.com/AnhTuIT04/SmartHomeServer/gateway/realtime"
	"github.com/AnhTuIT04/SmartHomeServer/health"
	"github.com/AnhTuIT04/SmartHomeServer/metric"
	"github.com/AnhTuIT04/SmartHomeServer/monitor"
	"github.com/AnhTuIT04/SmartHomeServer/natsclient"
	"github.com/AnhTuIT04/SmartHomeServer/session"
	"github.com/AnhTuIT04/SmartHomeServer/storage/notificationstore"
	"github.com/AnhTuIT04/SmartHomeServer/telemetry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "smarthome"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting smart home backend",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	if cliCfg.DumpConfigPath != "" {
		if err := cfg.SaveToFile(cliCfg.DumpConfigPath); err != nil {
			return fmt.Errorf("dump config: %w", err)
		}
		slog.Info("Wrote effective configuration", "path", cliCfg.DumpConfigPath)
		return nil
	}

	ctx := context.Background()
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	metricsRegistry := metric.NewMetricsRegistry()
	coreMetrics := metricsRegistry.CoreMetrics()

	natsClient, err := connectNATS(signalCtx, cfg, coreMetrics)
	if err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	buckets, err := createBuckets(signalCtx, natsClient, cfg.Buckets)
	if err != nil {
		return fmt.Errorf("create buckets: %w", err)
	}

	app, err := wireApplication(cfg, natsClient, buckets, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}

	return app.runUntilSignalled(signalCtx, cliCfg.ShutdownTimeout, cfg)
}

// buckets holds the KV handles underneath every store.
type buckets struct {
	data          jetstream.KeyValue
	control       jetstream.KeyValue
	sensors       jetstream.KeyValue
	users         jetstream.KeyValue
	tokens        jetstream.KeyValue
	notifications jetstream.KeyValue
}

// application is the fully wired component graph.
type application struct {
	supervisor *monitor.Supervisor
	sessions   *session.Registry
	gateway    *realtime.Server
	metricsSrv *metric.Server
	healthPoll *health.Poller
	logger     *slog.Logger
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No config file given, using built-in defaults")
		cfg := config.Defaults()
		applyHostIdentity(cfg)
		return cfg, nil
	}

	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	applyHostIdentity(cfg)
	return cfg, nil
}

// applyHostIdentity fills platform.id from the hostname when the
// config leaves it empty.
func applyHostIdentity(cfg *config.Config) {
	if cfg.Platform.ID != "" {
		return
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	cfg.Platform.ID = host
}

func connectNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithMetrics(metrics),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	return client, nil
}

func createBuckets(ctx context.Context, client *natsclient.Client, cfg config.BucketsConfig) (buckets, error) {
	create := func(b config.BucketConfig) (jetstream.KeyValue, error) {
		history := b.History
		if history < 1 {
			history = 1
		}
		return client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:   b.Name,
			History:  uint8(history),
			TTL:      b.TTL,
			MaxBytes: b.MaxBytes,
			Replicas: b.Replicas,
		})
	}

	var (
		out buckets
		err error
	)
	if out.data, err = create(cfg.Data); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Data.Name, err)
	}
	if out.control, err = create(cfg.Control); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Control.Name, err)
	}
	if out.sensors, err = create(cfg.Sensors); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Sensors.Name, err)
	}
	if out.users, err = create(cfg.Users); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Users.Name, err)
	}
	if out.tokens, err = create(cfg.Tokens); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Tokens.Name, err)
	}
	if out.notifications, err = create(cfg.Notifications); err != nil {
		return buckets{}, fmt.Errorf("bucket %s: %w", cfg.Notifications.Name, err)
	}
	return out, nil
}

// watchProxy breaks the construction cycle between the session
// registry and the watch supervisor: the registry needs a watcher at
// construction time, the supervisor needs the alert publisher, and the
// publisher fans out through the registry. The proxy is handed to the
// registry first and bound to the supervisor once it exists.
type watchProxy struct {
	mu sync.RWMutex
	w  session.Watcher
}

func (p *watchProxy) bind(w session.Watcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

func (p *watchProxy) Acquire(sensorID string) error {
	p.mu.RLock()
	w := p.w
	p.mu.RUnlock()
	if w == nil {
		return nil
	}
	return w.Acquire(sensorID)
}

func (p *watchProxy) Release(sensorID string) {
	p.mu.RLock()
	w := p.w
	p.mu.RUnlock()
	if w != nil {
		w.Release(sensorID)
	}
}

func wireApplication(
	cfg *config.Config,
	natsClient *natsclient.Client,
	kv buckets,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*application, error) {
	coreMetrics := metricsRegistry.CoreMetrics()

	store := telemetry.NewKVStore(natsClient, kv.data, kv.control, logger)
	sensorRegistry := telemetry.NewKVRegistry(natsClient, kv.sensors, logger)
	identity := telemetry.NewKVIdentityStore(natsClient, kv.tokens, kv.users)
	notifications := notificationstore.New(natsClient, kv.notifications, logger)

	gate := monitor.NewCooldownGate(cfg.Monitor.CooldownWindow)
	actuator := monitor.NewController(store, monitor.ControllerOptions{
		Workers:   cfg.Monitor.ActuatorWorkers,
		QueueSize: cfg.Monitor.QueueSize,
		Registry:  metricsRegistry,
	}, logger)

	// Demand discovery ties pipeline lifetime to session refcounts;
	// eager discovery ignores session traffic entirely.
	var proxy *watchProxy
	var watcher session.Watcher
	if cfg.Monitor.Discovery == config.DiscoveryDemand {
		proxy = &watchProxy{}
		watcher = proxy
	}

	sessions := session.NewRegistry(identity, store, watcher, logger, coreMetrics)
	publisher := monitor.NewPublisher(notifications, sessions, logger, coreMetrics)

	supervisor := monitor.NewSupervisor(monitor.SupervisorOptions{
		Store:     store,
		Registry:  sensorRegistry,
		Bounds:    sensorRegistry,
		Gate:      gate,
		Actuator:  actuator,
		Publisher: publisher,
		Discovery: cfg.Monitor.Discovery,
		Conn:      natsClient.GetConnection(),
		Logger:    logger,
		Metrics:   coreMetrics,
	})
	if proxy != nil {
		proxy.bind(supervisor)
	}

	gateway := realtime.NewServer(realtime.Config{
		Port:            cfg.Realtime.Port,
		Path:            cfg.Realtime.Path,
		QueueSize:       cfg.Realtime.SendBufferSize,
		Sessions:        sessions,
		Store:           store,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	})

	var metricsSrv *metric.Server
	var healthPoll *health.Poller
	if cfg.Metrics.Enabled {
		metricsSrv = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)

		healthPoll = health.NewPoller(appName, 0)
		healthPoll.Register(supervisor.Name(), supervisor)
		healthPoll.Register(gateway.Name(), gateway)
		healthPoll.RegisterCheck("nats", func() health.Status {
			if natsClient.IsHealthy() {
				return health.Healthy("nats", "connected")
			}
			return health.Degraded("nats", "status: "+natsClient.Status().String())
		})
		metricsSrv.AttachHealth(healthPoll.Handler())
	}

	return &application{
		supervisor: supervisor,
		sessions:   sessions,
		gateway:    gateway,
		metricsSrv: metricsSrv,
		healthPoll: healthPoll,
		logger:     logger,
	}, nil
}

func (a *application) runUntilSignalled(ctx context.Context, shutdownTimeout time.Duration, cfg *config.Config) error {
	if err := a.supervisor.Initialize(); err != nil {
		return fmt.Errorf("initialize supervisor: %w", err)
	}
	if err := a.supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	if err := a.gateway.Initialize(); err != nil {
		return fmt.Errorf("initialize gateway: %w", err)
	}
	if err := a.gateway.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	if a.metricsSrv != nil {
		a.healthPoll.Start(ctx)
		go func() {
			if err := a.metricsSrv.Start(); err != nil {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
		a.logger.Info("Metrics endpoint up", "address", a.metricsSrv.Address())
	}

	a.logger.Info("Smart home backend started",
		"discovery", cfg.Monitor.Discovery,
		"websocket", a.gateway.Address())

	<-ctx.Done()
	a.logger.Info("Received shutdown signal")

	return a.shutdown(shutdownTimeout)
}

// shutdown stops components in reverse start order: refuse new
// sessions, close the gateway, stop the pipelines, then the metrics
// endpoint.
func (a *application) shutdown(timeout time.Duration) error {
	a.sessions.Drain()

	var firstErr error
	if err := a.gateway.Stop(timeout); err != nil {
		a.logger.Error("gateway stop failed", "error", err)
		firstErr = err
	}
	if err := a.supervisor.Stop(timeout); err != nil {
		a.logger.Error("supervisor stop failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if a.metricsSrv != nil {
		a.healthPoll.Stop()
		if err := a.metricsSrv.Stop(); err != nil {
			a.logger.Error("metrics server stop failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.logger.Info("Smart home backend shutdown complete")
	return firstErr
}
