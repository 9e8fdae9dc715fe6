package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Discovery mode constants
const (
	// DiscoveryEager starts a monitoring pipeline for every registered
	// sensor at boot and for each sensor registered afterwards.
	DiscoveryEager = "eager"
	// DiscoveryDemand starts a pipeline only while at least one
	// dashboard session is attached to the sensor.
	DiscoveryDemand = "demand"
)

// Config represents the complete application configuration
type Config struct {
	Platform PlatformConfig `json:"platform"`
	NATS     NATSConfig     `json:"nats"`
	Buckets  BucketsConfig  `json:"buckets"`
	Monitor  MonitorConfig  `json:"monitor"`
	Realtime RealtimeConfig `json:"realtime"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// PlatformConfig defines platform identity
type PlatformConfig struct {
	Org         string `json:"org"`                   // Organization namespace (e.g., "smarthome")
	ID          string `json:"id"`                    // Deployment identifier (e.g., "home1")
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// BucketConfig defines configuration for a single KV bucket
type BucketConfig struct {
	Name     string        `json:"name"`
	TTL      time.Duration `json:"ttl,omitempty"`       // 0 = no expiration
	History  int           `json:"history,omitempty"`   // Number of revisions to keep
	MaxBytes int64         `json:"max_bytes,omitempty"` // Size limit (0 = unlimited)
	Replicas int           `json:"replicas,omitempty"`  // Replication factor
}

// BucketsConfig names the KV buckets the platform reads and writes
type BucketsConfig struct {
	Data          BucketConfig `json:"data"`          // Latest reading per sensor
	Control       BucketConfig `json:"control"`       // Actuator control document per sensor
	Sensors       BucketConfig `json:"sensors"`       // Sensor registry
	Users         BucketConfig `json:"users"`         // User records with sensor binding
	Tokens        BucketConfig `json:"tokens"`        // Access token to user mapping
	Notifications BucketConfig `json:"notifications"` // Persisted alert notifications
}

// All returns every bucket config for iteration during bucket setup.
func (b BucketsConfig) All() []BucketConfig {
	return []BucketConfig{b.Data, b.Control, b.Sensors, b.Users, b.Tokens, b.Notifications}
}

// MonitorConfig tunes the threshold monitoring pipelines
type MonitorConfig struct {
	// CooldownWindow suppresses repeat alerts for the same sensor and
	// metric inside the window. 0 disables suppression entirely.
	CooldownWindow time.Duration `json:"cooldown_window"`
	// Discovery selects when pipelines run: "eager" or "demand".
	Discovery string `json:"discovery,omitempty"`
	// ActuatorWorkers sizes the worker pool applying corrective writes.
	ActuatorWorkers int `json:"actuator_workers,omitempty"`
	// QueueSize bounds the per-sensor reading queue.
	QueueSize int `json:"queue_size,omitempty"`
}

// RealtimeConfig configures the WebSocket gateway
type RealtimeConfig struct {
	Port           int    `json:"port,omitempty"`
	Path           string `json:"path,omitempty"`
	SendBufferSize int    `json:"send_buffer_size,omitempty"` // Per-session outbound frame buffer
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Platform.Org == "" {
		return errors.New("platform.org is required")
	}

	// Normalize org to lowercase
	c.Platform.Org = strings.ToLower(c.Platform.Org)

	// Validate org is NATS-subject compatible
	if !isValidNATSSubjectPart(c.Platform.Org) {
		return fmt.Errorf(
			"platform.org '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			c.Platform.Org,
		)
	}

	if c.Platform.ID == "" {
		return errors.New("platform.id is required")
	}

	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}

	if c.Monitor.CooldownWindow < 0 {
		return errors.New("monitor.cooldown_window cannot be negative")
	}

	switch c.Monitor.Discovery {
	case DiscoveryEager, DiscoveryDemand:
	default:
		return fmt.Errorf("monitor.discovery must be %q or %q, got %q",
			DiscoveryEager, DiscoveryDemand, c.Monitor.Discovery)
	}

	if c.Monitor.ActuatorWorkers < 1 {
		return errors.New("monitor.actuator_workers must be at least 1")
	}

	if c.Monitor.QueueSize < 1 {
		return errors.New("monitor.queue_size must be at least 1")
	}

	if c.Realtime.Port < 1 || c.Realtime.Port > 65535 {
		return fmt.Errorf("realtime.port %d out of range", c.Realtime.Port)
	}

	if !strings.HasPrefix(c.Realtime.Path, "/") {
		return fmt.Errorf("realtime.path %q must start with /", c.Realtime.Path)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Realtime.Port {
			return errors.New("metrics.port must differ from realtime.port")
		}
	}

	for _, bucket := range c.Buckets.All() {
		if bucket.Name == "" {
			return errors.New("bucket names cannot be empty")
		}
		if !isValidNATSSubjectPart(bucket.Name) {
			return fmt.Errorf("bucket name %q is not valid", bucket.Name)
		}
	}

	return nil
}

// isValidNATSSubjectPart checks if a string is valid for use in NATS subjects.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidNATSSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "SMARTHOME",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := Defaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	l.applyEnvOverrides(cfg)

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Defaults returns the built-in default configuration
func Defaults() *Config {
	return &Config{
		Platform: PlatformConfig{
			Org:         "smarthome",
			Environment: "dev",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Buckets: BucketsConfig{
			Data:          BucketConfig{Name: "data", History: 1},
			Control:       BucketConfig{Name: "control", History: 5},
			Sensors:       BucketConfig{Name: "sensors", History: 1},
			Users:         BucketConfig{Name: "users", History: 1},
			Tokens:        BucketConfig{Name: "tokens", History: 1},
			Notifications: BucketConfig{Name: "notifications", History: 1, TTL: 30 * 24 * time.Hour},
		},
		Monitor: MonitorConfig{
			CooldownWindow:  60 * time.Second,
			Discovery:       DiscoveryEager,
			ActuatorWorkers: 4,
			QueueSize:       64,
		},
		Realtime: RealtimeConfig{
			Port:           8080,
			Path:           "/ws",
			SendBufferSize: 32,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	// Use secure file reading with validation
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if nats, ok := data["nats"].(map[string]any); ok {
		if wait, ok := nats["reconnect_wait"].(string); ok {
			if d, err := time.ParseDuration(wait); err == nil {
				nats["reconnect_wait"] = d.Nanoseconds()
			}
		}
	}

	if monitor, ok := data["monitor"].(map[string]any); ok {
		if window, ok := monitor["cooldown_window"].(string); ok {
			if d, err := time.ParseDuration(window); err == nil {
				monitor["cooldown_window"] = d.Nanoseconds()
			}
		}
	}

	if buckets, ok := data["buckets"].(map[string]any); ok {
		for _, name := range []string{"data", "control", "sensors", "users", "tokens", "notifications"} {
			l.parseBucketDurations(buckets, name)
		}
	}
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// parseBucketDurations parses TTL duration for a bucket configuration
func (l *Loader) parseBucketDurations(buckets map[string]any, bucketName string) {
	if bucket, ok := buckets[bucketName].(map[string]any); ok {
		if ttl, ok := bucket["ttl"].(string); ok {
			if d, err := parseDurationWithDays(ttl); err == nil {
				bucket["ttl"] = d.Nanoseconds()
			}
		}
	}
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	// Platform overrides
	if val := os.Getenv(l.envPrefix + "_PLATFORM_ORG"); val != "" {
		cfg.Platform.Org = val
	}
	if val := os.Getenv(l.envPrefix + "_PLATFORM_ID"); val != "" {
		cfg.Platform.ID = val
	}
	if val := os.Getenv(l.envPrefix + "_ENVIRONMENT"); val != "" {
		cfg.Platform.Environment = val
	}

	// NATS overrides
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}

	// Monitor overrides
	if val := os.Getenv(l.envPrefix + "_COOLDOWN_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Monitor.CooldownWindow = d
		}
	}
	if val := os.Getenv(l.envPrefix + "_DISCOVERY"); val != "" {
		cfg.Monitor.Discovery = val
	}

	// Listener overrides
	if val := os.Getenv(l.envPrefix + "_REALTIME_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Realtime.Port = port
		}
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Use secure file writing with validation
	return safeWriteFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
