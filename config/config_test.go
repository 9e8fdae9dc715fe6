package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "smarthome", cfg.Platform.Org)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 60*time.Second, cfg.Monitor.CooldownWindow)
	assert.Equal(t, DiscoveryEager, cfg.Monitor.Discovery)
	assert.Equal(t, 4, cfg.Monitor.ActuatorWorkers)
	assert.Equal(t, 8080, cfg.Realtime.Port)
	assert.Equal(t, "/ws", cfg.Realtime.Path)
	assert.True(t, cfg.Metrics.Enabled)

	assert.Equal(t, "data", cfg.Buckets.Data.Name)
	assert.Equal(t, "notifications", cfg.Buckets.Notifications.Name)
	assert.Len(t, cfg.Buckets.All(), 6)
}

func TestValidateRequiresIdentity(t *testing.T) {
	cfg := Defaults()
	cfg.Platform.ID = "home1"
	require.NoError(t, cfg.Validate())

	cfg.Platform.ID = ""
	assert.ErrorContains(t, cfg.Validate(), "platform.id")

	cfg = Defaults()
	cfg.Platform.Org = ""
	assert.ErrorContains(t, cfg.Validate(), "platform.org")

	cfg = Defaults()
	cfg.Platform.ID = "home1"
	cfg.Platform.Org = "bad org!"
	assert.ErrorContains(t, cfg.Validate(), "not valid for NATS subjects")
}

func TestValidateMonitorSection(t *testing.T) {
	cfg := Defaults()
	cfg.Platform.ID = "home1"

	cfg.Monitor.CooldownWindow = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "cooldown_window")

	cfg = Defaults()
	cfg.Platform.ID = "home1"
	cfg.Monitor.CooldownWindow = 0 // disabled suppression is legal
	require.NoError(t, cfg.Validate())

	cfg.Monitor.Discovery = "lazy"
	assert.ErrorContains(t, cfg.Validate(), "monitor.discovery")

	cfg = Defaults()
	cfg.Platform.ID = "home1"
	cfg.Monitor.ActuatorWorkers = 0
	assert.ErrorContains(t, cfg.Validate(), "actuator_workers")
}

func TestValidatePorts(t *testing.T) {
	cfg := Defaults()
	cfg.Platform.ID = "home1"

	cfg.Realtime.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "realtime.port")

	cfg = Defaults()
	cfg.Platform.ID = "home1"
	cfg.Metrics.Port = cfg.Realtime.Port
	assert.ErrorContains(t, cfg.Validate(), "must differ")
}

func TestLoaderMergesLayers(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.json")
	require.NoError(t, os.WriteFile(base, []byte(`{
		"platform": {"id": "home1"},
		"monitor": {"cooldown_window": "2m"}
	}`), 0600))

	override := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(override, []byte(`{
		"monitor": {"discovery": "demand"},
		"realtime": {"port": 9000}
	}`), 0600))

	// Loader requires paths inside the working directory
	chdir(t, dir)

	loader := NewLoader()
	loader.AddLayer("base.json")
	loader.AddLayer("override.json")
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Base layer values survive the second layer merge
	assert.Equal(t, "home1", cfg.Platform.ID)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.CooldownWindow)
	// Override layer wins where it sets values
	assert.Equal(t, DiscoveryDemand, cfg.Monitor.Discovery)
	assert.Equal(t, 9000, cfg.Realtime.Port)
	// Untouched defaults remain
	assert.Equal(t, "/ws", cfg.Realtime.Path)
}

func TestLoaderParsesBucketTTLDays(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"platform": {"id": "home1"},
		"buckets": {"notifications": {"ttl": "14d"}}
	}`), 0600))

	chdir(t, dir)

	loader := NewLoader()
	cfg, err := loader.LoadFile("cfg.json")
	require.NoError(t, err)

	assert.Equal(t, 14*24*time.Hour, cfg.Buckets.Notifications.TTL)
	assert.Equal(t, "notifications", cfg.Buckets.Notifications.Name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMARTHOME_PLATFORM_ID", "env-home")
	t.Setenv("SMARTHOME_NATS_URL", "nats://nats:4222")
	t.Setenv("SMARTHOME_COOLDOWN_WINDOW", "90s")
	t.Setenv("SMARTHOME_DISCOVERY", "demand")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-home", cfg.Platform.ID)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, 90*time.Second, cfg.Monitor.CooldownWindow)
	assert.Equal(t, DiscoveryDemand, cfg.Monitor.Discovery)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Platform.ID = "home1"
	cfg.Monitor.CooldownWindow = 45 * time.Second
	cfg.Realtime.Port = 8099

	path := filepath.Join(t.TempDir(), "effective.json")
	require.NoError(t, cfg.SaveToFile(path))

	loader := NewLoader()
	loaded, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "home1", loaded.Platform.ID)
	assert.Equal(t, 45*time.Second, loaded.Monitor.CooldownWindow)
	assert.Equal(t, 8099, loaded.Realtime.Port)
	assert.NoError(t, loaded.Validate())
}

func TestSaveToFileRejectsNonJSONPath(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.SaveToFile(filepath.Join(t.TempDir(), "effective.yaml")))
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": {"b": [1, 2]}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": {`)))
	assert.Error(t, validateJSONDepth([]byte(`}`)))
}
