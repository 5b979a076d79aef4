package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	t.Setenv("NAVIS_AUTH_SECRET", testSecret)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "navis.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 12, cfg.Zones.SamplePoints)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RateLimit, 0.001)
	assert.Equal(t, []string{"br"}, cfg.Geocode.CountryCodes)
	assert.Equal(t, "https://router.project-osrm.org", cfg.Routing.BaseURL)
	assert.Equal(t, "driving", cfg.Routing.Profile)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Navy.Model)
	assert.Equal(t, 2, cfg.SOS.HoldSecs)
	assert.Equal(t, 3, cfg.SOS.RearmSecs)
	assert.Equal(t, "sos.alerts", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, testSecret, cfg.Auth.Secret)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/navis
log:
  level: debug
  format: console
server:
  port: 9090
kafka:
  brokers: ["localhost:9092"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/navis", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	// Defaults still apply for unset values
	assert.Equal(t, "driving", cfg.Routing.Profile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
sos:
  hold_secs: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("NAVIS_LOG_LEVEL", "warn")
	t.Setenv("NAVIS_SOS_HOLD_SECS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 4, cfg.SOS.HoldSecs)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("NAVIS_SERVER_PORT", "8081")
	t.Setenv("NAVIS_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NAVIS_STORE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [port"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 3000
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "navis.db"
	cfg.Auth.Secret = testSecret
	cfg.Auth.TokenTTLHours = 24
	return cfg
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())

	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "invalid server port")

	cfg = validDefaults()
	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "store.database_url is required")

	cfg = validDefaults()
	cfg.Auth.TokenTTLHours = 0
	assert.ErrorContains(t, cfg.Validate(), "token_ttl_hours")

	cfg = validDefaults()
	cfg.Auth.Secret = ""
	assert.ErrorContains(t, cfg.Validate(), "auth.secret")
	cfg.Auth.Secret = "short"
	assert.ErrorContains(t, cfg.Validate(), "auth.secret")
}

func TestLoadRequiresSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NAVIS_AUTH_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
