package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameservices/core"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, BackendMemory, cfg.Platform.Backend)
	assert.Equal(t, 100, cfg.Bridge.MaxPageSize)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GAMESERVICES_PLATFORM_BACKEND", "unavailable")
	t.Setenv("GAMESERVICES_BRIDGE_MAX_PAGE_SIZE", "25")
	t.Setenv("GAMESERVICES_BRIDGE_TICK_INTERVAL", "5ms")
	t.Setenv("GAMESERVICES_WEBHOOK_TYPES", "score_submitted, friends_loaded,")
	t.Setenv("GAMESERVICES_LOG_ATTRIBUTES", "region=eu,build=42")
	t.Setenv("GAMESERVICES_REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendUnavailable, cfg.Platform.Backend)
	assert.Equal(t, 25, cfg.Bridge.MaxPageSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Bridge.TickInterval)
	assert.Equal(t, []string{"score_submitted", "friends_loaded"}, cfg.Webhook.Types)
	assert.Equal(t, []core.EventType{core.EventScoreSubmitted, core.EventFriendsLoaded}, cfg.Webhook.EventTypes())
	assert.Equal(t, map[string]string{"region": "eu", "build": "42"}, cfg.Logging.Attributes)
	assert.Equal(t, 3, cfg.Platform.Redis.DB)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("GAMESERVICES_BRIDGE_TICK_INTERVAL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAMESERVICES_BRIDGE_TICK_INTERVAL")
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeTemp(t, "host.json", `{
		"environment": "testing",
		"platform": {"backend": "memory", "local_player": "p00"},
		"debug": {"address": ":9090"}
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, "p00", cfg.Platform.LocalPlayer)
	assert.Equal(t, ":9090", cfg.Debug.Address)
	// untouched sections keep defaults
	assert.Equal(t, 256, cfg.Bridge.AvatarMaxSize)
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeTemp(t, "host.yaml", `
environment: staging
platform:
  backend: redis
  redis:
    addr: cache:6379
    op_timeout: 2s
bridge:
  max_page_size: 50
  avatar_max_size: 128
  tick_interval: 10ms
webhook:
  endpoints: ["https://hooks.example.com/game"]
  types: [achievement_awarded]
  timeout: 1s
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, BackendRedis, cfg.Platform.Backend)
	assert.Equal(t, "cache:6379", cfg.Platform.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Platform.Redis.OpTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Bridge.TickInterval)
	assert.Equal(t, []string{"https://hooks.example.com/game"}, cfg.Webhook.Endpoints)
}

func TestLoadFromFile_EnvWins(t *testing.T) {
	path := writeTemp(t, "host.yml", "platform:\n  name: FromFile\n")
	t.Setenv("GAMESERVICES_PLATFORM_NAME", "FromEnv")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", cfg.Platform.Name)
}

func TestLoadFromFile_Rejects(t *testing.T) {
	_, err := LoadFromFile("")
	assert.Error(t, err)

	_, err = LoadFromFile(writeTemp(t, "host.toml", "x = 1"))
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeTemp(t, "broken.yaml", "platform: [unterminated"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeTemp(t, "invalid.json", `{"platform": {"backend": "steam"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend must be one of")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty environment", mutate: func(c *Config) { c.Environment = "" }, errMsg: "environment cannot be empty"},
		{name: "file backend without path", mutate: func(c *Config) {
			c.Platform.Backend = BackendFile
			c.Platform.FixturePath = ""
		}, errMsg: "fixture_path"},
		{name: "redis without addr", mutate: func(c *Config) {
			c.Platform.Backend = BackendRedis
			c.Platform.Redis.Addr = ""
		}, errMsg: "redis.addr"},
		{name: "bad local player", mutate: func(c *Config) { c.Platform.LocalPlayer = "has space" }, errMsg: "local_player"},
		{name: "zero page size", mutate: func(c *Config) { c.Bridge.MaxPageSize = 0 }, errMsg: "max_page_size"},
		{name: "debug server timeouts checked when enabled", mutate: func(c *Config) {
			c.Debug.Enabled = true
			c.Debug.ReadTimeout = 0
		}, errMsg: "read_timeout"},
		{name: "debug server timeouts ignored when disabled", mutate: func(c *Config) { c.Debug.ReadTimeout = 0 }},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, errMsg: "level must be one of"},
		{name: "rate limit", mutate: func(c *Config) {
			c.Security.EnableRateLimit = true
			c.Security.RateLimit.BurstSize = 0
		}, errMsg: "burst_size"},
		{name: "relative webhook", mutate: func(c *Config) { c.Webhook.Endpoints = []string{"/hooks"} }, errMsg: "endpoints[0]"},
		{name: "unknown webhook signal", mutate: func(c *Config) { c.Webhook.Types = []string{"points_added"} }, errMsg: "unknown signal"},
		{name: "telemetry interval", mutate: func(c *Config) {
			c.Telemetry.OTLPEndpoint = "http://collector:4318"
			c.Telemetry.ExportInterval = 0
		}, errMsg: "export_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_StringRedacts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Platform.Redis.Password = "hunter2"
	cfg.Security.APIKeys = []string{"k1", "k2"}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "k1")
	assert.Contains(t, out, "[REDACTED]")
	// the original is untouched
	assert.Equal(t, "hunter2", cfg.Platform.Redis.Password)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name        string
		profileName string
		expectOK    bool
		environment Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if !tt.expectOK {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.environment, cfg.Environment)
			assert.Equal(t, tt.profileName, cfg.Profile)
		})
	}
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()
	ctx := context.Background()

	t.Setenv("TEST_SECRET_KEY", "test_secret_value")

	value, err := store.Get(ctx, "TEST_SECRET_KEY")
	assert.NoError(t, err)
	assert.Equal(t, "test_secret_value", value)

	assert.Equal(t, "default", store.GetWithDefault(ctx, "NONEXISTENT_KEY", "default"))
	assert.Equal(t, "test_secret_value", store.GetWithDefault(ctx, "TEST_SECRET_KEY", "default"))

	file := writeTemp(t, "secret", "from-file\n")
	t.Setenv("TEST_SECRET_KEY_FILE", file)
	value, err = store.Get(ctx, "TEST_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("GAMESERVICES_REDIS_PASSWORD", "s3cret")
	t.Setenv("GAMESERVICES_SECURITY_API_KEYS", "a, b")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "s3cret", cfg.Platform.Redis.Password)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
}

func TestLoadSecrets_ProductionDebugNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = EnvProduction
	cfg.Debug.Enabled = true

	store := &EnvironmentSecretStore{lookup: func(string) (string, bool) { return "", false }}
	assert.Error(t, cfg.LoadSecrets(context.Background(), store))
}
