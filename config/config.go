package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gameservices/adapters/redis"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Platform backends understood by the host.
const (
	BackendMemory      = "memory"
	BackendFile        = "file"
	BackendRedis       = "redis"
	BackendUnavailable = "unavailable"
)

// Config holds the complete host configuration
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" env:"GAMESERVICES_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"GAMESERVICES_PROFILE"`

	// Platform selects and configures the services backend
	Platform PlatformConfig `json:"platform" yaml:"platform"`

	// Bridge tunes the scripting bridge itself
	Bridge BridgeConfig `json:"bridge" yaml:"bridge"`

	Script ScriptConfig `json:"script" yaml:"script"`

	// Debug is the optional HTTP inspection surface
	Debug DebugConfig `json:"debug" yaml:"debug"`

	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
}

// PlatformConfig holds platform backend configuration
type PlatformConfig struct {
	Backend string `json:"backend" yaml:"backend" env:"GAMESERVICES_PLATFORM_BACKEND"`
	// Name overrides the reported service name.
	Name            string `json:"name" yaml:"name" env:"GAMESERVICES_PLATFORM_NAME"`
	LocalPlayer     string `json:"local_player" yaml:"local_player" env:"GAMESERVICES_PLATFORM_LOCAL_PLAYER"`
	LocalPlayerName string `json:"local_player_name" yaml:"local_player_name" env:"GAMESERVICES_PLATFORM_LOCAL_PLAYER_NAME"`
	// FixturePath seeds the memory backend and is the file backend's store.
	FixturePath string `json:"fixture_path" yaml:"fixture_path" env:"GAMESERVICES_PLATFORM_FIXTURE_PATH"`
	// Latency simulates platform round trips on the memory backend.
	Latency       time.Duration `json:"latency" yaml:"latency" env:"GAMESERVICES_PLATFORM_LATENCY"`
	PersistOnExit bool          `json:"persist_on_exit" yaml:"persist_on_exit" env:"GAMESERVICES_PLATFORM_PERSIST_ON_EXIT"`
	Redis         redis.Config  `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// BridgeConfig holds scripting bridge limits
type BridgeConfig struct {
	MaxPageSize   int           `json:"max_page_size" yaml:"max_page_size" env:"GAMESERVICES_BRIDGE_MAX_PAGE_SIZE"`
	AvatarMaxSize int           `json:"avatar_max_size" yaml:"avatar_max_size" env:"GAMESERVICES_BRIDGE_AVATAR_MAX_SIZE"`
	TickInterval  time.Duration `json:"tick_interval" yaml:"tick_interval" env:"GAMESERVICES_BRIDGE_TICK_INTERVAL"`
}

// ScriptConfig points at the game script the host runs
type ScriptConfig struct {
	Path string `json:"path" yaml:"path" env:"GAMESERVICES_SCRIPT_PATH"`
	// Timeout stops the host if the script has not quit by then. Zero runs until a signal.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"GAMESERVICES_SCRIPT_TIMEOUT"`
}

// DebugConfig holds debug HTTP server configuration
type DebugConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled" env:"GAMESERVICES_DEBUG_ENABLED"`
	Address           string        `json:"address" yaml:"address" env:"GAMESERVICES_DEBUG_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"GAMESERVICES_DEBUG_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" env:"GAMESERVICES_DEBUG_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"GAMESERVICES_DEBUG_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"GAMESERVICES_DEBUG_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"GAMESERVICES_DEBUG_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"GAMESERVICES_DEBUG_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"GAMESERVICES_DEBUG_SHUTDOWN_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"GAMESERVICES_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"GAMESERVICES_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"GAMESERVICES_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"GAMESERVICES_LOG_ATTRIBUTES"`
}

// TelemetryConfig configures the OTLP metrics exporter. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint   string        `json:"otlp_endpoint" yaml:"otlp_endpoint" env:"GAMESERVICES_OTLP_ENDPOINT"`
	ServiceName    string        `json:"service_name" yaml:"service_name" env:"GAMESERVICES_OTEL_SERVICE_NAME"`
	ExportInterval time.Duration `json:"export_interval" yaml:"export_interval" env:"GAMESERVICES_OTEL_EXPORT_INTERVAL"`
}

// SecurityConfig holds debug surface access control
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"GAMESERVICES_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"GAMESERVICES_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" env:"GAMESERVICES_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" yaml:"burst_size" env:"GAMESERVICES_SECURITY_RATE_LIMIT_BURST"`
}

// WebhookConfig forwards emitted signals to HTTP endpoints
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" yaml:"endpoints,omitempty" env:"GAMESERVICES_WEBHOOK_ENDPOINTS"`
	Types     []string      `json:"types,omitempty" yaml:"types,omitempty" env:"GAMESERVICES_WEBHOOK_TYPES"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"GAMESERVICES_WEBHOOK_TIMEOUT"`
}

// Load reads an optional .env file, applies environment variables over the defaults and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(filepath.Clean(path)) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Platform: PlatformConfig{
			Backend:         BackendMemory,
			LocalPlayer:     "local",
			LocalPlayerName: "Player One",
			FixturePath:     "./examples/fixtures/world.json",
			Redis:           redis.DefaultConfig(),
		},
		Bridge: BridgeConfig{
			MaxPageSize:   100,
			AvatarMaxSize: 256,
			TickInterval:  16 * time.Millisecond,
		},
		Script: ScriptConfig{
			Path: "./examples/scripts/leaderboard.js",
		},
		Debug: DebugConfig{
			Enabled:           false,
			Address:           "127.0.0.1:8080",
			PathPrefix:        "/debug",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "gameservices-host",
			ExportInterval: 30 * time.Second,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 120,
				BurstSize:         20,
			},
			APIKeys: []string{},
		},
		Webhook: WebhookConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		fn   func() error
	}{
		{"platform", c.Platform.Validate},
		{"bridge", c.Bridge.Validate},
		{"script", c.Script.Validate},
		{"debug", c.Debug.Validate},
		{"logging", c.Logging.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"security", c.Security.Validate},
		{"webhook", c.Webhook.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Platform.Redis.Password != "" {
		cfg.Platform.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		redacted := make([]string, len(cfg.Security.APIKeys))
		for i := range redacted {
			redacted[i] = "[REDACTED]"
		}
		cfg.Security.APIKeys = redacted
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
