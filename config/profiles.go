package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the defaults for a named deployment profile with
// environment variables applied on top.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for profile %s: %w", name, err)
	}
	return cfg, nil
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch name {
	case "development":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Debug.Enabled = true

	case "testing":
		// deterministic and quiet
		cfg.Environment = EnvTesting
		cfg.Logging.Level = "warn"
		cfg.Platform.Latency = 0
		cfg.Bridge.TickInterval = time.Millisecond
		cfg.Script.Timeout = 30 * time.Second

	case "staging":
		cfg.Environment = EnvStaging
		cfg.Platform.Backend = BackendRedis
		cfg.Debug.Enabled = true
		cfg.Debug.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true

	case "production":
		cfg.Environment = EnvProduction
		cfg.Platform.Backend = BackendRedis
		cfg.Logging.Level = "info"
		cfg.Debug.Enabled = false
		cfg.Debug.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true

	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}
