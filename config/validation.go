package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"gameservices/core"
)

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(field, value string, valid []string) string {
	if lo.Contains(valid, value) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", "))
}

// Validate validates platform configuration
func (p *PlatformConfig) Validate() error {
	var errs []string

	if msg := oneOf("backend", p.Backend, []string{BackendMemory, BackendFile, BackendRedis, BackendUnavailable}); msg != "" {
		errs = append(errs, msg)
	}

	switch p.Backend {
	case BackendFile:
		if p.FixturePath == "" {
			errs = append(errs, "fixture_path cannot be empty for the file backend")
		}
	case BackendRedis:
		if p.Redis.Addr == "" {
			errs = append(errs, "redis.addr cannot be empty")
		}
		if p.Redis.OpTimeout <= 0 {
			errs = append(errs, "redis.op_timeout must be positive")
		}
	}

	if p.Backend != BackendUnavailable && p.LocalPlayer != "" {
		if err := core.ValidateIdentifier(p.LocalPlayer); err != nil {
			errs = append(errs, fmt.Sprintf("local_player: %v", err))
		}
	}
	if p.Latency < 0 {
		errs = append(errs, "latency cannot be negative")
	}
	if p.PersistOnExit && p.FixturePath == "" {
		errs = append(errs, "persist_on_exit requires fixture_path")
	}

	return joinErrs(errs)
}

// Validate validates bridge limits
func (b *BridgeConfig) Validate() error {
	var errs []string

	if b.MaxPageSize <= 0 {
		errs = append(errs, "max_page_size must be positive")
	}
	if b.AvatarMaxSize <= 0 {
		errs = append(errs, "avatar_max_size must be positive")
	}
	if b.TickInterval <= 0 {
		errs = append(errs, "tick_interval must be positive")
	}

	return joinErrs(errs)
}

// Validate validates script configuration
func (s *ScriptConfig) Validate() error {
	var errs []string

	if s.Path == "" {
		errs = append(errs, "path cannot be empty")
	}
	if s.Timeout < 0 {
		errs = append(errs, "timeout cannot be negative")
	}

	return joinErrs(errs)
}

// Validate validates debug server configuration
func (d *DebugConfig) Validate() error {
	if !d.Enabled {
		return nil
	}

	var errs []string

	if d.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if d.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if d.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if d.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if d.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if d.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if msg := oneOf("level", l.Level, []string{"debug", "info", "warn", "error"}); msg != "" {
		errs = append(errs, msg)
	}
	if msg := oneOf("format", l.Format, []string{"json", "text"}); msg != "" {
		errs = append(errs, msg)
	}
	if msg := oneOf("output", l.Output, []string{"stdout", "stderr"}); msg != "" {
		errs = append(errs, msg)
	}

	return joinErrs(errs)
}

// Validate validates telemetry configuration
func (t *TelemetryConfig) Validate() error {
	var errs []string

	if t.OTLPEndpoint != "" && t.ExportInterval <= 0 {
		errs = append(errs, "export_interval must be positive when an endpoint is set")
	}
	if strings.TrimSpace(t.ServiceName) == "" {
		errs = append(errs, "service_name cannot be empty")
	}

	return joinErrs(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string

	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}

	return joinErrs(errs)
}

// Validate validates webhook endpoints and signal filters
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an absolute http(s) URL", i))
		}
	}
	for _, t := range w.Types {
		if !core.KnownEventType(core.EventType(t)) {
			errs = append(errs, fmt.Sprintf("unknown signal %q", t))
		}
	}
	if len(w.Endpoints) > 0 && w.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}

	return joinErrs(errs)
}

// EventTypes converts the configured filter to signal types.
func (w WebhookConfig) EventTypes() []core.EventType {
	return lo.Map(w.Types, func(t string, _ int) core.EventType { return core.EventType(t) })
}
