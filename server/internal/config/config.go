package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition evaluated against
// every stored report.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is "<field> <op> <value>" over critical, warning, normal,
	// increased, total or min_score, e.g. "critical > 0".
	Condition string `yaml:"condition"`

	// Report restricts the rule to one report name. Empty matches all.
	Report string `yaml:"report"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort       = 50051
	DefaultHTTPPort       = 8080
	DefaultReportTTL      = 30 * time.Minute
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCacheEntries   = 1024
	DefaultStreamInterval = 5 * time.Second
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health service listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Reports controls in-memory report retention.
	Reports ReportsConfig `yaml:"reports"`

	// Cache controls the /analyze result cache.
	Cache CacheConfig `yaml:"cache"`

	// Stream controls the WebSocket broadcast.
	Stream StreamConfig `yaml:"stream"`

	// Scoring holds the defaults that POST /api/v1/analyze requests overlay.
	// Baseline boundaries are optional here; requests usually supply them.
	Scoring traffic.Settings `yaml:"scoring"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// ReportsConfig controls in-memory report retention.
type ReportsConfig struct {
	// TTL is how long a report stays live after its last update. A reporter
	// that stops shipping drops out of the API after TTL.
	TTL time.Duration `yaml:"ttl"`
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	// TTL is how long a cached analysis is reused. Zero disables the cache.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the cache; the oldest entry is dropped when full.
	MaxEntries int `yaml:"max_entries"`
}

// StreamConfig controls the WebSocket broadcast.
type StreamConfig struct {
	// Interval is how often connected clients receive the report list.
	Interval time.Duration `yaml:"interval"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Reports:  ReportsConfig{TTL: DefaultReportTTL},
			Cache:    CacheConfig{TTL: DefaultCacheTTL, MaxEntries: DefaultCacheEntries},
			Stream:   StreamConfig{Interval: DefaultStreamInterval},
			Scoring:  traffic.DefaultSettings(),
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	sc := cfg.Server
	if sc.GRPCPort <= 0 || sc.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", sc.GRPCPort)
	}
	if sc.HTTPPort <= 0 || sc.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", sc.HTTPPort)
	}
	switch sc.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", sc.Auth.Mode)
	}
	if sc.Reports.TTL <= 0 {
		return fmt.Errorf("server.reports.ttl must be positive")
	}
	if sc.Cache.TTL < 0 {
		return fmt.Errorf("server.cache.ttl must not be negative")
	}
	if sc.Cache.MaxEntries <= 0 {
		return fmt.Errorf("server.cache.max_entries must be positive")
	}
	if sc.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	// Scoring defaults are checked in full only when they are complete.
	if sc.Scoring.BaselineStart != "" && sc.Scoring.BaselineEnd != "" {
		if _, err := traffic.NewProcessingConfig(sc.Scoring); err != nil {
			return fmt.Errorf("server.scoring: %w", err)
		}
	}
	for i, r := range sc.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	return nil
}
