package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval       = 5 * time.Minute
	DefaultBufferSize     = 100
	DefaultTermsSize      = 500
	DefaultEventField     = "event.name"
	DefaultTimestampField = "@timestamp"
	DefaultTimeout        = 30 * time.Second
)

// Config is the top-level reporter configuration.
type Config struct {
	Reporter ReporterConfig `yaml:"reporter"`
}

// ReporterConfig holds all reporter-side settings.
type ReporterConfig struct {
	// ServerEndpoint is the base URL of trafficpulse-server. When empty the
	// reporter logs reports instead of shipping them.
	ServerEndpoint string `yaml:"server_endpoint"`

	// ServerAuth configures how the reporter authenticates to the server.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// Interval controls how often each report is recomputed.
	Interval time.Duration `yaml:"interval"`

	// BufferSize is the maximum number of reports held in memory when the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Backend is the search cluster queried for raw aggregations.
	Backend BackendConfig `yaml:"backend"`

	// Reports is the list of reports computed every interval.
	Reports []ReportConfig `yaml:"reports"`
}

// BackendConfig describes the search backend.
type BackendConfig struct {
	// Endpoint is the base URL of the search cluster, e.g. http://localhost:9200.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds a single search request.
	Timeout time.Duration `yaml:"timeout"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// ReportConfig describes one scored report: which index and field to
// aggregate on and how to score the result.
type ReportConfig struct {
	// Name identifies the report on the server; must be unique.
	Name string `yaml:"name"`

	// Index is the index or index pattern searched, e.g. "events-*".
	Index string `yaml:"index"`

	// EventField is the keyword field the terms aggregation groups by.
	EventField string `yaml:"event_field"`

	// TimestampField is the date field the baseline/current filters apply to.
	TimestampField string `yaml:"timestamp_field"`

	// Size caps the number of terms buckets returned.
	Size int `yaml:"size"`

	// Scoring is passed to traffic.NewProcessingConfig.
	Scoring traffic.Settings `yaml:"scoring"`
}

// UnmarshalYAML pre-populates per-report defaults so that list entries get
// the same treatment as top-level fields.
func (r *ReportConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ReportConfig
	tmp := plain{
		EventField:     DefaultEventField,
		TimestampField: DefaultTimestampField,
		Size:           DefaultTermsSize,
		Scoring:        traffic.DefaultSettings(),
	}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*r = ReportConfig(tmp)
	return nil
}

// Processing validates the scoring settings of the report.
func (r ReportConfig) Processing() (traffic.ProcessingConfig, error) {
	return traffic.NewProcessingConfig(r.Scoring)
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header carrying the API key (Mode == "apikey").
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Reporter: ReporterConfig{
			Interval:   DefaultInterval,
			BufferSize: DefaultBufferSize,
			Backend: BackendConfig{
				Timeout: DefaultTimeout,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	rc := cfg.Reporter
	if rc.Interval <= 0 {
		return fmt.Errorf("reporter.interval must be positive")
	}
	if rc.BufferSize <= 0 {
		return fmt.Errorf("reporter.buffer_size must be positive")
	}
	if err := validateAuth("reporter.server_auth", rc.ServerAuth); err != nil {
		return err
	}
	if len(rc.Reports) > 0 && rc.Backend.Endpoint == "" {
		return fmt.Errorf("reporter.backend.endpoint is required when reports are configured")
	}
	if err := validateAuth("reporter.backend.auth", rc.Backend.Auth); err != nil {
		return err
	}

	seen := make(map[string]bool, len(rc.Reports))
	for i, r := range rc.Reports {
		if r.Name == "" {
			return fmt.Errorf("reports[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("reports[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true
		if r.Index == "" {
			return fmt.Errorf("reports[%d] %q: index is required", i, r.Name)
		}
		if r.Size <= 0 {
			return fmt.Errorf("reports[%d] %q: size must be positive", i, r.Name)
		}
		if _, err := r.Processing(); err != nil {
			return fmt.Errorf("reports[%d] %q: scoring: %w", i, r.Name, err)
		}
	}
	return nil
}

func validateAuth(path string, a AuthConfig) error {
	switch a.Mode {
	case "mtls", "bearer", "basic", "none", "":
	case "apikey":
		if a.Header == "" {
			return fmt.Errorf("%s: header is required for apikey mode", path)
		}
	default:
		return fmt.Errorf("%s: unknown auth mode %q", path, a.Mode)
	}
	return nil
}
