// ABOUTME: Configuration loading and parsing for flow-gateway.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves fields unset.
const (
	DefaultHTTPAddr        = "0.0.0.0:3000"
	DefaultPathPrefix      = "/wp-json/convers-ia/v1"
	DefaultClientID        = "default"
	DefaultRetryDelay      = 10 * time.Second
	DefaultRefreshInterval = 30 * time.Second
	DefaultCredentialDir   = "./sessions"
	DefaultDatabasePath    = "./flow-gateway.db"
)

// Config represents the complete flow-gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Sessions SessionsConfig `yaml:"sessions"`
	Flows    FlowsConfig    `yaml:"flows"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	PathPrefix string `yaml:"path_prefix"`

	// AllowedOrigins configures CORS. Empty means allow any origin, which
	// matches the embedding WordPress plugin calling from arbitrary sites.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the tenant registry database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration. An empty JWTSecret runs
// the API open.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// SessionsConfig holds messaging-session configuration.
type SessionsConfig struct {
	// CredentialDir is the root under which each tenant gets a durable
	// credential directory, reused across restarts to avoid re-pairing.
	CredentialDir string `yaml:"credential_dir"`

	// DefaultClientID is the tenant used when a request omits client_id.
	DefaultClientID string `yaml:"default_client_id"`

	// RecipientSuffix is appended to normalized phone numbers before sends.
	RecipientSuffix string `yaml:"recipient_suffix"`

	RetryDelay time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling.
	RetryDelayRaw string `yaml:"retry_delay"`
}

// FlowsConfig holds flow registry configuration. Exactly one of SourceURL
// or SourceFile must be set.
type FlowsConfig struct {
	SourceURL  string `yaml:"source_url"`
	SourceFile string `yaml:"source_file"`

	RefreshInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling.
	RefreshIntervalRaw string `yaml:"refresh_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded, and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset optional fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.PathPrefix == "" {
		c.Server.PathPrefix = DefaultPathPrefix
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Sessions.CredentialDir == "" {
		c.Sessions.CredentialDir = DefaultCredentialDir
	}
	if c.Sessions.DefaultClientID == "" {
		c.Sessions.DefaultClientID = DefaultClientID
	}
	if c.Sessions.RecipientSuffix == "" {
		c.Sessions.RecipientSuffix = "@c.us"
	}
	if c.Sessions.RetryDelay == 0 {
		c.Sessions.RetryDelay = DefaultRetryDelay
	}
	if c.Flows.RefreshInterval == 0 {
		c.Flows.RefreshInterval = DefaultRefreshInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and
// consistent. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if c.Flows.SourceURL == "" && c.Flows.SourceFile == "" {
		return fmt.Errorf("flows.source_url or flows.source_file is required")
	}
	if c.Flows.SourceURL != "" && c.Flows.SourceFile != "" {
		return fmt.Errorf("flows.source_url and flows.source_file are mutually exclusive")
	}
	if c.Sessions.RetryDelay < 0 {
		return fmt.Errorf("sessions.retry_delay must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Sessions.RetryDelayRaw != "" {
		cfg.Sessions.RetryDelay, err = time.ParseDuration(cfg.Sessions.RetryDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry_delay %q: %w", cfg.Sessions.RetryDelayRaw, err)
		}
	}

	if cfg.Flows.RefreshIntervalRaw != "" {
		cfg.Flows.RefreshInterval, err = time.ParseDuration(cfg.Flows.RefreshIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing refresh_interval %q: %w", cfg.Flows.RefreshIntervalRaw, err)
		}
	}

	return nil
}
