// ABOUTME: Configuration loading and parsing for assistant-admin
// ABOUTME: Supports YAML/TOML files, ${VAR} expansion, env overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// ASSISTANT_ADMIN_WEBHOOK_API_TOKEN.
const EnvPrefix = "ASSISTANT_ADMIN_"

// Product variants
const (
	VariantMulti  = "multi"  // assistant list + per-assistant report view
	VariantSingle = "single" // one assistant dashboard with its lead table
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Default webhook endpoints of the production backend.
const (
	DefaultLoginURL           = "https://webhook.alphasales.com.br/webhook/f4894c1d-d870-4bb9-94a5-d00f9eda8bdc"
	DefaultAssistantsURL      = "https://webhook.alphasales.com.br/webhook/f83a9059-f33e-48ef-90bf-85af70ea1290"
	DefaultAssistantDetailURL = "https://webhook.alphasales.com.br/webhook/05e0054b-3ea1-4813-a045-dda2ee0511c7"
	DefaultAssistantUpdateURL = "https://webhook.alphasales.com.br/webhook/cb1af28b-370b-46db-93b6-7f0eccff353f"
	DefaultColumnsURL         = "https://webhook.alphasales.com.br/webhook/a795088a-975d-4d7a-8618-335303c3899c"
	DefaultReportsURL         = "https://webhook.alphasales.com.br/webhook/1c2cbee1-246d-4eff-88a8-11d58f03c524"
)

// Config represents the complete assistant-admin configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server" envPrefix:"SERVER_"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale" envPrefix:"TAILSCALE_"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage" envPrefix:"STORAGE_"`
	Webhook   WebhookConfig   `yaml:"webhook" toml:"webhook" envPrefix:"WEBHOOK_"`
	Session   SessionConfig   `yaml:"session" toml:"session" envPrefix:"SESSION_"`
	WebAdmin  WebAdminConfig  `yaml:"webadmin" toml:"webadmin" envPrefix:"WEBADMIN_"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" envPrefix:"LOGGING_"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig holds the HTTP listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" env:"HTTP_ADDR"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Hostname  string `yaml:"hostname" toml:"hostname" env:"HOSTNAME"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key" env:"AUTH_KEY"`
	StateDir  string `yaml:"state_dir" toml:"state_dir" env:"STATE_DIR"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral" env:"EPHEMERAL"`
	HTTPS     bool   `yaml:"https" toml:"https" env:"HTTPS"`    // serve :443 with tailnet certs
	Funnel    bool   `yaml:"funnel" toml:"funnel" env:"FUNNEL"` // public Funnel (implies HTTPS)
}

// StorageConfig selects the key/value backend holding browser sessions
type StorageConfig struct {
	Driver      string `yaml:"driver" toml:"driver" env:"DRIVER"`
	Path        string `yaml:"path" toml:"path" env:"PATH"`
	RedisURL    string `yaml:"redis_url" toml:"redis_url" env:"REDIS_URL"`
	RedisPrefix string `yaml:"redis_prefix" toml:"redis_prefix" env:"REDIS_PREFIX"`
}

// WebhookConfig holds the backend endpoints and the static API token
type WebhookConfig struct {
	APIToken  string          `yaml:"api_token" toml:"api_token" env:"API_TOKEN"`
	Endpoints EndpointsConfig `yaml:"endpoints" toml:"endpoints" envPrefix:"ENDPOINTS_"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
}

// EndpointsConfig lists one absolute URL per backend operation
type EndpointsConfig struct {
	Login           string `yaml:"login" toml:"login" env:"LOGIN"`
	Assistants      string `yaml:"assistants" toml:"assistants" env:"ASSISTANTS"`
	AssistantDetail string `yaml:"assistant_detail" toml:"assistant_detail" env:"ASSISTANT_DETAIL"`
	AssistantUpdate string `yaml:"assistant_update" toml:"assistant_update" env:"ASSISTANT_UPDATE"`
	Columns         string `yaml:"columns" toml:"columns" env:"COLUMNS"`
	Reports         string `yaml:"reports" toml:"reports" env:"REPORTS"`
}

// SessionConfig holds session lifetimes
type SessionConfig struct {
	TTL            time.Duration `yaml:"-" toml:"-"`
	ControllerIdle time.Duration `yaml:"-" toml:"-"`

	TTLRaw            string `yaml:"ttl" toml:"ttl" env:"TTL"`
	ControllerIdleRaw string `yaml:"controller_idle" toml:"controller_idle" env:"CONTROLLER_IDLE"`
}

// WebAdminConfig holds web UI configuration
type WebAdminConfig struct {
	// BaseURL is the external URL of the UI, used for secure cookie detection
	BaseURL              string `yaml:"base_url" toml:"base_url" env:"BASE_URL"`
	Variant              string `yaml:"variant" toml:"variant" env:"VARIANT"`
	DisableColumnEditing bool   `yaml:"disable_column_editing" toml:"disable_column_editing" env:"DISABLE_COLUMN_EDITING"`

	SaveRedirectDelay    time.Duration `yaml:"-" toml:"-"`
	SaveRedirectDelayRaw string        `yaml:"save_redirect_delay" toml:"save_redirect_delay" env:"SAVE_REDIRECT_DELAY"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level" env:"LEVEL"`
	Format     string `yaml:"format" toml:"format" env:"FORMAT"`
	File       string `yaml:"file" toml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty endpoint disables tracing.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" toml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure     bool   `yaml:"insecure" toml:"insecure" env:"INSECURE"`
}

// ColumnsEnabled reports whether the edit form exposes the output-column list.
func (w WebAdminConfig) ColumnsEnabled() bool {
	return !w.DisableColumnEditing
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// ASSISTANT_ADMIN_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(&cfg)
}

// FromEnv builds a Config from defaults and ASSISTANT_ADMIN_* variables only.
// Used when no config file exists.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" && !cfg.Tailscale.Enabled {
		cfg.Server.HTTPAddr = "localhost:8080"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.RedisPrefix == "" {
		cfg.Storage.RedisPrefix = "assistant-admin"
	}

	ep := &cfg.Webhook.Endpoints
	setDefault(&ep.Login, DefaultLoginURL)
	setDefault(&ep.Assistants, DefaultAssistantsURL)
	setDefault(&ep.AssistantDetail, DefaultAssistantDetailURL)
	setDefault(&ep.AssistantUpdate, DefaultAssistantUpdateURL)
	setDefault(&ep.Columns, DefaultColumnsURL)
	setDefault(&ep.Reports, DefaultReportsURL)

	setDefault(&cfg.Webhook.TimeoutRaw, "30s")
	setDefault(&cfg.Session.TTLRaw, "24h")
	setDefault(&cfg.Session.ControllerIdleRaw, "2h")
	setDefault(&cfg.WebAdmin.Variant, VariantMulti)
	setDefault(&cfg.WebAdmin.SaveRedirectDelayRaw, "2s")
	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "text")
	setDefault(&cfg.Telemetry.ServiceName, "assistant-admin")

	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 10
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 30
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Webhook.APIToken == "" {
		return fmt.Errorf("webhook.api_token is required")
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, redis, memory", c.Storage.Driver)
	}

	switch c.WebAdmin.Variant {
	case VariantMulti, VariantSingle:
	default:
		return fmt.Errorf("webadmin.variant %q is not one of multi, single", c.WebAdmin.Variant)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"webhook.timeout", cfg.Webhook.TimeoutRaw, &cfg.Webhook.Timeout},
		{"session.ttl", cfg.Session.TTLRaw, &cfg.Session.TTL},
		{"session.controller_idle", cfg.Session.ControllerIdleRaw, &cfg.Session.ControllerIdle},
		{"webadmin.save_redirect_delay", cfg.WebAdmin.SaveRedirectDelayRaw, &cfg.WebAdmin.SaveRedirectDelay},
	}

	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	if cfg.Session.TTL == 0 {
		return fmt.Errorf("session.ttl must be greater than zero")
	}

	return nil
}
