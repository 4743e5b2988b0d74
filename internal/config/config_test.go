// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML/TOML loading, env var expansion, env overrides, defaults and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

storage:
  driver: "sqlite"
  path: "./test.db"

webhook:
  api_token: "token-123"
  timeout: "10s"
  endpoints:
    login: "http://backend/login"
    reports: "http://backend/reports"

session:
  ttl: "12h"

webadmin:
  variant: "single"
  save_redirect_delay: "3s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Storage.Path != "./test.db" {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, "./test.db")
	}
	if cfg.Webhook.APIToken != "token-123" {
		t.Errorf("Webhook.APIToken = %q, want %q", cfg.Webhook.APIToken, "token-123")
	}
	if cfg.Webhook.Timeout != 10*time.Second {
		t.Errorf("Webhook.Timeout = %v, want %v", cfg.Webhook.Timeout, 10*time.Second)
	}
	if cfg.Webhook.Endpoints.Login != "http://backend/login" {
		t.Errorf("Endpoints.Login = %q, want %q", cfg.Webhook.Endpoints.Login, "http://backend/login")
	}
	if cfg.Webhook.Endpoints.Reports != "http://backend/reports" {
		t.Errorf("Endpoints.Reports = %q, want %q", cfg.Webhook.Endpoints.Reports, "http://backend/reports")
	}
	// Endpoints not in the file fall back to production defaults
	if cfg.Webhook.Endpoints.Columns != DefaultColumnsURL {
		t.Errorf("Endpoints.Columns = %q, want default %q", cfg.Webhook.Endpoints.Columns, DefaultColumnsURL)
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("Session.TTL = %v, want %v", cfg.Session.TTL, 12*time.Hour)
	}
	if cfg.WebAdmin.Variant != VariantSingle {
		t.Errorf("WebAdmin.Variant = %q, want %q", cfg.WebAdmin.Variant, VariantSingle)
	}
	if cfg.WebAdmin.SaveRedirectDelay != 3*time.Second {
		t.Errorf("WebAdmin.SaveRedirectDelay = %v, want %v", cfg.WebAdmin.SaveRedirectDelay, 3*time.Second)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
storage:
  path: "./test.db"
webhook:
  api_token: "token"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:8080")
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverSQLite)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Session.TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.WebAdmin.SaveRedirectDelay != 2*time.Second {
		t.Errorf("WebAdmin.SaveRedirectDelay = %v, want 2s", cfg.WebAdmin.SaveRedirectDelay)
	}
	if cfg.Webhook.Timeout != 30*time.Second {
		t.Errorf("Webhook.Timeout = %v, want 30s", cfg.Webhook.Timeout)
	}
	if cfg.WebAdmin.Variant != VariantMulti {
		t.Errorf("WebAdmin.Variant = %q, want %q", cfg.WebAdmin.Variant, VariantMulti)
	}
	if !cfg.WebAdmin.ColumnsEnabled() {
		t.Error("WebAdmin.ColumnsEnabled() = false, want true by default")
	}
	if cfg.Webhook.Endpoints.Login != DefaultLoginURL {
		t.Errorf("Endpoints.Login = %q, want default", cfg.Webhook.Endpoints.Login)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ALPHASALES_TOKEN", "token-from-env")

	configPath := writeConfig(t, "config.yaml", `
storage:
  path: "./test.db"
webhook:
  api_token: "${TEST_ALPHASALES_TOKEN}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Webhook.APIToken != "token-from-env" {
		t.Errorf("Webhook.APIToken = %q, want %q", cfg.Webhook.APIToken, "token-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVarFailsValidation(t *testing.T) {
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, "config.yaml", `
storage:
  path: "./test.db"
webhook:
  api_token: "${UNSET_VAR_FOR_TEST}"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for empty api token, got nil")
	}
	if !strings.Contains(err.Error(), "webhook.api_token") {
		t.Errorf("error = %q, want mention of webhook.api_token", err.Error())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_API_TOKEN", "override-token")
	t.Setenv("ASSISTANT_ADMIN_SERVER_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_REPORTS", "http://override/reports")
	t.Setenv("ASSISTANT_ADMIN_SESSION_TTL", "1h")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"
storage:
  path: "./test.db"
webhook:
  api_token: "file-token"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Webhook.APIToken != "override-token" {
		t.Errorf("Webhook.APIToken = %q, want %q", cfg.Webhook.APIToken, "override-token")
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9999")
	}
	if cfg.Webhook.Endpoints.Reports != "http://override/reports" {
		t.Errorf("Endpoints.Reports = %q, want override", cfg.Webhook.Endpoints.Reports)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("Session.TTL = %v, want 1h", cfg.Session.TTL)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "0.0.0.0:7070"

[storage]
driver = "memory"

[webhook]
api_token = "toml-token"

[webhook.endpoints]
assistants = "http://backend/assistants"

[webadmin]
variant = "single"
disable_column_editing = true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:7070" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:7070")
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverMemory)
	}
	if cfg.Webhook.APIToken != "toml-token" {
		t.Errorf("Webhook.APIToken = %q, want %q", cfg.Webhook.APIToken, "toml-token")
	}
	if cfg.Webhook.Endpoints.Assistants != "http://backend/assistants" {
		t.Errorf("Endpoints.Assistants = %q, want override", cfg.Webhook.Endpoints.Assistants)
	}
	if cfg.WebAdmin.ColumnsEnabled() {
		t.Error("WebAdmin.ColumnsEnabled() = true, want false")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_API_TOKEN", "env-only")
	t.Setenv("ASSISTANT_ADMIN_STORAGE_DRIVER", "memory")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Webhook.APIToken != "env-only" {
		t.Errorf("Webhook.APIToken = %q, want %q", cfg.Webhook.APIToken, "env-only")
	}
}

func TestLoad_DurationParsingErrors(t *testing.T) {
	tests := []struct {
		name    string
		snippet string
		wantErr string
	}{
		{"invalid timeout", "webhook:\n  api_token: t\n  timeout: \"soon\"\n", "webhook.timeout"},
		{"invalid ttl", "webhook:\n  api_token: t\nsession:\n  ttl: \"1 day\"\n", "session.ttl"},
		{"zero ttl", "webhook:\n  api_token: t\nsession:\n  ttl: \"0s\"\n", "session.ttl"},
		{"negative delay", "webhook:\n  api_token: t\nwebadmin:\n  save_redirect_delay: \"-1s\"\n", "save_redirect_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "config.yaml", "storage:\n  path: ./test.db\n"+tt.snippet)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{HTTPAddr: "localhost:8080"},
			Storage:  StorageConfig{Driver: DriverSQLite, Path: "db"},
			Webhook:  WebhookConfig{APIToken: "t"},
			WebAdmin: WebAdminConfig{Variant: VariantMulti},
			Logging:  LoggingConfig{Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"tailscale replaces http addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = "assistant-admin"
		}, ""},
		{"missing token", func(c *Config) { c.Webhook.APIToken = "" }, "webhook.api_token"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"redis without url", func(c *Config) { c.Storage.Driver = DriverRedis }, "storage.redis_url"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"unknown variant", func(c *Config) { c.WebAdmin.Variant = "kiosk" }, "webadmin.variant"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}
