// Package config handles configuration loading for assistant-admin.
//
// # Overview
//
// Configuration is loaded from a YAML (or TOML) file with environment
// variable expansion, then overridden by ASSISTANT_ADMIN_* variables.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ASSISTANT_ADMIN_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/assistant-admin/config.yaml
//  3. ~/.config/assistant-admin/config.yaml
//
// When no file exists the configuration is built from the environment alone.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	webhook:
//	  api_token: "${ALPHASALES_API_TOKEN}"
//
// # Environment Overrides
//
// Every field can be overridden, for example:
//
//	ASSISTANT_ADMIN_WEBHOOK_API_TOKEN=...
//	ASSISTANT_ADMIN_SERVER_HTTP_ADDR=0.0.0.0:8080
//	ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_REPORTS=https://...
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	storage:
//	  driver: "sqlite"            # sqlite, redis, memory
//	  path: "~/.local/share/assistant-admin/sessions.db"
//	  redis_url: "redis://localhost:6379/0"
//
//	webhook:
//	  api_token: "${ALPHASALES_API_TOKEN}"
//	  timeout: "30s"
//	  endpoints:
//	    login: "https://webhook.../f4894c1d-..."
//	    assistants: "..."
//	    assistant_detail: "..."
//	    assistant_update: "..."
//	    columns: "..."
//	    reports: "..."
//
//	session:
//	  ttl: "24h"
//	  controller_idle: "2h"
//
//	webadmin:
//	  variant: "multi"             # multi, single
//	  disable_column_editing: false
//	  save_redirect_delay: "2s"
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//	  file: ""                     # optional rotating log file
//
//	telemetry:
//	  otlp_endpoint: ""            # empty disables tracing
//
// Endpoints default to the production webhook URLs; the API token has no
// default and is required.
package config
