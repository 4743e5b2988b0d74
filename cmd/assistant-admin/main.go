// ABOUTME: Entry point for assistant-admin, the admin web client for AI assistants
// ABOUTME: Serves the web UI and offers terminal subcommands over the same controller

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/server"
	"github.com/alphasales/assistant-admin/internal/telemetry"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                _     _              _                 _           _
  __ _ ___ ___(_)___| |_ __ _ _ __ | |_      __ _  __| |_ __ ___ (_)_ __
 / _' / __/ __| / __| __/ _' | '_ \| __|____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| \__ \__ \ \__ \ || (_| | | | | ||_____| (_| | (_| | | | | | | | | | |
 \__,_|___/___/_|___/\__\__,_|_| |_|\__|     \__,_|\__,_|_| |_| |_|_|_| |_|
`

// getConfigPath returns the path to the config file.
// Priority: ASSISTANT_ADMIN_CONFIG env var > XDG_CONFIG_HOME/assistant-admin/config.yaml > ~/.config/assistant-admin/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ASSISTANT_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "assistant-admin", "config.yaml")
}

// getDataPath returns the path to the data directory.
// Priority: XDG_DATA_HOME/assistant-admin > ~/.local/share/assistant-admin
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "assistant-admin")
}

// loadConfig reads the config file, or builds the config from the
// environment alone when there is no file. Without a file the session
// database lives in the data directory.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		if _, ok := os.LookupEnv(config.EnvPrefix + "STORAGE_PATH"); !ok {
			_ = os.Setenv(config.EnvPrefix+"STORAGE_PATH", filepath.Join(getDataPath(), "sessions.db"))
		}
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func printUsage() {
	fmt.Println("Usage: assistant-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                       Start the admin web UI")
	fmt.Println("  init                        Create a new config file interactively")
	fmt.Println("  health                      Check server readiness")
	fmt.Println()
	fmt.Println("  login [EMAIL]               Sign in (password from prompt or ASSISTANT_ADMIN_PASSWORD)")
	fmt.Println("  logout                      Sign out")
	fmt.Println("  whoami                      Show the signed-in user")
	fmt.Println("  assistants [QUERY]          List assistants (--page N)")
	fmt.Println("  reports ID [QUERY]          List the reports of an assistant (--page N)")
	fmt.Println("  show ID                     Show an assistant")
	fmt.Println("  edit ID                     Update an assistant")
	fmt.Println("                                --name NAME --prompt TEXT | --prompt-file FILE")
	fmt.Println("                                --columns a,b,c")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A .env file next to the binary is optional
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(bufio.NewReader(os.Stdin), os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "login", "logout", "whoami", "assistants", "reports", "show", "edit":
		err = runScreenCommand(ctx, cmd, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog := setupLogger(cfg.Logging, os.Stdout)
	defer closeLog()

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s\n", cfg.Storage.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Variant:   %s\n", cfg.WebAdmin.Variant)

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		green.Print("    ▶ ")
		fmt.Printf("Tracing:   %s\n", cfg.Telemetry.OTLPEndpoint)
	}

	fmt.Println()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	logger.Info("starting assistant-admin",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"storage", cfg.Storage.Driver,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	// Make HTTP request to ready endpoint with context
	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runInit(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "assistant-admin configuration setup")
	fmt.Fprintln(out, "===================================")
	fmt.Fprintln(out)

	defaultDBPath := filepath.Join(getDataPath(), "sessions.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", "localhost:8080")
	variant := prompt(reader, out, "Variant (multi/single)", config.VariantMulti)

	fmt.Fprintln(out, "\n--- Storage Configuration ---")
	driver := prompt(reader, out, "Storage driver (sqlite/redis/memory)", config.DriverSQLite)
	var dbPath, redisURL string
	switch driver {
	case config.DriverRedis:
		redisURL = prompt(reader, out, "Redis URL", "redis://localhost:6379/0")
	case config.DriverSQLite:
		dbPath = prompt(reader, out, "SQLite database path", defaultDBPath)
	}

	fmt.Fprintln(out, "\n--- Webhook Configuration ---")
	tokenVar := prompt(reader, out, "Environment variable holding the API token", "ALPHASALES_API_TOKEN")

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, out, "Enable Tailscale?", "no"))
	var tsHostname string
	var tsHTTPS, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, out, "Tailscale hostname", "assistant-admin")
		tsHTTPS = yes(prompt(reader, out, "Serve HTTPS with tailnet certificates?", "yes"))
		tsFunnel = yes(prompt(reader, out, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	content := starterConfig(starterOptions{
		HTTPAddr:   httpAddr,
		Variant:    variant,
		Driver:     driver,
		DBPath:     dbPath,
		RedisURL:   redisURL,
		TokenVar:   tokenVar,
		Tailscale:  tailscaleEnabled,
		TSHostname: tsHostname,
		TSHTTPS:    tsHTTPS,
		TSFunnel:   tsFunnel,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
	})

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Set %s before starting:\n", tokenVar)
	fmt.Fprintln(out, "  assistant-admin serve")

	return nil
}

type starterOptions struct {
	HTTPAddr   string
	Variant    string
	Driver     string
	DBPath     string
	RedisURL   string
	TokenVar   string
	Tailscale  bool
	TSHostname string
	TSHTTPS    bool
	TSFunnel   bool
	LogLevel   string
	LogFormat  string
}

// starterConfig renders a config file. The API token is referenced through
// an environment variable so the file never holds the secret.
func starterConfig(o starterOptions) string {
	var cfg strings.Builder
	cfg.WriteString("# assistant-admin configuration\n")
	cfg.WriteString("# Generated by assistant-admin init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", o.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", o.Driver))
	if o.DBPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: %q\n", o.DBPath))
	}
	if o.RedisURL != "" {
		cfg.WriteString(fmt.Sprintf("  redis_url: %q\n", o.RedisURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("webhook:\n")
	cfg.WriteString(fmt.Sprintf("  api_token: \"${%s}\"\n", o.TokenVar))
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  ttl: \"24h\"\n")
	cfg.WriteString("  controller_idle: \"2h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("webadmin:\n")
	cfg.WriteString(fmt.Sprintf("  variant: %q\n", o.Variant))
	cfg.WriteString("  save_redirect_delay: \"2s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", o.Tailscale))
	if o.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", o.TSHostname))
		cfg.WriteString(fmt.Sprintf("  https: %t\n", o.TSHTTPS))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", o.TSFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", o.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", o.LogFormat))

	return cfg.String()
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}
