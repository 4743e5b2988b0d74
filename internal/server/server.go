// ABOUTME: Server composition root wiring store, webhook client, controllers and web UI
// ABOUTME: Serves HTTP over TCP or Tailscale with health endpoints and graceful shutdown

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/screen"
	"github.com/alphasales/assistant-admin/internal/session"
	"github.com/alphasales/assistant-admin/internal/store"
	"github.com/alphasales/assistant-admin/internal/webhook"
	"github.com/alphasales/assistant-admin/internal/webui"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

const readyTimeout = 2 * time.Second

// Server runs the admin web UI.
type Server struct {
	config      *config.Config
	store       store.KV
	client      *webhook.Client
	registry    *screen.Registry
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// OpenStore opens the key/value backend selected by cfg.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		s, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("initializing redis store: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		s, err := store.NewSQLiteStore(store.MemoryPath)
		if err != nil {
			return nil, fmt.Errorf("initializing memory store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, "":
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewClient builds the webhook client from cfg and logs what is known about
// the API token.
func NewClient(cfg config.WebhookConfig, logger *slog.Logger) *webhook.Client {
	ep := cfg.Endpoints
	client := webhook.New(webhook.Config{
		Endpoints: webhook.Endpoints{
			Login:           ep.Login,
			Assistants:      ep.Assistants,
			AssistantDetail: ep.AssistantDetail,
			AssistantUpdate: ep.AssistantUpdate,
			Columns:         ep.Columns,
			Reports:         ep.Reports,
		},
		Token:   cfg.APIToken,
		Timeout: cfg.Timeout,
	})

	info := webhook.InspectToken(cfg.APIToken)
	switch {
	case !info.JWT:
		logger.Debug("api token is opaque")
	case info.Expired(time.Now()):
		logger.Warn("api token has expired; webhook calls will likely fail",
			"issuer", info.Issuer,
			"expired_at", info.ExpiresAt,
		)
	default:
		logger.Info("api token loaded",
			"issuer", info.Issuer,
			"subject", info.Subject,
			"audience", info.Audience,
			"expires_at", info.ExpiresAt,
		)
	}
	return client
}

// determineBaseURL resolves the external URL from config or the deployment mode.
func determineBaseURL(cfg *config.Config) string {
	if cfg.WebAdmin.BaseURL != "" {
		return cfg.WebAdmin.BaseURL
	}
	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}
	if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
		return "https://" + cfg.Tailscale.Hostname
	}
	return "http://" + cfg.Tailscale.Hostname
}

// ControllerOptions derives the screen controller options from cfg.
func ControllerOptions(cfg *config.Config) screen.Options {
	return screen.Options{
		Variant:           cfg.WebAdmin.Variant,
		ColumnsEnabled:    cfg.WebAdmin.ColumnsEnabled(),
		SaveRedirectDelay: cfg.WebAdmin.SaveRedirectDelay,
	}
}

// New creates a Server. The store is opened here and closed by Shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	kv, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, kv, logger), nil
}

// NewWithStore creates a Server on an already open store.
func NewWithStore(cfg *config.Config, kv store.KV, logger *slog.Logger) *Server {
	client := NewClient(cfg.Webhook, logger)

	opts := ControllerOptions(cfg)
	registry := screen.NewRegistry(cfg.Session.ControllerIdle, func(browserID string) *screen.Controller {
		return screen.NewController(client, session.NewStore(kv, browserID, cfg.Session.TTL), opts)
	})

	s := &Server{
		config:   cfg,
		store:    kv,
		client:   client,
		registry: registry,
		logger:   logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	baseURL := determineBaseURL(cfg)
	ui := webui.New(registry, webui.Config{
		BaseURL:           baseURL,
		SaveRedirectDelay: cfg.WebAdmin.SaveRedirectDelay,
	})
	ui.RegisterRoutes(mux)
	logger.Info("admin web UI enabled", "base_url", baseURL, "variant", opts.Variant, "columns", opts.ColumnsEnabled)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(mux, "assistant-admin"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Client returns the webhook client the controllers use.
func (s *Server) Client() *webhook.Client {
	return s.client
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting server", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves until ctx is cancelled or the HTTP server fails, then shuts
// down. Returns nil on a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already done.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "assistant-admin", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or :443 with
// HTTPS or Funnel.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.createTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (s *Server) createTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, cancels every controller and releases
// the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	s.registry.Close()

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the session store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("session store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d active browsers)", s.registry.Len())
}
