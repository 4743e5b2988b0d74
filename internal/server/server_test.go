package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/store"
	"github.com/alphasales/assistant-admin/internal/webhook/webhooktest"
	"github.com/alphasales/assistant-admin/internal/webui"
)

func testConfig(t *testing.T, b *webhooktest.Backend) *config.Config {
	t.Helper()
	ep := b.Endpoints()
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_API_TOKEN", webhooktest.Token)
	t.Setenv("ASSISTANT_ADMIN_STORAGE_DRIVER", config.DriverMemory)
	t.Setenv("ASSISTANT_ADMIN_SERVER_HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_LOGIN", ep.Login)
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_ASSISTANTS", ep.Assistants)
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_ASSISTANT_DETAIL", ep.AssistantDetail)
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_ASSISTANT_UPDATE", ep.AssistantUpdate)
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_COLUMNS", ep.Columns)
	t.Setenv("ASSISTANT_ADMIN_WEBHOOK_ENDPOINTS_REPORTS", ep.Reports)

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func TestHealth(t *testing.T) {
	b := webhooktest.New(t)
	kv := store.NewMockStore()
	s := NewWithStore(testConfig(t, b), kv, slog.Default())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ready"))

	kv.Err = errors.New("connection refused")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_LoginFlow(t *testing.T) {
	b := webhooktest.New(t)
	b.Users["maria@example.com"] = webhooktest.Login{
		Password: "segredo",
		User:     map[string]any{"id": "u1", "nome": "Maria"},
	}
	b.AddAssistant("u1", map[string]any{"id": "a1", "nome": "Vendas"}, nil, nil)

	s, err := New(context.Background(), testConfig(t, b), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	var browserID, csrf string
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case webui.BrowserCookieName:
			browserID = c.Value
		case webui.CSRFCookieName:
			csrf = c.Value
		}
	}
	require.NotEmpty(t, browserID)
	require.NotEmpty(t, csrf)

	form := url.Values{"email": {"maria@example.com"}, "password": {"segredo"}, "csrf_token": {csrf}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: webui.BrowserCookieName, Value: browserID})
	req.AddCookie(&http.Cookie{Name: webui.CSRFCookieName, Value: csrf})

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get("Location"))
	assert.Equal(t, 1, b.Count(webhooktest.PathLogin))
}

func TestRun_StopsOnCancel(t *testing.T) {
	b := webhooktest.New(t)
	s, err := New(context.Background(), testConfig(t, b), slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}

func TestRun_ListenError(t *testing.T) {
	b := webhooktest.New(t)
	cfg := testConfig(t, b)
	cfg.Server.HTTPAddr = "256.0.0.1:80"

	s := NewWithStore(cfg, store.NewMockStore(), slog.Default())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	kv, err := OpenStore(ctx, config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "ns", "k", "v"))
	require.NoError(t, kv.Close())

	kv, err = OpenStore(ctx, config.StorageConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.NoError(t, kv.Ping(ctx))
	require.NoError(t, kv.Close())

	_, err = OpenStore(ctx, config.StorageConfig{Driver: "etcd"})
	assert.Error(t, err)
}

func TestDetermineBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"explicit", config.Config{WebAdmin: config.WebAdminConfig{BaseURL: "https://admin.example.com"}}, "https://admin.example.com"},
		{"tcp", config.Config{Server: config.ServerConfig{HTTPAddr: "localhost:8080"}}, "http://localhost:8080"},
		{"tailscale http", config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "admin"}}, "http://admin"},
		{"tailscale https", config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "admin", HTTPS: true}}, "https://admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineBaseURL(&tt.cfg))
		})
	}
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := resolveTailscaleAuthKey("")
	assert.Error(t, err)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err := resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)

	key, err = resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)
}
