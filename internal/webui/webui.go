// ABOUTME: Browser UI for the assistant admin: login, assistant list, edit form and reports
// ABOUTME: Each browser is identified by a cookie and driven by its own screen controller

package webui

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphasales/assistant-admin/internal/dedupe"
	"github.com/alphasales/assistant-admin/internal/editor"
	"github.com/alphasales/assistant-admin/internal/screen"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

const (
	// BrowserCookieName identifies the browser. Its value is the session
	// namespace and the controller registry key.
	BrowserCookieName = "aa_browser"
	// CSRFCookieName holds the double-submit CSRF token
	CSRFCookieName = "aa_csrf"

	browserCookieMaxAge = 365 * 24 * time.Hour

	// submitWindow is how long a save token is remembered
	submitWindow = time.Minute
)

// Context keys
type contextKey string

const (
	controllerContextKey contextKey = "controller"
	csrfContextKey       contextKey = "csrf"
)

// errMoved is returned from a render callback when the controller is no
// longer on the screen the handler renders.
var errMoved = errors.New("screen moved")

// Config holds web UI configuration
type Config struct {
	// BaseURL is the external URL; an https URL marks cookies Secure
	BaseURL string
	// SaveRedirectDelay is how long the edit page waits before
	// refreshing after a successful save
	SaveRedirectDelay time.Duration
}

// UI serves the browser interface.
type UI struct {
	registry    *screen.Registry
	config      Config
	pages       pages
	submissions *dedupe.Cache
	logger      *slog.Logger
}

// New creates the UI on top of a controller registry.
func New(registry *screen.Registry, cfg Config) *UI {
	if cfg.SaveRedirectDelay <= 0 {
		cfg.SaveRedirectDelay = 2 * time.Second
	}
	return &UI{
		registry:    registry,
		config:      cfg,
		pages:       parsePages(),
		submissions: dedupe.New(submitWindow),
		logger:      slog.Default().With("component", "webui"),
	}
}

// RegisterRoutes adds the UI routes to the mux.
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.withController(u.handleRoot))
	mux.HandleFunc("GET /login", u.withController(u.handleLoginPage))
	mux.HandleFunc("POST /login", u.withController(u.handleLogin))
	mux.HandleFunc("POST /logout", u.withController(u.requireCSRF(u.handleLogout)))
	mux.HandleFunc("GET /home", u.withController(u.handleHome))
	mux.HandleFunc("POST /reload", u.withController(u.requireCSRF(u.handleReload)))
	mux.HandleFunc("POST /back", u.withController(u.requireCSRF(u.handleBack)))
	mux.HandleFunc("POST /dismiss", u.withController(u.requireCSRF(u.handleDismiss)))
	mux.HandleFunc("GET /assistants/{id}/edit", u.withController(u.handleEditPage))
	mux.HandleFunc("POST /assistants/{id}/edit", u.withController(u.requireCSRF(u.handleEdit)))
	mux.HandleFunc("GET /assistants/{id}/reports", u.withController(u.handleReports))
}

// withController resolves the browser id, makes sure a CSRF token exists,
// and hands the browser's controller to next.
func (u *UI) withController(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		browserID := u.ensureBrowserID(w, r)
		r, _ = u.ensureCSRFToken(w, r)

		ctrl := u.registry.Get(browserID)
		if err := ctrl.Start(r.Context()); err != nil {
			u.logger.Warn("failed to start controller", "browser_id", browserID, "error", err)
		}

		ctx := context.WithValue(r.Context(), controllerContextKey, ctrl)
		next(w, r.WithContext(ctx))
	}
}

// requireCSRF rejects POSTs whose form token does not match the cookie.
func (u *UI) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !u.validateCSRF(r) {
			u.logger.Warn("request with invalid CSRF token", "path", r.URL.Path)
			http.Error(w, "Requisição inválida", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// getController retrieves the browser's controller from the request context
func getController(r *http.Request) *screen.Controller {
	ctrl, _ := r.Context().Value(controllerContextKey).(*screen.Controller)
	return ctrl
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

func (u *UI) secure(r *http.Request) bool {
	return r.TLS != nil || strings.HasPrefix(u.config.BaseURL, "https://")
}

// ensureBrowserID returns the browser id from its cookie, issuing a new one
// when the cookie is missing or malformed.
func (u *UI) ensureBrowserID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(BrowserCookieName); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     BrowserCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(browserCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   u.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	// later middleware and handlers read the cookie from the request
	r.AddCookie(&http.Cookie{Name: BrowserCookieName, Value: id})
	return id
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (u *UI) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		u.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // fails validation
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   u.secure(r),
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie
func (u *UI) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// screenPath is the URL showing s.
func screenPath(s screen.Screen) string {
	switch s.State {
	case screen.StateHome:
		return "/home"
	case screen.StateEditing:
		return "/assistants/" + url.PathEscape(s.AssistantID) + "/edit"
	case screen.StateViewingReport:
		return "/assistants/" + url.PathEscape(s.AssistantID) + "/reports"
	default:
		return "/login"
	}
}

// redirectCurrent sends the browser to whatever screen it is on.
func redirectCurrent(w http.ResponseWriter, r *http.Request, ctrl *screen.Controller) {
	http.Redirect(w, r, screenPath(ctrl.Snapshot().Screen), http.StatusSeeOther)
}

// handleRoot redirects to the current screen
func (u *UI) handleRoot(w http.ResponseWriter, r *http.Request) {
	redirectCurrent(w, r, getController(r))
}

// handleLoginPage renders the login page
func (u *UI) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	if ctrl.Snapshot().Screen.State != screen.StateLoggedOut {
		redirectCurrent(w, r, ctrl)
		return
	}
	u.renderLoginPage(w, loginData{CSRFToken: getCSRFToken(r)})
}

// handleLogin processes login form submission
func (u *UI) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	data := loginData{CSRFToken: getCSRFToken(r)}

	if err := r.ParseForm(); err != nil {
		data.Error = "Dados do formulário inválidos"
		u.renderLoginPage(w, data)
		return
	}

	if !u.validateCSRF(r) {
		data.Error = "Requisição inválida, tente novamente"
		u.renderLoginPage(w, data)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	data.Email = email

	if email == "" || password == "" {
		data.Error = "Informe email e senha"
		u.renderLoginPage(w, data)
		return
	}

	err := ctrl.Login(r.Context(), email, password)
	switch {
	case err == nil:
		u.logger.Info("login successful", "email", email)
		http.Redirect(w, r, "/home", http.StatusSeeOther)
	case errors.Is(err, screen.ErrInvalidTransition):
		redirectCurrent(w, r, ctrl)
	case errors.Is(err, webhook.ErrAuthenticationFailed):
		data.Error = webhook.UserMessage(err, "Credenciais inválidas")
		u.renderLoginPage(w, data)
	default:
		u.logger.Error("login failed", "email", email, "error", err)
		data.Error = webhook.UserMessage(err, "Erro ao fazer login")
		u.renderLoginPage(w, data)
	}
}

// handleLogout logs out the current user
func (u *UI) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	if err := ctrl.Logout(r.Context()); err != nil && !errors.Is(err, screen.ErrInvalidTransition) {
		u.logger.Error("logout failed", "error", err)
	}
	redirectCurrent(w, r, ctrl)
}

// handleReload starts a fresh load of the current screen
func (u *UI) handleReload(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	ctrl.Reload()
	redirectCurrent(w, r, ctrl)
}

// handleBack returns to Home
func (u *UI) handleBack(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	if err := ctrl.Back(); err != nil {
		u.logger.Debug("back ignored", "error", err)
	}
	redirectCurrent(w, r, ctrl)
}

// handleDismiss closes the alert of the current screen
func (u *UI) handleDismiss(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	ctrl.Dismiss()
	if r.Header.Get("HX-Request") == "true" {
		w.WriteHeader(http.StatusOK)
		return
	}
	redirectCurrent(w, r, ctrl)
}

// handleHome renders the assistant list or, in the single variant, the
// dashboard of the user's assistant.
func (u *UI) handleHome(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	if ctrl.Snapshot().Screen.State != screen.StateHome {
		redirectCurrent(w, r, ctrl)
		return
	}

	ctrl.Load(r.Context())
	u.navigate(r, ctrl)

	partial := r.Header.Get("HX-Request") == "true"
	var buf bytes.Buffer
	err := ctrl.Render(func(s screen.Snapshot) error {
		if s.Screen.State != screen.StateHome {
			return errMoved
		}
		return u.pages.home(&buf, u.homeData(r, s), partial)
	})
	u.finish(w, r, ctrl, &buf, err)
}

// handleEditPage opens and renders the edit form for an assistant.
func (u *UI) handleEditPage(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	id := r.PathValue("id")
	if !u.enter(ctrl, screen.StateEditing, id, ctrl.Edit) {
		redirectCurrent(w, r, ctrl)
		return
	}

	ctrl.Load(r.Context())
	u.renderEdit(w, r, ctrl, id)
}

// handleEdit applies a posted edit form. Every action posts the whole form
// so unsaved edits survive adding and removing columns.
func (u *UI) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	id := r.PathValue("id")
	snap := ctrl.Snapshot()
	if snap.Screen.State != screen.StateEditing || snap.Screen.AssistantID != id {
		redirectCurrent(w, r, ctrl)
		return
	}

	action := r.FormValue("action")
	err := ctrl.UpdateForm(func(f *editor.Form) error {
		f.Name = r.FormValue("name")
		f.Prompt = r.FormValue("prompt")
		if f.ColumnsEnabled {
			f.Columns = append([]string{}, r.Form["columns"]...)
		}

		switch action {
		case "add_column":
			f.AddColumn()
		case "remove_column":
			i, err := strconv.Atoi(r.FormValue("index"))
			if err != nil {
				i = -1
			}
			if err := f.RemoveColumn(i); err != nil {
				u.logger.Debug("remove column ignored", "index", r.FormValue("index"), "error", err)
			}
		}
		return nil
	})
	if err != nil {
		redirectCurrent(w, r, ctrl)
		return
	}

	key := submitKey(r)
	if action == "save" && key != "" && u.submissions.CheckAndMark(key) {
		u.logger.Debug("duplicate save ignored", "assistant_id", id)
		action = ""
	}

	if action == "save" {
		err := ctrl.SubmitForm(r.Context())
		switch {
		case err == nil:
			u.logger.Info("assistant updated", "assistant_id", id)
		case errors.Is(err, screen.ErrSuperseded), errors.Is(err, screen.ErrNotLoaded), errors.Is(err, screen.ErrSessionExpired):
			redirectCurrent(w, r, ctrl)
			return
		case errors.Is(err, editor.ErrValidationFailed):
			u.logger.Debug("edit form invalid", "assistant_id", id, "error", err)
			u.submissions.Forget(key)
		default:
			u.logger.Warn("assistant update failed", "assistant_id", id, "error", err)
			u.submissions.Forget(key)
		}
	}

	http.Redirect(w, r, screenPath(screen.Screen{State: screen.StateEditing, AssistantID: id}), http.StatusSeeOther)
}

// submitKey identifies a save by browser and submit_token. A save that
// failed gives its token back so the same form can be sent again. Forms
// without a token have no key and are never duplicates.
func submitKey(r *http.Request) string {
	token := r.FormValue("submit_token")
	if token == "" {
		return ""
	}
	cookie, err := r.Cookie(BrowserCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value + ":" + token
}

// handleReports renders the report cards of an assistant.
func (u *UI) handleReports(w http.ResponseWriter, r *http.Request) {
	ctrl := getController(r)
	id := r.PathValue("id")
	if !u.enter(ctrl, screen.StateViewingReport, id, ctrl.ViewReport) {
		redirectCurrent(w, r, ctrl)
		return
	}

	ctrl.Load(r.Context())
	u.navigate(r, ctrl)

	partial := r.Header.Get("HX-Request") == "true"
	var buf bytes.Buffer
	err := ctrl.Render(func(s screen.Snapshot) error {
		if s.Screen.State != screen.StateViewingReport || s.Screen.AssistantID != id {
			return errMoved
		}
		return u.pages.reports(&buf, u.reportsData(r, s), partial)
	})
	u.finish(w, r, ctrl, &buf, err)
}

// enter makes sure the controller shows state for id, calling open when
// it is still on Home. It reports false when the browser is elsewhere.
func (u *UI) enter(ctrl *screen.Controller, state screen.State, id string, open func(string) error) bool {
	s := ctrl.Snapshot().Screen
	if s.State == state && s.AssistantID == id {
		return true
	}
	if s.State != screen.StateHome {
		return false
	}
	if err := open(id); err != nil {
		u.logger.Debug("navigation refused", "state", state.String(), "assistant_id", id, "error", err)
		return false
	}
	return true
}

// navigate applies ?q= and ?page= to the current list screen.
func (u *UI) navigate(r *http.Request, ctrl *screen.Controller) {
	params := r.URL.Query()
	var query *string
	if params.Has("q") {
		q := params.Get("q")
		query = &q
	}
	page, _ := strconv.Atoi(params.Get("page"))
	if query == nil && page <= 0 {
		return
	}
	if err := ctrl.Navigate(query, page); err != nil && !errors.Is(err, screen.ErrNotLoaded) && !errors.Is(err, screen.ErrSessionExpired) {
		u.logger.Debug("navigate failed", "error", err)
	}
}

func (u *UI) renderEdit(w http.ResponseWriter, r *http.Request, ctrl *screen.Controller, id string) {
	var buf bytes.Buffer
	err := ctrl.Render(func(s screen.Snapshot) error {
		if s.Screen.State != screen.StateEditing || s.Screen.AssistantID != id {
			return errMoved
		}
		return u.pages.edit(&buf, u.editData(r, s))
	})
	u.finish(w, r, ctrl, &buf, err)
}

// finish writes a rendered page, or redirects when the screen moved while
// rendering.
func (u *UI) finish(w http.ResponseWriter, r *http.Request, ctrl *screen.Controller, buf *bytes.Buffer, err error) {
	if errors.Is(err, errMoved) {
		redirectCurrent(w, r, ctrl)
		return
	}
	if err != nil {
		u.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// renderLoginPage renders the login page
func (u *UI) renderLoginPage(w http.ResponseWriter, data loginData) {
	var buf bytes.Buffer
	if err := u.pages.login(&buf, data); err != nil {
		u.logger.Error("failed to render login page", "error", err)
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
