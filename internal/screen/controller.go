// ABOUTME: View-state machine for one browser: LoggedOut, Home, Editing, ViewingReport
// ABOUTME: Owns per-activation view models, stale-load protection and the save redirect timer

package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphasales/assistant-admin/internal/config"
	"github.com/alphasales/assistant-admin/internal/editor"
	"github.com/alphasales/assistant-admin/internal/session"
	"github.com/alphasales/assistant-admin/internal/views"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

// Errors
var (
	ErrInvalidTransition = errors.New("invalid screen transition")
	ErrSuperseded        = errors.New("screen changed while the operation was running")
	ErrNotLoaded         = errors.New("screen data not loaded")
	ErrSessionExpired    = errors.New("session expired")
)

// State identifies the active screen
type State int

const (
	StateLoggedOut State = iota
	StateHome
	StateEditing
	StateViewingReport
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateHome:
		return "home"
	case StateEditing:
		return "editing"
	case StateViewingReport:
		return "viewing_report"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Screen is the active state plus the assistant it is about, if any.
type Screen struct {
	State       State
	AssistantID string
}

// API is everything the screens fetch from the backend.
type API interface {
	views.DashboardAPI
	editor.Loader
	editor.Updater
	Authenticate(ctx context.Context, email, password string) (webhook.User, error)
}

// SessionStore persists the login of this browser.
type SessionStore interface {
	Save(ctx context.Context, user webhook.User) (session.Session, error)
	Load(ctx context.Context) (session.Session, error)
	Clear(ctx context.Context) error
}

// clock is implemented by session stores whose time source can be replaced.
// The controller checks expiry on the same clock the store stamped it with.
type clock interface {
	Clock() time.Time
}

// Options configure a Controller.
type Options struct {
	Variant           string // config.VariantMulti or config.VariantSingle
	ColumnsEnabled    bool
	SaveRedirectDelay time.Duration
}

// Alert kinds
const (
	AlertSuccess = "success"
	AlertDanger  = "danger"
	AlertWarning = "warning"
	AlertInfo    = "info"
)

// Alert is a dismissible notice shown on the current screen.
type Alert struct {
	Kind    string
	Message string
}

// Activation is one visit to a screen. Every transition starts a new one;
// work started for an old activation can no longer change the controller.
type Activation struct {
	gen    uint64
	screen Screen
	ctx    context.Context
	cancel context.CancelFunc

	loadOnce sync.Once
	model    any
	err      error
	alert    *Alert
	timer    *time.Timer
}

// Context is cancelled when the activation ends.
func (a *Activation) Context() context.Context { return a.ctx }

// Generation increases with every transition.
func (a *Activation) Generation() uint64 { return a.gen }

// Screen is the screen this activation shows.
func (a *Activation) Screen() Screen { return a.screen }

// Snapshot is a consistent view of the controller for rendering.
type Snapshot struct {
	Screen     Screen
	User       webhook.User
	LoggedIn   bool
	Generation uint64

	// Model is *views.AssistantList, *views.Dashboard, *editor.Form or
	// *views.ReportList depending on the screen. Nil until loaded.
	Model any
	Err   error
	Alert *Alert

	Variant        string
	ColumnsEnabled bool
	// RedirectPending is set while the save redirect timer runs.
	RedirectPending bool
}

// Controller is the screen state of one browser. It is safe for concurrent
// use; a browser may issue several requests at once.
type Controller struct {
	api      API
	sessions SessionStore
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	user    *webhook.User
	expires time.Time
	// staleSession is set when the user was logged out on expiry and the
	// stored entry still has to be cleared
	staleSession bool
	gen          uint64
	current      *Activation
	closed       bool
}

// NewController creates a controller in the LoggedOut state. Call Start to
// restore a saved session.
func NewController(api API, sessions SessionStore, opts Options) *Controller {
	if opts.Variant == "" {
		opts.Variant = config.VariantMulti
	}
	if opts.SaveRedirectDelay == 0 {
		opts.SaveRedirectDelay = 2 * time.Second
	}
	c := &Controller{
		api:      api,
		sessions: sessions,
		opts:     opts,
		logger:   slog.Default().With("component", "screen"),
	}
	c.mu.Lock()
	c.transitionLocked(Screen{State: StateLoggedOut})
	c.mu.Unlock()
	return c
}

// Start resolves the initial screen from the session store. The store is
// read until one call succeeds; later calls only log out a session that has
// passed its expiry.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		c.dropExpired(ctx)
		return nil
	}
	c.started = true
	c.mu.Unlock()

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			c.mu.Lock()
			c.started = false
			c.mu.Unlock()
			c.logger.Warn("failed to restore session", "error", err)
			return fmt.Errorf("restoring session: %w", err)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user != nil || c.current.screen.State != StateLoggedOut {
		return nil
	}
	user := sess.User
	c.user = &user
	c.expires = sess.Expires
	c.transitionLocked(Screen{State: StateHome})
	c.logger.Info("session restored", "user_id", user.ID)
	return nil
}

func (c *Controller) now() time.Time {
	if ck, ok := c.sessions.(clock); ok {
		return ck.Clock()
	}
	return time.Now()
}

// expireLocked moves to LoggedOut once the session has passed its expiry.
// The stored entry is cleared by the next Start or Load.
func (c *Controller) expireLocked() bool {
	if c.user == nil || c.now().Before(c.expires) {
		return false
	}
	c.logger.Info("session expired", "user_id", c.user.ID, "expires", c.expires)
	c.user = nil
	c.expires = time.Time{}
	c.staleSession = true
	c.transitionLocked(Screen{State: StateLoggedOut})
	return true
}

// dropExpired logs out an expired session and clears it from the store.
func (c *Controller) dropExpired(ctx context.Context) {
	c.mu.Lock()
	c.expireLocked()
	stale := c.staleSession
	c.staleSession = false
	c.mu.Unlock()

	if !stale {
		return
	}
	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear expired session", "error", err)
	}
}

// Login authenticates and moves to Home. On failure the controller stays
// LoggedOut and the error wraps webhook.ErrAuthenticationFailed or
// webhook.ErrRequestFailed.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.mu.Lock()
	if c.current.screen.State != StateLoggedOut {
		c.mu.Unlock()
		return fmt.Errorf("%w: login from %s", ErrInvalidTransition, c.current.screen.State)
	}
	c.started = true
	c.mu.Unlock()

	user, err := c.api.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}

	sess, err := c.sessions.Save(ctx, user)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = &user
	c.expires = sess.Expires
	c.staleSession = false
	c.transitionLocked(Screen{State: StateHome})
	c.logger.Info("user logged in", "user_id", user.ID)
	return nil
}

// Logout clears the session and moves to LoggedOut.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.current.screen.State != StateHome {
		state := c.current.screen.State
		c.mu.Unlock()
		return fmt.Errorf("%w: logout from %s", ErrInvalidTransition, state)
	}
	c.mu.Unlock()

	if err := c.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.user = nil
	c.expires = time.Time{}
	c.transitionLocked(Screen{State: StateLoggedOut})
	c.logger.Info("user logged out", "user_id", userID)
	return nil
}

// Edit opens the edit form for assistant id.
func (c *Controller) Edit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expireLocked() {
		return ErrSessionExpired
	}
	if c.current.screen.State != StateHome || id == "" {
		return fmt.Errorf("%w: edit from %s", ErrInvalidTransition, c.current.screen.State)
	}
	c.transitionLocked(Screen{State: StateEditing, AssistantID: id})
	return nil
}

// ViewReport opens the report view for assistant id. Only the multi
// variant has a report view.
func (c *Controller) ViewReport(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expireLocked() {
		return ErrSessionExpired
	}
	if c.current.screen.State != StateHome || id == "" || c.opts.Variant != config.VariantMulti {
		return fmt.Errorf("%w: view report from %s", ErrInvalidTransition, c.current.screen.State)
	}
	c.transitionLocked(Screen{State: StateViewingReport, AssistantID: id})
	return nil
}

// Back returns to Home from Editing or ViewingReport.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expireLocked() {
		return ErrSessionExpired
	}
	switch c.current.screen.State {
	case StateEditing, StateViewingReport:
		c.transitionLocked(Screen{State: StateHome})
		return nil
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, c.current.screen.State)
	}
}

// Reload starts a new activation of the current screen so its data is
// fetched again.
func (c *Controller) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expireLocked() {
		return
	}
	c.transitionLocked(c.current.screen)
}

// SaveSucceeded schedules the return to Home after the redirect delay. The
// timer belongs to the current activation: any navigation cancels it, and a
// timer that fires late does nothing.
func (c *Controller) SaveSucceeded() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.screen.State != StateEditing {
		return fmt.Errorf("%w: save succeeded outside the edit screen", ErrInvalidTransition)
	}
	c.scheduleBackLocked(c.current)
	return nil
}

func (c *Controller) scheduleBackLocked(act *Activation) {
	if act.timer != nil {
		act.timer.Stop()
	}
	act.timer = time.AfterFunc(c.opts.SaveRedirectDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.current != act {
			return
		}
		c.logger.Debug("save redirect fired", "generation", act.gen)
		c.transitionLocked(Screen{State: StateHome})
	})
}

// Current returns the current activation.
func (c *Controller) Current() *Activation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Attach stores the loaded model for act. It reports false, storing
// nothing, when act is no longer current.
func (c *Controller) Attach(act *Activation, model any, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != act {
		c.logger.Debug("discarding stale load", "generation", act.gen, "current", c.current.gen)
		return false
	}
	act.model = model
	act.err = err
	return true
}

// Snapshot returns the current state without loading anything.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Render calls fn with a snapshot while holding the controller lock, so the
// model cannot change during rendering. fn must not call the controller.
func (c *Controller) Render(fn func(Snapshot) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.snapshotLocked())
}

func (c *Controller) snapshotLocked() Snapshot {
	act := c.current
	s := Snapshot{
		Screen:          act.screen,
		Generation:      act.gen,
		Model:           act.model,
		Err:             act.err,
		Alert:           act.alert,
		Variant:         c.opts.Variant,
		ColumnsEnabled:  c.opts.ColumnsEnabled,
		RedirectPending: act.timer != nil,
	}
	if c.user != nil {
		s.User = *c.user
		s.LoggedIn = true
	}
	return s
}

// Load fetches the data of the current screen once per activation and
// returns the resulting snapshot. Concurrent callers share one fetch. If the
// screen changes while loading, the new screen is loaded instead.
func (c *Controller) Load(ctx context.Context) Snapshot {
	c.dropExpired(ctx)
	for range 3 {
		c.mu.Lock()
		act := c.current
		user := c.user
		c.mu.Unlock()

		act.loadOnce.Do(func() {
			model, err := c.fetch(act, user)
			if !c.Attach(act, model, err) {
				return
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("screen load failed",
					"screen", act.screen.State.String(),
					"assistant_id", act.screen.AssistantID,
					"error", err,
				)
			}
		})

		c.mu.Lock()
		if c.current == act {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap
		}
		c.mu.Unlock()

		if ctx.Err() != nil {
			break
		}
	}
	return c.Snapshot()
}

func (c *Controller) fetch(act *Activation, user *webhook.User) (any, error) {
	ctx := act.ctx
	switch act.screen.State {
	case StateLoggedOut:
		return nil, nil
	case StateHome:
		if user == nil {
			return nil, ErrNotLoaded
		}
		if c.opts.Variant == config.VariantSingle {
			board, err := views.LoadDashboard(ctx, c.api, user.ID)
			return loaded(board, err)
		}
		list, err := views.LoadAssistants(ctx, c.api, user.ID)
		return loaded(list, err)
	case StateEditing:
		form, err := editor.Load(ctx, c.api, act.screen.AssistantID, c.opts.ColumnsEnabled)
		return loaded(form, err)
	case StateViewingReport:
		reports, err := views.LoadReports(ctx, c.api, act.screen.AssistantID)
		return loaded(reports, err)
	default:
		return nil, fmt.Errorf("unknown state %s", act.screen.State)
	}
}

// loaded drops the model of a failed load. A nil *T stored as any would
// pass the model type assertions.
func loaded[T any](model *T, err error) (any, error) {
	if err != nil || model == nil {
		return nil, err
	}
	return model, nil
}

// pager is implemented by every list model.
type pager interface {
	Search(query string)
	Query() string
	GoTo(n int) bool
	Next() bool
	Prev() bool
}

// Navigate applies a search query (when query is non-nil and changed) and
// then moves to page (when page > 0) on the current list screen.
func (c *Controller) Navigate(query *string, page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expireLocked() {
		return ErrSessionExpired
	}
	p, ok := c.current.model.(pager)
	if !ok {
		return ErrNotLoaded
	}
	if query != nil && *query != p.Query() {
		p.Search(*query)
	}
	if page > 0 {
		p.GoTo(page)
	}
	return nil
}

// Dismiss removes the current alert.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.alert = nil
}

// UpdateForm applies fn to the edit form of the current activation. The
// form is replaced only when fn succeeds.
func (c *Controller) UpdateForm(fn func(f *editor.Form) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expireLocked() {
		return ErrSessionExpired
	}
	form, ok := c.current.model.(*editor.Form)
	if !ok || form == nil || c.current.screen.State != StateEditing {
		return ErrNotLoaded
	}

	draft := cloneForm(form)
	if err := fn(draft); err != nil {
		return err
	}
	c.current.model = draft
	return nil
}

// SubmitForm validates and saves the edit form. The network call runs
// without holding the lock and is cancelled if the user navigates away. On
// success a success alert is set and the save redirect is scheduled; on
// failure a danger alert is set and the edits are kept.
func (c *Controller) SubmitForm(ctx context.Context) error {
	c.mu.Lock()
	if c.expireLocked() {
		c.mu.Unlock()
		return ErrSessionExpired
	}
	act := c.current
	form, ok := act.model.(*editor.Form)
	if !ok || form == nil || act.screen.State != StateEditing {
		c.mu.Unlock()
		return ErrNotLoaded
	}
	draft := cloneForm(form)
	act.alert = nil
	c.mu.Unlock()

	saveCtx, cancel := context.WithCancel(act.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := draft.Submit(saveCtx, c.api)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != act {
		return ErrSuperseded
	}
	if err != nil {
		act.alert = &Alert{Kind: AlertDanger, Message: editor.Message(err)}
		return err
	}

	act.alert = &Alert{Kind: AlertSuccess, Message: editor.SuccessMessage}
	c.logger.Info("assistant saved", "assistant_id", draft.ID)
	c.scheduleBackLocked(act)
	return nil
}

// Close cancels pending work. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.endLocked(c.current)
}

func (c *Controller) transitionLocked(next Screen) {
	if c.current != nil {
		c.endLocked(c.current)
	}
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.current = &Activation{
		gen:    c.gen,
		screen: next,
		ctx:    ctx,
		cancel: cancel,
	}
	c.logger.Debug("screen transition",
		"state", next.State.String(),
		"assistant_id", next.AssistantID,
		"generation", c.gen,
	)
}

func (c *Controller) endLocked(act *Activation) {
	act.cancel()
	if act.timer != nil {
		act.timer.Stop()
	}
}

func cloneForm(f *editor.Form) *editor.Form {
	draft := *f
	if f.Columns != nil {
		draft.Columns = append(make([]string, 0, len(f.Columns)), f.Columns...)
	}
	return &draft
}
