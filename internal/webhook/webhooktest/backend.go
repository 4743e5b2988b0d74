// ABOUTME: Fake webhook backend for tests across packages
// ABOUTME: Serves every endpoint from in-memory fixtures on an httptest server

package webhooktest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alphasales/assistant-admin/internal/webhook"
)

// Token is the API token the fake backend accepts.
const Token = "test-token"

// Endpoint paths on the fake server
const (
	PathLogin      = "/login"
	PathAssistants = "/assistants"
	PathDetail     = "/assistant"
	PathUpdate     = "/assistant/update"
	PathColumns    = "/columns"
	PathReports    = "/reports"
)

// Request is one request seen by the fake backend.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Token  string
	Body   []byte
}

// Backend is a configurable fake of the assistant webhooks.
// Responses are written wrapped in a one-element array unless Bare is set,
// matching the backend's inconsistent framing.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []Request

	// Users maps email to {password, user record}.
	Users map[string]Login
	// Assistants maps user id to the records listed for that user.
	Assistants map[string][]map[string]any
	// Details maps assistant id to the detail record.
	Details map[string]map[string]any
	// Columns maps assistant id to its column names.
	Columns map[string][]string
	// Reports maps assistant id to its reports.
	Reports map[string][]map[string]any

	// Fail maps a path to a status code to return instead of data.
	Fail map[string]int
	// FailBody is written with a Fail status.
	FailBody string
	// Bare disables the array wrapping.
	Bare bool

	// Updates records every decoded update body.
	Updates []map[string]any
}

// Login is a fake account.
type Login struct {
	Password string
	User     map[string]any
}

// New starts a fake backend that is closed when the test ends.
func New(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		Users:      map[string]Login{},
		Assistants: map[string][]map[string]any{},
		Details:    map[string]map[string]any{},
		Columns:    map[string][]string{},
		Reports:    map[string][]map[string]any{},
		Fail:       map[string]int{},
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// Endpoints returns client endpoints pointing at the fake server.
func (b *Backend) Endpoints() webhook.Endpoints {
	base := b.Server.URL
	return webhook.Endpoints{
		Login:           base + PathLogin,
		Assistants:      base + PathAssistants,
		AssistantDetail: base + PathDetail,
		AssistantUpdate: base + PathUpdate,
		Columns:         base + PathColumns,
		Reports:         base + PathReports,
	}
}

// Client returns a webhook client configured for this backend.
func (b *Backend) Client() *webhook.Client {
	return webhook.New(webhook.Config{Endpoints: b.Endpoints(), Token: Token})
}

// Requests returns a copy of the requests seen so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests hit path.
func (b *Backend) Count(path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// UpdateBodies returns a copy of the decoded update bodies.
func (b *Backend) UpdateBodies() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.Updates...)
}

// AddAssistant registers an assistant for userID with its detail, columns
// and reports.
func (b *Backend) AddAssistant(userID string, rec map[string]any, columns []string, reports []map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := webhook.Text(rec["id"])
	b.Assistants[userID] = append(b.Assistants[userID], rec)
	b.Details[id] = rec
	if columns != nil {
		b.Columns[id] = columns
	}
	if reports != nil {
		b.Reports[id] = reports
	}
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	query := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  query,
		Token:  r.Header.Get(webhook.TokenHeader),
		Body:   body,
	})
	failStatus, failing := b.Fail[r.URL.Path]
	failBody := b.FailBody
	b.mu.Unlock()

	if r.Header.Get(webhook.TokenHeader) != Token {
		http.Error(w, "invalid api token", http.StatusUnauthorized)
		return
	}
	if failing {
		w.WriteHeader(failStatus)
		_, _ = io.WriteString(w, failBody)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.URL.Path {
	case PathLogin:
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.Unmarshal(body, &creds)
		login, ok := b.Users[creds.Email]
		if !ok || login.Password != creds.Password {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		b.write(w, login.User)

	case PathAssistants:
		items := b.Assistants[query["user_id"]]
		if items == nil {
			items = []map[string]any{}
		}
		b.write(w, map[string]any{"data": items})

	case PathDetail:
		rec, ok := b.Details[query["id"]]
		if !ok {
			_, _ = io.WriteString(w, "[]")
			return
		}
		b.write(w, rec)

	case PathColumns:
		b.write(w, map[string]any{"colunas": b.Columns[query["assistant_id"]]})

	case PathReports:
		b.write(w, map[string]any{"relatorios": b.Reports[query["assistant_id"]]})

	case PathUpdate:
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var update map[string]any
		if err := json.Unmarshal(body, &update); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		b.Updates = append(b.Updates, update)
		if rec, ok := b.Details[webhook.Text(update["id"])]; ok {
			rec["nome"] = update["nome"]
			rec["prompt"] = update["prompt"]
			if cols, ok := update["colunas"].([]any); ok {
				names := make([]string, 0, len(cols))
				for _, c := range cols {
					names = append(names, webhook.Text(c))
				}
				b.Columns[webhook.Text(update["id"])] = names
			}
		}
		b.write(w, map[string]any{"ok": true})

	default:
		http.NotFound(w, r)
	}
}

func (b *Backend) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if b.Bare {
		_ = json.NewEncoder(w).Encode(v)
		return
	}
	_ = json.NewEncoder(w).Encode([]any{v})
}
