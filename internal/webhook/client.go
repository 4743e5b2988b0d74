// ABOUTME: HTTP client for the assistant backend webhooks
// ABOUTME: Attaches the api_token header, normalizes bodies and maps failures to RequestError

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenHeader carries the static API token on every request
const TokenHeader = "api_token"

// DefaultTimeout bounds every call when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read
const maxBodySize = 10 << 20

// User-facing failure messages
const (
	msgInvalidCredentials = "Credenciais inválidas"
	msgListAssistants     = "Falha ao buscar assistentes"
	msgGetAssistant       = "Falha ao carregar dados do assistente"
	msgAssistantNotFound  = "Assistente não encontrado"
	msgListColumns        = "Falha ao carregar colunas"
	msgListReports        = "Falha ao carregar relatórios"
	msgUpdatePrefix       = "Falha ao atualizar: "
	msgUnreachable        = "Não foi possível conectar ao servidor"
	msgBadResponse        = "Resposta inválida do servidor"
)

// Endpoints holds one absolute URL per backend operation.
type Endpoints struct {
	Login           string
	Assistants      string
	AssistantDetail string
	AssistantUpdate string
	Columns         string
	Reports         string
}

// Config configures a Client.
type Config struct {
	Endpoints Endpoints
	Token     string
	Timeout   time.Duration

	// Transport defaults to http.DefaultTransport. It is always wrapped
	// with otelhttp.
	Transport http.RoundTripper
}

// Client calls the backend webhooks. It is safe for concurrent use.
type Client struct {
	endpoints  Endpoints
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		endpoints: cfg.Endpoints,
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "webhook " + r.Method
				}),
			),
		},
		logger: slog.Default().With("component", "webhook"),
	}
}

// credentials is the login request body
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate exchanges credentials for the user record.
func (c *Client) Authenticate(ctx context.Context, email, password string) (User, error) {
	const op = "authenticate"

	body, err := json.Marshal(credentials{Email: email, Password: password})
	if err != nil {
		return User{}, fmt.Errorf("encoding credentials: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPost, c.endpoints.Login, nil, body)
	if err != nil {
		return User{}, c.transportError(op, err)
	}
	if !success(status) {
		return User{}, c.fail(op, status, raw, ErrAuthenticationFailed, msgInvalidCredentials, nil)
	}

	payload, _, err := Normalize(raw)
	if err != nil {
		return User{}, c.fail(op, status, raw, ErrRequestFailed, msgBadResponse, err)
	}
	if !payload.Present() {
		return User{}, c.fail(op, status, raw, ErrAuthenticationFailed, msgInvalidCredentials, nil)
	}

	var user User
	if err := remarshal(payload.Object(), &user); err != nil {
		return User{}, c.fail(op, status, raw, ErrRequestFailed, msgBadResponse, err)
	}
	return user, nil
}

// ListAssistants returns the assistants owned by userID.
func (c *Client) ListAssistants(ctx context.Context, userID string) ([]Assistant, error) {
	const op = "list_assistants"

	payload, err := c.get(ctx, op, c.endpoints.Assistants, url.Values{"user_id": {userID}}, msgListAssistants)
	if err != nil {
		return nil, err
	}

	recs, err := payload.Records("data")
	if err != nil {
		return nil, c.fail(op, http.StatusOK, nil, ErrRequestFailed, msgBadResponse, err)
	}

	assistants := make([]Assistant, 0, len(recs))
	for _, rec := range recs {
		assistants = append(assistants, assistantFromRecord(rec))
	}
	return assistants, nil
}

// GetAssistant returns one assistant. An empty response wraps ErrNotFound.
func (c *Client) GetAssistant(ctx context.Context, id string) (Assistant, error) {
	const op = "get_assistant"

	payload, err := c.get(ctx, op, c.endpoints.AssistantDetail, url.Values{"id": {id}}, msgGetAssistant)
	if err != nil {
		return Assistant{}, err
	}
	if !payload.Present() {
		return Assistant{}, c.fail(op, http.StatusOK, nil, ErrNotFound, msgAssistantNotFound, nil)
	}
	return assistantFromRecord(payload.Object()), nil
}

// ListColumns returns the output column names configured for an assistant.
func (c *Client) ListColumns(ctx context.Context, assistantID string) ([]string, error) {
	const op = "list_columns"

	payload, err := c.get(ctx, op, c.endpoints.Columns, url.Values{"assistant_id": {assistantID}}, msgListColumns)
	if err != nil {
		return nil, err
	}

	cols, err := payload.Strings("colunas")
	if err != nil {
		return nil, c.fail(op, http.StatusOK, nil, ErrRequestFailed, msgBadResponse, err)
	}
	return cols, nil
}

// ListReports returns the lead reports produced by an assistant.
func (c *Client) ListReports(ctx context.Context, assistantID string) ([]Report, error) {
	const op = "list_reports"

	payload, err := c.get(ctx, op, c.endpoints.Reports, url.Values{"assistant_id": {assistantID}}, msgListReports)
	if err != nil {
		return nil, err
	}

	recs, err := payload.Records("relatorios")
	if err != nil {
		return nil, c.fail(op, http.StatusOK, nil, ErrRequestFailed, msgBadResponse, err)
	}
	return recs, nil
}

// UpdateRequest is the whole-record update body.
type UpdateRequest struct {
	ID       string `json:"id"`
	Name     string `json:"nome"`
	Prompt   string `json:"prompt"`
	ClientID any    `json:"id_cliente"`

	// Columns is sent only when non-nil.
	Columns *[]string `json:"colunas,omitempty"`
}

// UpdateAssistant replaces an assistant's editable fields. Only success or
// failure is reported; the response body is ignored on success.
func (c *Client) UpdateAssistant(ctx context.Context, req UpdateRequest) error {
	const op = "update_assistant"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding update: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPut, c.endpoints.AssistantUpdate, nil, body)
	if err != nil {
		return c.transportError(op, err)
	}
	if !success(status) {
		return c.fail(op, status, raw, ErrRequestFailed, msgUpdatePrefix+string(raw), nil)
	}

	c.logger.Info("assistant updated", "assistant_id", req.ID, "columns", req.Columns != nil)
	return nil
}

// get performs a GET and normalizes the body.
func (c *Client) get(ctx context.Context, op, endpoint string, query url.Values, failMsg string) (Payload, error) {
	status, raw, err := c.do(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return Payload{}, c.transportError(op, err)
	}
	if !success(status) {
		return Payload{}, c.fail(op, status, raw, ErrRequestFailed, failMsg, nil)
	}

	payload, shape, err := Normalize(raw)
	if err != nil {
		return Payload{}, c.fail(op, status, raw, ErrRequestFailed, msgBadResponse, err)
	}
	c.logger.Debug("webhook response", "op", op, "shape", shape.String(), "present", payload.Present())
	return payload, nil
}

// do sends one request and returns status and body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body []byte) (int, []byte, error) {
	target, err := withQuery(endpoint, query)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("webhook call",
		"method", method,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration", time.Since(start),
	)
	return resp.StatusCode, raw, nil
}

func (c *Client) transportError(op string, err error) error {
	msg := msgUnreachable
	if errors.Is(err, context.Canceled) {
		msg = "Operação cancelada"
	}
	return c.fail(op, 0, nil, ErrRequestFailed, msg, err)
}

func (c *Client) fail(op string, status int, raw []byte, kind error, msg string, cause error) error {
	re := &RequestError{
		Op:      op,
		Status:  status,
		Message: msg,
		Body:    strings.TrimSpace(string(raw)),
		Kind:    kind,
		Err:     cause,
	}
	if errors.Is(cause, context.Canceled) {
		c.logger.Debug("webhook call cancelled", "op", op)
	} else {
		c.logger.Warn("webhook call failed", "op", op, "status", status, "error", re.LogString())
	}
	return re
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// withQuery merges query into endpoint, keeping parameters already present.
func withQuery(endpoint string, query url.Values) (string, error) {
	if len(query) == 0 {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// remarshal converts a decoded record into a typed value.
func remarshal(rec Record, dst any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
