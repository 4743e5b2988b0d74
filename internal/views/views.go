// ABOUTME: Loaders for the assistant list, single-assistant dashboard and report view
// ABOUTME: Fetch sequentially, abort on the first failure and wrap results in listing views

package views

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alphasales/assistant-admin/internal/listing"
	"github.com/alphasales/assistant-admin/internal/webhook"
)

// ErrNoAssistant is returned by LoadDashboard when the user owns no assistant
var ErrNoAssistant = errors.New("no assistant found")

// Missing is shown for a dashboard cell the report does not carry
const Missing = "N/A"

// AssistantLister lists a user's assistants.
type AssistantLister interface {
	ListAssistants(ctx context.Context, userID string) ([]webhook.Assistant, error)
}

// ReportLister lists an assistant's reports.
type ReportLister interface {
	ListReports(ctx context.Context, assistantID string) ([]webhook.Report, error)
}

// DashboardAPI is what the single-assistant dashboard needs.
type DashboardAPI interface {
	AssistantLister
	ReportLister
	ListColumns(ctx context.Context, assistantID string) ([]string, error)
}

// Message returns the user-facing text for a load failure.
func Message(err error) string {
	if errors.Is(err, ErrNoAssistant) {
		return "Nenhum assistente encontrado"
	}
	return webhook.UserMessage(err, "Erro ao carregar dados")
}

// AssistantFields returns the searchable values of an assistant.
func AssistantFields(a webhook.Assistant) []any {
	return listing.RecordFields(a.Record())
}

// ReportFields returns the searchable values of a report.
func ReportFields(r webhook.Report) []any {
	return listing.RecordFields(r)
}

// AssistantList is the Home screen of the multi-assistant variant.
type AssistantList struct {
	*listing.View[webhook.Assistant]
}

// LoadAssistants fetches the assistants of userID.
func LoadAssistants(ctx context.Context, api AssistantLister, userID string) (*AssistantList, error) {
	assistants, err := api.ListAssistants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading assistants: %w", err)
	}

	v := listing.NewView(AssistantFields)
	v.SetRows(assistants)
	return &AssistantList{View: v}, nil
}

// Dashboard is the Home screen of the single-assistant variant: the user's
// first assistant and a table of its reports projected onto its columns.
type Dashboard struct {
	Assistant webhook.Assistant
	Columns   []string
	*listing.View[webhook.Report]
}

// Cell returns the text of column col in report r, or Missing.
func (d *Dashboard) Cell(r webhook.Report, col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return Missing
	}
	return listing.Stringify(v)
}

// LoadDashboard fetches the first assistant of userID, then its columns,
// then its reports. Any failure discards what was fetched so far.
func LoadDashboard(ctx context.Context, api DashboardAPI, userID string) (*Dashboard, error) {
	assistants, err := api.ListAssistants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading assistant: %w", err)
	}
	if len(assistants) == 0 {
		return nil, ErrNoAssistant
	}
	assistant := assistants[0]

	columns, err := api.ListColumns(ctx, assistant.ID)
	if err != nil {
		return nil, fmt.Errorf("loading columns: %w", err)
	}

	reports, err := api.ListReports(ctx, assistant.ID)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}

	v := listing.NewView(ReportFields)
	v.SetRows(reports)
	return &Dashboard{Assistant: assistant, Columns: columns, View: v}, nil
}

// Field is one key/value pair of a report card.
type Field struct {
	Key   string
	Value string
}

// ReportList is the report view of the multi-assistant variant.
type ReportList struct {
	AssistantID string
	*listing.View[webhook.Report]
}

// Fields returns every key of r with its text, sorted by key.
func (l *ReportList) Fields(r webhook.Report) []Field {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: listing.Stringify(r[k])})
	}
	return out
}

// LoadReports fetches the reports of assistantID.
func LoadReports(ctx context.Context, api ReportLister, assistantID string) (*ReportList, error) {
	reports, err := api.ListReports(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}

	v := listing.NewView(ReportFields)
	v.SetRows(reports)
	return &ReportList{AssistantID: assistantID, View: v}, nil
}
