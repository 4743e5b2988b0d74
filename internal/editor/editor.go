// ABOUTME: Editable assistant form with column operations, validation and submit
// ABOUTME: Sends one whole-record update and keeps the user's edits when it fails

package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alphasales/assistant-admin/internal/webhook"
)

// Errors
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrColumnIndex      = errors.New("column index out of range")
)

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field   string // "name", "prompt" or "column"
	Index   int    // column index, -1 otherwise
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// Loader fetches what the form needs.
type Loader interface {
	GetAssistant(ctx context.Context, id string) (webhook.Assistant, error)
	ListColumns(ctx context.Context, assistantID string) ([]string, error)
}

// Updater sends the update.
type Updater interface {
	UpdateAssistant(ctx context.Context, req webhook.UpdateRequest) error
}

// Form is the editable state of one assistant.
type Form struct {
	// ID is the id the form was opened for.
	ID string
	// Assistant is the record as loaded; id_cliente is echoed from it.
	Assistant webhook.Assistant

	Name    string
	Prompt  string
	Columns []string

	// ColumnsEnabled exposes the column list and sends colunas on save.
	ColumnsEnabled bool
}

// Load fetches the assistant and, when withColumns is set, its column list.
func Load(ctx context.Context, api Loader, id string, withColumns bool) (*Form, error) {
	assistant, err := api.GetAssistant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading assistant %s: %w", id, err)
	}

	f := &Form{
		ID:             id,
		Assistant:      assistant,
		Name:           assistant.Name,
		Prompt:         assistant.Prompt,
		ColumnsEnabled: withColumns,
	}

	if withColumns {
		cols, err := api.ListColumns(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading columns of %s: %w", id, err)
		}
		f.Columns = append(make([]string, 0, len(cols)), cols...)
	}

	return f, nil
}

// AddColumn appends an empty column.
func (f *Form) AddColumn() {
	f.Columns = append(f.Columns, "")
}

// RemoveColumn deletes the column at i, keeping the order of the rest.
func (f *Form) RemoveColumn(i int) error {
	if i < 0 || i >= len(f.Columns) {
		return fmt.Errorf("%w: %d", ErrColumnIndex, i)
	}
	f.Columns = append(f.Columns[:i:i], f.Columns[i+1:]...)
	return nil
}

// RenameColumn sets the column at i to name.
func (f *Form) RenameColumn(i int, name string) error {
	if i < 0 || i >= len(f.Columns) {
		return fmt.Errorf("%w: %d", ErrColumnIndex, i)
	}
	f.Columns[i] = name
	return nil
}

// Validate checks name, then prompt, then each column. The first failure is
// returned as a *ValidationError.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Index: -1, Message: "Nome do assistente é obrigatório"}
	}
	if strings.TrimSpace(f.Prompt) == "" {
		return &ValidationError{Field: "prompt", Index: -1, Message: "Prompt é obrigatório"}
	}
	if f.ColumnsEnabled {
		for i, c := range f.Columns {
			if strings.TrimSpace(c) == "" {
				return &ValidationError{
					Field:   "column",
					Index:   i,
					Message: fmt.Sprintf("O nome da coluna %d é obrigatório", i+1),
				}
			}
		}
	}
	return nil
}

// Request builds the update body from the current state.
func (f *Form) Request() webhook.UpdateRequest {
	req := webhook.UpdateRequest{
		ID:       f.ID,
		Name:     f.Name,
		Prompt:   f.Prompt,
		ClientID: f.Assistant.ClientID,
	}
	if f.ColumnsEnabled {
		cols := append(make([]string, 0, len(f.Columns)), f.Columns...)
		req.Columns = &cols
	}
	return req
}

// Submit validates and, only if valid, sends a single update. The form is
// left untouched either way.
func (f *Form) Submit(ctx context.Context, api Updater) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := api.UpdateAssistant(ctx, f.Request()); err != nil {
		return fmt.Errorf("updating assistant %s: %w", f.ID, err)
	}
	return nil
}

// Message returns the user-facing text for a Load or Submit failure.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return webhook.UserMessage(err, "Erro ao atualizar assistente")
}

// SuccessMessage is shown after a successful save.
const SuccessMessage = "Assistente atualizado com sucesso!"
