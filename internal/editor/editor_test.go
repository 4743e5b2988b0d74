package editor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphasales/assistant-admin/internal/webhook"
	"github.com/alphasales/assistant-admin/internal/webhook/webhooktest"
)

func newBackend(t *testing.T) *webhooktest.Backend {
	t.Helper()
	b := webhooktest.New(t)
	b.AddAssistant("u1",
		map[string]any{"id": "a1", "nome": "Vendas", "prompt": "Seja cordial", "id_cliente": 99},
		[]string{"nome", "telefone"},
		nil,
	)
	return b
}

func TestLoad(t *testing.T) {
	b := newBackend(t)

	f, err := Load(context.Background(), b.Client(), "a1", true)
	require.NoError(t, err)
	assert.Equal(t, "Vendas", f.Name)
	assert.Equal(t, "Seja cordial", f.Prompt)
	assert.Equal(t, []string{"nome", "telefone"}, f.Columns)
	assert.Equal(t, json.Number("99"), f.Assistant.ClientID)
}

func TestLoad_WithoutColumns(t *testing.T) {
	b := newBackend(t)

	f, err := Load(context.Background(), b.Client(), "a1", false)
	require.NoError(t, err)
	assert.Nil(t, f.Columns)
	assert.Equal(t, 0, b.Count(webhooktest.PathColumns))
}

func TestLoad_NotFound(t *testing.T) {
	b := newBackend(t)

	_, err := Load(context.Background(), b.Client(), "missing", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, webhook.ErrNotFound)
	assert.Equal(t, "Assistente não encontrado", Message(err))
}

func TestLoad_IsIdempotent(t *testing.T) {
	b := newBackend(t)

	first, err := Load(context.Background(), b.Client(), "a1", true)
	require.NoError(t, err)
	second, err := Load(context.Background(), b.Client(), "a1", true)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Prompt, second.Prompt)
	assert.Equal(t, first.Columns, second.Columns)
	assert.Empty(t, b.UpdateBodies(), "loading never writes")
}

func TestColumnOperations(t *testing.T) {
	f := &Form{Columns: []string{"a", "b", "c"}, ColumnsEnabled: true}

	f.AddColumn()
	assert.Equal(t, []string{"a", "b", "c", ""}, f.Columns)

	require.NoError(t, f.RenameColumn(3, "d"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.Columns)

	require.NoError(t, f.RemoveColumn(1))
	assert.Equal(t, []string{"a", "c", "d"}, f.Columns)

	assert.ErrorIs(t, f.RemoveColumn(3), ErrColumnIndex)
	assert.ErrorIs(t, f.RemoveColumn(-1), ErrColumnIndex)
	assert.ErrorIs(t, f.RenameColumn(5, "x"), ErrColumnIndex)
	assert.Equal(t, []string{"a", "c", "d"}, f.Columns)
}

func TestRemoveColumn_DoesNotAliasLoadedSlice(t *testing.T) {
	original := []string{"a", "b", "c"}
	f := &Form{Columns: original}

	require.NoError(t, f.RemoveColumn(0))
	assert.Equal(t, []string{"b", "c"}, f.Columns)
	assert.Equal(t, []string{"a", "b", "c"}, original)
}

func TestValidate_Order(t *testing.T) {
	tests := []struct {
		name      string
		form      Form
		wantField string
		wantIndex int
	}{
		{"everything empty reports name", Form{Name: " ", Prompt: "", Columns: []string{""}, ColumnsEnabled: true}, "name", -1},
		{"prompt before columns", Form{Name: "n", Prompt: "\t", Columns: []string{""}, ColumnsEnabled: true}, "prompt", -1},
		{"first empty column", Form{Name: "n", Prompt: "p", Columns: []string{"ok", "  ", ""}, ColumnsEnabled: true}, "column", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, tt.wantIndex, ve.Index)
		})
	}
}

func TestValidate_ColumnsIgnoredWhenDisabled(t *testing.T) {
	f := Form{Name: "n", Prompt: "p", Columns: []string{""}}
	assert.NoError(t, f.Validate())
}

func TestValidate_Messages(t *testing.T) {
	tests := []struct {
		form Form
		want string
	}{
		{Form{}, "Nome do assistente é obrigatório"},
		{Form{Name: "n"}, "Prompt é obrigatório"},
		{Form{Name: "n", Prompt: "p", Columns: []string{"a", ""}, ColumnsEnabled: true}, "O nome da coluna 2 é obrigatório"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.form.Validate()))
	}
}

func TestSubmit_RemoveAllThenEmptyColumnMakesNoCall(t *testing.T) {
	b := newBackend(t)
	f, err := Load(context.Background(), b.Client(), "a1", true)
	require.NoError(t, err)

	require.NoError(t, f.RemoveColumn(0))
	require.NoError(t, f.RemoveColumn(0))
	f.AddColumn()

	err = f.Submit(context.Background(), b.Client())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, 0, b.Count(webhooktest.PathUpdate))
}

func TestSubmit_RoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	f, err := Load(ctx, b.Client(), "a1", true)
	require.NoError(t, err)

	f.Name = "Vendas Pro"
	f.Prompt = "Seja objetivo"
	require.NoError(t, f.RenameColumn(1, "email"))
	f.AddColumn()
	require.NoError(t, f.RenameColumn(2, "cidade"))

	require.NoError(t, f.Submit(ctx, b.Client()))

	updates := b.UpdateBodies()
	require.Len(t, updates, 1)
	assert.Equal(t, "a1", updates[0]["id"])
	assert.Equal(t, "Vendas Pro", updates[0]["nome"])
	assert.Equal(t, "Seja objetivo", updates[0]["prompt"])
	assert.EqualValues(t, 99, updates[0]["id_cliente"], "id_cliente is echoed from the loaded record")
	assert.Equal(t, []any{"nome", "email", "cidade"}, updates[0]["colunas"])

	reloaded, err := Load(ctx, b.Client(), "a1", true)
	require.NoError(t, err)
	assert.Equal(t, "Vendas Pro", reloaded.Name)
	assert.Equal(t, "Seja objetivo", reloaded.Prompt)
	assert.Equal(t, []string{"nome", "email", "cidade"}, reloaded.Columns)
}

func TestSubmit_WithoutColumnsOmitsColunas(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	f, err := Load(ctx, b.Client(), "a1", false)
	require.NoError(t, err)
	require.NoError(t, f.Submit(ctx, b.Client()))

	updates := b.UpdateBodies()
	require.Len(t, updates, 1)
	_, ok := updates[0]["colunas"]
	assert.False(t, ok)
}

func TestSubmit_EmptyColumnListIsSent(t *testing.T) {
	f := &Form{ID: "a1", Name: "n", Prompt: "p", ColumnsEnabled: true}
	req := f.Request()
	require.NotNil(t, req.Columns)
	assert.Empty(t, *req.Columns)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"colunas":[]`)
}

func TestSubmit_FailureKeepsEdits(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	f, err := Load(ctx, b.Client(), "a1", true)
	require.NoError(t, err)
	f.Name = "Editado"
	f.AddColumn()
	require.NoError(t, f.RenameColumn(2, "nova"))

	b.Fail[webhooktest.PathUpdate] = http.StatusInternalServerError
	b.FailBody = "erro interno"

	err = f.Submit(ctx, b.Client())
	require.Error(t, err)
	assert.ErrorIs(t, err, webhook.ErrRequestFailed)
	assert.Equal(t, "Falha ao atualizar: erro interno", Message(err))

	assert.Equal(t, "Editado", f.Name)
	assert.Equal(t, []string{"nome", "telefone", "nova"}, f.Columns)
}
