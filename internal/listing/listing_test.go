package listing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row = map[string]any

func rows(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{"id": json.Number(fmt.Sprint(i + 1)), "nome": fmt.Sprintf("Lead %03d", i+1)}
	}
	return out
}

func newRecordView() *View[row] {
	return NewView(RecordFields[row])
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"Ana", "Ana"},
		{json.Number("12.50"), "12.50"},
		{true, "true"},
		{false, "false"},
		{float64(3), "3"},
		{[]any{"a", json.Number("1"), nil, true}, "a,1,,true"},
		{[]any{}, ""},
		{[]string{"x", "y"}, "x,y"},
		{map[string]any{"cidade": "Recife"}, `{"cidade":"Recife"}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Stringify(tt.in), "Stringify(%#v)", tt.in)
	}
}

func TestMatches(t *testing.T) {
	values := []any{"Maria Souza", json.Number("1199"), nil, true}

	assert.True(t, Matches(values, ""))
	assert.True(t, Matches(values, "maria"))
	assert.True(t, Matches(values, "SOUZA"))
	assert.True(t, Matches(values, "119"))
	assert.True(t, Matches(values, "nul"), "null renders as the text null")
	assert.True(t, Matches(values, "TRUE"))
	assert.False(t, Matches(values, "joão"))
}

func TestFilter_EmptyQueryIsIdentity(t *testing.T) {
	data := rows(7)
	got := Filter(data, "", RecordFields[row])
	assert.Equal(t, data, got)
}

func TestFilter_ResultIsOrderedSubset(t *testing.T) {
	data := rows(35)
	got := Filter(data, "lead 01", RecordFields[row])

	require.Len(t, got, 10) // Lead 010 .. Lead 019
	prev := 0
	for _, r := range got {
		id := idOf(r)
		assert.Greater(t, id, prev, "filter must preserve order")
		prev = id
		assert.True(t, strings.Contains(strings.ToLower(r["nome"].(string)), "lead 01"))
	}
}

func TestTotalPages(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 9: 1, 10: 1, 11: 2, 20: 2, 21: 3, 100: 10} {
		assert.Equal(t, want, TotalPages(n), "TotalPages(%d)", n)
	}
}

func TestView_EmptyDataset(t *testing.T) {
	v := newRecordView()
	v.SetRows(nil)

	p := v.Page()
	assert.Empty(t, p.Rows)
	assert.Equal(t, 0, p.TotalPages)
	assert.Equal(t, 1, p.DisplayPages())
	assert.Equal(t, []int{1}, p.Numbers())
	assert.False(t, p.HasPrev)
	assert.False(t, p.HasNext)
	assert.Equal(t, "Mostrando 0 até 0 de 0 resultados", p.Summary())

	assert.False(t, v.Next())
	assert.False(t, v.Prev())
	assert.False(t, v.GoTo(1))
	assert.Equal(t, 1, v.CurrentPage())
}

func TestView_PaginationBounds(t *testing.T) {
	v := newRecordView()
	v.SetRows(rows(23))

	p := v.Page()
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Rows, 10)
	assert.False(t, p.HasPrev)
	assert.True(t, p.HasNext)
	assert.Equal(t, "Mostrando 1 até 10 de 23 resultados", p.Summary())

	assert.False(t, v.Prev(), "prev on page 1 is a no-op")
	assert.False(t, v.GoTo(0))
	assert.False(t, v.GoTo(4))
	assert.Equal(t, 1, v.CurrentPage())

	require.True(t, v.GoTo(3))
	p = v.Page()
	assert.Len(t, p.Rows, 3)
	assert.True(t, p.HasPrev)
	assert.False(t, p.HasNext)
	assert.Equal(t, "Mostrando 21 até 23 de 23 resultados", p.Summary())
	assert.False(t, v.Next(), "next on last page is a no-op")

	require.True(t, v.Prev())
	assert.Equal(t, 2, v.CurrentPage())
}

func TestView_SearchResetsPage(t *testing.T) {
	v := newRecordView()
	v.SetRows(rows(30))
	require.True(t, v.GoTo(3))

	v.Search("lead 00")
	assert.Equal(t, 1, v.CurrentPage())
	p := v.Page()
	assert.Equal(t, 9, p.Total)
	assert.Equal(t, "lead 00", p.Query)

	v.Search("")
	assert.Equal(t, 30, v.Page().Total)
}

func TestView_SetRowsReappliesQuery(t *testing.T) {
	v := newRecordView()
	v.Search("lead 02")
	v.SetRows(rows(25))

	p := v.Page()
	assert.Equal(t, 6, p.Total) // 020..025
	assert.Equal(t, 1, p.Number)
}

// Random datasets, queries and navigation never break the pager invariants.
func TestView_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	queries := []string{"", "lead", "0", "1", "lead 00", "zzz"}

	for i := 0; i < 200; i++ {
		n := rng.Intn(60)
		v := newRecordView()
		v.SetRows(rows(n))
		v.Search(queries[rng.Intn(len(queries))])

		for step := 0; step < 10; step++ {
			switch rng.Intn(3) {
			case 0:
				v.Next()
			case 1:
				v.Prev()
			default:
				v.GoTo(rng.Intn(10) - 2)
			}

			p := v.Page()
			assert.Equal(t, TotalPages(p.Total), p.TotalPages)
			assert.GreaterOrEqual(t, p.Number, 1)
			if p.TotalPages > 0 {
				assert.LessOrEqual(t, p.Number, p.TotalPages)
			} else {
				assert.Equal(t, 1, p.Number)
			}
			assert.LessOrEqual(t, len(p.Rows), PageSize)
			assert.Equal(t, p.Number > 1, p.HasPrev)
			assert.Equal(t, p.Number < p.TotalPages, p.HasNext)
			for _, r := range p.Rows {
				assert.True(t, Matches(RecordFields(r), p.Query))
			}
		}
	}
}

func idOf(r row) int {
	var id int
	fmt.Sscan(r["id"].(json.Number).String(), &id)
	return id
}
