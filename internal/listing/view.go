// ABOUTME: Searchable, paginated view over an in-memory dataset
// ABOUTME: Fixed page size of 10, 1-based pages, out-of-range navigation is a no-op

package listing

import "fmt"

// PageSize is the number of rows per page
const PageSize = 10

// TotalPages returns ceil(n / PageSize); zero rows give zero pages.
func TotalPages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// Page is one rendered page of a View.
type Page[T any] struct {
	Rows   []T
	Number int
	// TotalPages is zero when nothing matched.
	TotalPages int
	// Total is the number of rows after filtering.
	Total int
	Query string

	HasPrev bool
	HasNext bool
}

// DisplayPages is the page count shown to the user, never less than one.
func (p Page[T]) DisplayPages() int {
	return max(p.TotalPages, 1)
}

// Numbers lists the page numbers to render as links.
func (p Page[T]) Numbers() []int {
	out := make([]int, p.DisplayPages())
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// First is the 1-based index of the first row shown, 0 when empty.
func (p Page[T]) First() int {
	if p.Total == 0 {
		return 0
	}
	return (p.Number-1)*PageSize + 1
}

// Last is the 1-based index of the last row shown.
func (p Page[T]) Last() int {
	return min(p.Number*PageSize, p.Total)
}

// Summary renders "Mostrando X até Y de Z resultados".
func (p Page[T]) Summary() string {
	return fmt.Sprintf("Mostrando %d até %d de %d resultados", p.First(), p.Last(), p.Total)
}

// View holds a dataset, the active query and the current page. It is not
// safe for concurrent use; the owning controller serializes access.
type View[T any] struct {
	fields   func(T) []any
	rows     []T
	filtered []T
	query    string
	page     int
}

// NewView creates an empty view. fields returns the searchable values of a row.
func NewView[T any](fields func(T) []any) *View[T] {
	return &View[T]{fields: fields, page: 1}
}

// SetRows replaces the dataset, re-applies the query and returns to page 1.
func (v *View[T]) SetRows(rows []T) {
	v.rows = rows
	v.refilter()
}

// Search sets the query and returns to page 1.
func (v *View[T]) Search(query string) {
	v.query = query
	v.refilter()
}

// Query returns the active query.
func (v *View[T]) Query() string {
	return v.query
}

// Rows returns the unfiltered dataset.
func (v *View[T]) Rows() []T {
	return v.rows
}

// CurrentPage returns the 1-based current page.
func (v *View[T]) CurrentPage() int {
	return v.page
}

// GoTo moves to page n. Pages outside [1, TotalPages] are ignored; the
// return value reports whether the page changed.
func (v *View[T]) GoTo(n int) bool {
	if n < 1 || n > TotalPages(len(v.filtered)) || n == v.page {
		return false
	}
	v.page = n
	return true
}

// Next moves forward one page if possible.
func (v *View[T]) Next() bool {
	return v.GoTo(v.page + 1)
}

// Prev moves back one page if possible.
func (v *View[T]) Prev() bool {
	return v.GoTo(v.page - 1)
}

// Page returns the rows of the current page plus pager facts.
func (v *View[T]) Page() Page[T] {
	total := len(v.filtered)
	pages := TotalPages(total)

	start := min((v.page-1)*PageSize, total)
	end := min(start+PageSize, total)

	return Page[T]{
		Rows:       v.filtered[start:end],
		Number:     v.page,
		TotalPages: pages,
		Total:      total,
		Query:      v.query,
		HasPrev:    v.page > 1,
		HasNext:    v.page < pages,
	}
}

func (v *View[T]) refilter() {
	v.filtered = Filter(v.rows, v.query, v.fields)
	v.page = 1
}
