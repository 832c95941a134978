package listing

import (
	"sort"
	"strings"
)

// List is the state behind one table or card screen: rows, the active
// filter, ordering, the page window, and the selection cursor. All derived
// views are recomputed lazily after a mutation.
type List[T any] struct {
	items   []T
	project func(T) []string
	query   string
	terms   []string
	keys    []SortKey[T]
	perPage int
	cursor  int

	// order holds the filtered, sorted row indices; rebuilt when stale.
	order []int
	stale bool
}

// New creates an empty list. The projection feeds the free-text filter: a
// row stays visible when every query term appears in at least one of its
// projected fields. A nil projection disables filtering.
func New[T any](projection func(T) []string) *List[T] {
	return &List[T]{project: projection}
}

// SetItems replaces the rows and keeps the cursor clamped into range.
func (l *List[T]) SetItems(items []T) {
	l.items = append([]T(nil), items...)
	l.stale = true
}

// SetQuery replaces the free-text filter and rewinds the cursor: a new
// filter invalidates any position in the old result.
func (l *List[T]) SetQuery(query string) {
	l.query = query
	l.terms = strings.Fields(strings.ToLower(query))
	l.cursor = 0
	l.stale = true
}

// Query returns the active free-text filter as typed.
func (l *List[T]) Query() string {
	return l.query
}

// SortBy replaces the ordering. The first key that distinguishes two rows
// decides their order; equal rows keep their ingest order.
func (l *List[T]) SortBy(keys ...SortKey[T]) {
	l.keys = append([]SortKey[T](nil), keys...)
	l.stale = true
}

// SetPerPage sets the window size. Zero or negative means a single
// unwindowed page.
func (l *List[T]) SetPerPage(n int) {
	if n < 0 {
		n = 0
	}
	l.perPage = n
}

// Len returns the number of rows that pass the filter.
func (l *List[T]) Len() int {
	l.refresh()
	return len(l.order)
}

// Total returns the number of rows regardless of the filter.
func (l *List[T]) Total() int {
	return len(l.items)
}

// Page returns the 1-based page the cursor sits on.
func (l *List[T]) Page() int {
	l.refresh()
	if l.perPage <= 0 || len(l.order) == 0 {
		return 1
	}
	return l.cursor/l.perPage + 1
}

// PageCount returns how many windows the filtered rows span, at least 1.
func (l *List[T]) PageCount() int {
	l.refresh()
	if l.perPage <= 0 || len(l.order) == 0 {
		return 1
	}
	return (len(l.order) + l.perPage - 1) / l.perPage
}

// Visible returns the rows in the cursor's window, in display order.
func (l *List[T]) Visible() []T {
	l.refresh()
	start, end := 0, len(l.order)
	if l.perPage > 0 {
		start = (l.Page() - 1) * l.perPage
		if start+l.perPage < end {
			end = start + l.perPage
		}
	}
	out := make([]T, 0, end-start)
	for _, idx := range l.order[start:end] {
		out = append(out, l.items[idx])
	}
	return out
}

// Cursor returns the selection index within the filtered rows.
func (l *List[T]) Cursor() int {
	l.refresh()
	return l.cursor
}

// Selected returns the row under the cursor.
func (l *List[T]) Selected() (T, bool) {
	l.refresh()
	if len(l.order) == 0 {
		var zero T
		return zero, false
	}
	return l.items[l.order[l.cursor]], true
}

// SetCursor moves the selection to the given filtered-row index, clamped.
func (l *List[T]) SetCursor(i int) {
	l.refresh()
	l.cursor = i
	l.clampCursor()
}

// CursorUp moves the selection one row up.
func (l *List[T]) CursorUp() {
	l.MoveCursor(-1)
}

// CursorDown moves the selection one row down.
func (l *List[T]) CursorDown() {
	l.MoveCursor(1)
}

// MoveCursor moves the selection by delta rows, clamped to the filtered
// rows. Crossing a window edge flips the page implicitly.
func (l *List[T]) MoveCursor(delta int) {
	l.refresh()
	l.cursor += delta
	l.clampCursor()
}

// CursorHome moves the selection to the first row.
func (l *List[T]) CursorHome() {
	l.SetCursor(0)
}

// CursorEnd moves the selection to the last row.
func (l *List[T]) CursorEnd() {
	l.refresh()
	l.cursor = len(l.order) - 1
	l.clampCursor()
}

// NextPage moves the selection one window forward.
func (l *List[T]) NextPage() {
	if l.perPage > 0 {
		l.MoveCursor(l.perPage)
	}
}

// PrevPage moves the selection one window back.
func (l *List[T]) PrevPage() {
	if l.perPage > 0 {
		l.MoveCursor(-l.perPage)
	}
}

// SetPage jumps the selection to the top of the given 1-based page,
// clamped to the available windows.
func (l *List[T]) SetPage(n int) {
	l.refresh()
	if l.perPage <= 0 {
		return
	}
	if count := l.PageCount(); n > count {
		n = count
	}
	if n < 1 {
		n = 1
	}
	l.cursor = (n - 1) * l.perPage
	l.clampCursor()
}

func (l *List[T]) refresh() {
	if !l.stale {
		return
	}
	l.order = l.order[:0]
	for i := range l.items {
		if l.matches(l.items[i]) {
			l.order = append(l.order, i)
		}
	}
	if len(l.keys) > 0 {
		sort.SliceStable(l.order, func(i, j int) bool {
			return compareKeys(l.keys, l.items[l.order[i]], l.items[l.order[j]]) < 0
		})
	}
	l.stale = false
	l.clampCursor()
}

func (l *List[T]) clampCursor() {
	if len(l.order) == 0 {
		l.cursor = 0
		return
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	if l.cursor > len(l.order)-1 {
		l.cursor = len(l.order) - 1
	}
}

func (l *List[T]) matches(item T) bool {
	if len(l.terms) == 0 || l.project == nil {
		return true
	}
	fields := l.project(item)
	for _, term := range l.terms {
		found := false
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
