package main

import (
	"sort"
	"strings"
	"time"
)

// Snapshot is one immutable result of a data-source fetch. Items keep the
// source's order; Seq strictly increases per view; Taken is the capture
// time. A snapshot is never mutated after construction, only replaced.
type Snapshot[E any] struct {
	Items []E
	Seq   uint64
	Taken time.Time
}

// SortState is an explicit column sort. A zero Column means the view's
// default ordering applies.
type SortState struct {
	Column string
	Desc   bool
}

// ViewState holds everything the user controls about a view's row list:
// the free-text filter, the ownership scope, and the sort selection.
// Mutated only from the update loop.
type ViewState struct {
	Query    string
	MineOnly bool
	Sort     SortState
}

// CycleSort selects column for sorting. Re-selecting the active column
// flips its direction; any other column starts ascending.
func (vs *ViewState) CycleSort(column string) {
	if vs.Sort.Column == column {
		vs.Sort.Desc = !vs.Sort.Desc
		return
	}
	vs.Sort = SortState{Column: column}
}

// Pipeline turns a snapshot plus view state into the ordered row list for
// one entity type. The fields are accessors over E so the transform stays
// a pure function of its inputs; Apply never mutates the snapshot.
type Pipeline[E any] struct {
	// ID returns the stable identity used for anchoring and watching.
	ID func(E) string
	// Haystack returns the fields the free-text filter matches against.
	Haystack func(E) []string
	// Owner returns the owning user, or "" when ownership does not apply
	// to this entity type.
	Owner func(E) string
	// Default orders rows when no sort column is selected. Nil keeps
	// snapshot order.
	Default func(a, b E) bool
	// Columns maps each sortable column key to its ascending order.
	Columns map[string]func(a, b E) bool
}

// Apply filters and sorts snap.Items according to vs. Filtering preserves
// snapshot order and sorting is stable, so ties keep snapshot order and
// identical inputs always produce identical output.
func (p Pipeline[E]) Apply(snap Snapshot[E], vs ViewState, user string) []E {
	rows := make([]E, 0, len(snap.Items))
	query := strings.ToLower(strings.TrimSpace(vs.Query))
	for _, item := range snap.Items {
		if vs.MineOnly && p.Owner != nil && p.Owner(item) != user {
			continue
		}
		if query != "" && !p.matches(item, query) {
			continue
		}
		rows = append(rows, item)
	}

	less := p.Default
	if vs.Sort.Column != "" {
		if byCol, ok := p.Columns[vs.Sort.Column]; ok {
			if vs.Sort.Desc {
				less = func(a, b E) bool { return byCol(b, a) }
			} else {
				less = byCol
			}
		}
	}
	if less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	}
	return rows
}

func (p Pipeline[E]) matches(item E, query string) bool {
	for _, field := range p.Haystack(item) {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
