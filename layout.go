package main

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/mattn/go-runewidth"
)

// columnSpec declares one table column. Specs are listed in priority
// order with non-decreasing thresholds, so the set of columns visible at
// any terminal width is a prefix of the declared list and the identifying
// columns are never the ones that disappear.
type columnSpec struct {
	Title     string
	MinWidth  int
	Threshold int // minimum terminal width at which the column appears
}

// columnPadding is the breathing room added on top of the measured
// content width before clamping.
const columnPadding = 2

// tableLayout is one computed (visible columns, widths) result plus the
// declared positions of the visible columns, used to project full cell
// rows down to the visible ones.
type tableLayout struct {
	Specs   []columnSpec
	Widths  []int
	indices []int
}

// computeLayout selects the columns visible at termWidth and sizes each
// to its content: at least the header and MinWidth, at most the cap
// configured for that column name. cells holds one string row per entity
// in declared column order.
func computeLayout(specs []columnSpec, termWidth int, cells [][]string, caps map[string]int) tableLayout {
	var lay tableLayout
	for idx, spec := range specs {
		if termWidth < spec.Threshold {
			continue
		}
		width := runewidth.StringWidth(spec.Title)
		for _, row := range cells {
			if idx >= len(row) {
				continue
			}
			if w := runewidth.StringWidth(row[idx]); w > width {
				width = w
			}
		}
		width += columnPadding
		if width < spec.MinWidth {
			width = spec.MinWidth
		}
		if limit, ok := caps[spec.Title]; ok && width > limit {
			width = limit
		}
		lay.Specs = append(lay.Specs, spec)
		lay.Widths = append(lay.Widths, width)
		lay.indices = append(lay.indices, idx)
	}
	return lay
}

// equal reports whether two layouts would configure the table widget
// identically. The caller skips the rebuild when they do.
func (l tableLayout) equal(other tableLayout) bool {
	if len(l.Specs) != len(other.Specs) {
		return false
	}
	for i := range l.Specs {
		if l.Specs[i].Title != other.Specs[i].Title || l.Widths[i] != other.Widths[i] {
			return false
		}
	}
	return true
}

// columns converts the layout into bubbles table columns.
func (l tableLayout) columns() []table.Column {
	cols := make([]table.Column, len(l.Specs))
	for i, spec := range l.Specs {
		cols[i] = table.Column{Title: spec.Title, Width: l.Widths[i]}
	}
	return cols
}

// project cuts a declared-order cell row down to the visible columns.
func (l tableLayout) project(cells []string) table.Row {
	row := make(table.Row, len(l.indices))
	for i, idx := range l.indices {
		if idx < len(cells) {
			row[i] = cells[idx]
		}
	}
	return row
}

// totalWidth is the rendered width of the layout including the widget's
// own cell padding.
func (l tableLayout) totalWidth() int {
	total := 0
	for _, w := range l.Widths {
		total += w
	}
	return total
}
