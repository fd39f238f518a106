package main

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const sparklineHeight = 4

// healthPane shows recent command telemetry: a latency sparkline over the
// window plus a table of the latest invocations, newest first. It reads
// the in-process command log directly, so it carries no refresher of its
// own and rebuilds whenever any fetch completes.
type healthPane struct {
	table  table.Model
	spark  sparkline.Model
	log    *CommandLog
	window int
	stats  []CommandStat
	layout tableLayout
	width  int
	height int
}

func newHealthPane(log *CommandLog, window int) healthPane {
	return healthPane{
		table:  newPaneTable(),
		spark:  sparkline.New(40, sparklineHeight),
		log:    log,
		window: window,
	}
}

func healthColumns() []columnSpec {
	return []columnSpec{
		{Title: "AGE", MinWidth: 14, Threshold: 0},
		{Title: "OK", MinWidth: 4, Threshold: 0},
		{Title: "LATENCY", MinWidth: 9, Threshold: 0},
		{Title: "COMMAND", MinWidth: 24, Threshold: 0},
		{Title: "STDERR", MinWidth: 16, Threshold: 100},
	}
}

var healthColumnCaps = map[string]int{
	"COMMAND": 48,
	"STDERR":  40,
}

func healthCells(stat CommandStat) []string {
	mark := "✓"
	if !stat.OK {
		mark = "✗"
	}
	return []string{
		humanize.Time(stat.At),
		mark,
		fmt.Sprintf("%d ms", stat.Latency.Milliseconds()),
		stat.Command,
		stat.Stderr,
	}
}

func (h *healthPane) rebuild() {
	h.stats = h.log.Recent(h.window)

	sparkWidth := h.width - 2
	if sparkWidth < 10 {
		sparkWidth = 10
	}
	spark := sparkline.New(sparkWidth, sparklineHeight)
	// Ring order is newest first; the chart wants time flowing rightward.
	for i := len(h.stats) - 1; i >= 0; i-- {
		spark.Push(float64(h.stats[i].Latency.Milliseconds()))
	}
	spark.Draw()
	h.spark = spark

	cells := make([][]string, len(h.stats))
	for i, stat := range h.stats {
		cells[i] = healthCells(stat)
	}
	lay := computeLayout(healthColumns(), h.width, cells, healthColumnCaps)
	if !lay.equal(h.layout) {
		h.table.SetRows([]table.Row{})
		h.table.SetColumns(lay.columns())
		h.layout = lay
	}
	rows := make([]table.Row, len(cells))
	for i, c := range cells {
		rows[i] = lay.project(c)
	}
	h.table.SetRows(rows)

	if cursor := h.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		h.table.SetCursor(len(rows) - 1)
	}
}

func (h *healthPane) resize(width, height int) {
	h.width = width
	h.height = height
	h.table.SetWidth(width)
	tableHeight := height - sparklineHeight - 2
	if tableHeight < 3 {
		tableHeight = 3
	}
	h.table.SetHeight(tableHeight)
	h.rebuild()
}

func (h *healthPane) move(delta int) {
	if cursor := cycleCursor(h.table.Cursor(), delta, len(h.stats)); cursor >= 0 {
		h.table.SetCursor(cursor)
	}
}

func (h *healthPane) selected() (CommandStat, bool) {
	idx := h.table.Cursor()
	if idx < 0 || idx >= len(h.stats) {
		return CommandStat{}, false
	}
	return h.stats[idx], true
}

func (h *healthPane) view() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		filterHintStyle.Render("command latency, oldest to newest"),
		sparklineStyle.Render(h.spark.View()),
		h.table.View(),
	)
}

// summary condenses the telemetry window for the status header.
func (h *healthPane) summary() string {
	failures := 0
	var total time.Duration
	for _, stat := range h.stats {
		if !stat.OK {
			failures++
		}
		total += stat.Latency
	}
	avg := int64(0)
	if len(h.stats) > 0 {
		avg = (total / time.Duration(len(h.stats))).Milliseconds()
	}
	return fmt.Sprintf("%d commands · %d failures · %d ms avg", len(h.stats), failures, avg)
}
