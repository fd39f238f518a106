package main

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func testModel() Model {
	return NewModel(DefaultConfig(), stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "", fmt.Errorf("no scheduler in tests")
	}))
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T", updated)
	}
	return next, cmd
}

func TestTabKeyCyclesViews(t *testing.T) {
	m := testModel()
	want := []viewID{viewNodes, viewPartitions, viewHealth, viewJobs}
	for _, v := range want {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		if m.active != v {
			t.Fatalf("expected %s active, got %s", v, m.active)
		}
	}
}

func TestNumberKeysJumpToViews(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, keyPress('3'))
	if m.active != viewPartitions {
		t.Fatalf("expected partitions active, got %s", m.active)
	}
	m, _ = update(t, m, keyPress('4'))
	if m.active != viewHealth {
		t.Fatalf("expected health active, got %s", m.active)
	}
	m, _ = update(t, m, keyPress('1'))
	if m.active != viewJobs {
		t.Fatalf("expected jobs active, got %s", m.active)
	}
}

func TestJobsFetchPrunesMarksAndNotifiesWatch(t *testing.T) {
	m := testModel()
	m.watch.Watch("101", "RUNNING")
	m.marks["101"] = true
	m.marks["999"] = true

	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})
	if len(m.marks) != 1 || !m.marks["101"] {
		t.Fatalf("expected only the live mark to survive, got %v", m.marks)
	}
	if m.watch.Len() != 1 {
		t.Fatalf("a non-terminal state must keep the watch alive")
	}
	if strings.Contains(m.notice, "101") {
		t.Fatalf("no watch notice expected yet, got %q", m.notice)
	}

	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: []Job{}, ok: true})
	if !strings.Contains(m.notice, "job 101 disappeared") {
		t.Fatalf("expected a disappearance notice, got %q", m.notice)
	}
	if m.watch.Len() != 0 {
		t.Fatalf("a fired watch must be removed")
	}
	if len(m.marks) != 0 {
		t.Fatalf("marks on vanished jobs must be dropped, got %v", m.marks)
	}
	if m.jobs.rowCount() != 0 {
		t.Fatalf("expected an empty jobs table, got %d rows", m.jobs.rowCount())
	}
}

func TestFailedFetchKeepsRowsAtModelLevel(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})
	if m.jobs.rowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", m.jobs.rowCount())
	}

	m.jobs.ref.refreshNow(func(int) tea.Cmd { return func() tea.Msg { return nil } })
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: nil, ok: false})
	if m.jobs.rowCount() != 2 {
		t.Fatalf("a failed fetch must keep the last rows, got %d", m.jobs.rowCount())
	}
	if !strings.HasPrefix(m.jobs.statusTag(), "update failed") {
		t.Fatalf("expected the failure marker, got %q", m.jobs.statusTag())
	}
}

func TestPauseSuppressesTickFetch(t *testing.T) {
	m := testModel()
	if !m.jobs.ref.accept(m.jobs.ref.gen) {
		t.Fatalf("the startup fetch must be acceptable")
	}

	m, _ = update(t, m, keyPress('p'))
	if !m.paused {
		t.Fatalf("expected the pause flag set")
	}

	tick := tickMsg{view: viewJobs, epoch: m.jobs.ref.epoch}
	m, cmd := update(t, m, tick)
	if cmd == nil {
		t.Fatalf("a paused tick must keep the chain alive")
	}
	if m.jobs.ref.busy {
		t.Fatalf("a paused tick must not fetch")
	}

	m, _ = update(t, m, keyPress('p'))
	m, cmd = update(t, m, tick)
	if cmd == nil {
		t.Fatalf("a live tick must reschedule")
	}
	if !m.jobs.ref.busy {
		t.Fatalf("a live tick must fetch")
	}
}

func TestSortKeysFollowActiveView(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, keyPress('s'))
	if got := m.jobs.vs.Sort; got.Column != "STATE" || got.Desc {
		t.Fatalf("expected STATE ascending, got %+v", got)
	}
	m, _ = update(t, m, keyPress('s'))
	if got := m.jobs.vs.Sort; got.Column != "STATE" || !got.Desc {
		t.Fatalf("expected STATE descending, got %+v", got)
	}
	m, _ = update(t, m, keyPress('N'))
	if got := m.jobs.vs.Sort; got.Column != "STATE" {
		t.Fatalf("an unmapped sort key must leave the jobs sort alone, got %+v", got)
	}

	m, _ = update(t, m, keyPress('2'))
	m, _ = update(t, m, keyPress('C'))
	if got := m.nodes.vs.Sort; got.Column != "CPU%" || got.Desc {
		t.Fatalf("expected CPU%% ascending on nodes, got %+v", got)
	}

	m, _ = update(t, m, keyPress('3'))
	m, _ = update(t, m, keyPress('N'))
	if got := m.parts.vs.Sort; got.Column != "NODES" || got.Desc {
		t.Fatalf("expected NODES ascending on partitions, got %+v", got)
	}
}

func TestMarkKeyStarsRowAndAdvances(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !m.marks["101"] {
		t.Fatalf("expected job 101 marked, got %v", m.marks)
	}
	if sel, _ := m.jobs.selected(); sel.JobID != "102" {
		t.Fatalf("marking must advance the cursor, got %s", sel.JobID)
	}
	if got := m.jobs.table.Rows()[0][0]; got != "*101" {
		t.Fatalf("expected the marked id starred, got %q", got)
	}

	m, _ = update(t, m, keyPress('x'))
	if m.confirm != confirmBulk {
		t.Fatalf("bulk cancel must ask for confirmation")
	}
	if len(m.bulkIDs) != 1 || m.bulkIDs[0] != "101" {
		t.Fatalf("expected the marked id staged, got %v", m.bulkIDs)
	}

	m, _ = update(t, m, keyPress('n'))
	if m.confirm != confirmNone || m.bulkIDs != nil {
		t.Fatalf("declining must clear the confirmation state")
	}
	if !m.marks["101"] {
		t.Fatalf("declining must keep the marks")
	}
}

func TestCancelKeyAsksThenActs(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, keyPress('c'))
	if m.confirm != confirmCancel || m.confirmJob.JobID != "101" {
		t.Fatalf("expected a cancel confirmation for job 101, got %+v", m.confirmJob)
	}

	m, cmd := update(t, m, keyPress('y'))
	if m.confirm != confirmNone {
		t.Fatalf("confirming must close the dialog")
	}
	if cmd == nil {
		t.Fatalf("confirming must issue the scancel command")
	}
}

func TestIntervalKeyAdvancesPreset(t *testing.T) {
	m := testModel()
	m, cmd := update(t, m, keyPress('i'))
	if cmd == nil {
		t.Fatalf("changing the interval must reschedule the tick chains")
	}
	for _, ref := range []*refresher{&m.jobs.ref, &m.nodes.ref, &m.parts.ref} {
		if got := ref.interval(); got != 5*time.Second {
			t.Fatalf("expected a 5s interval, got %s", got)
		}
	}
	if !strings.Contains(m.notice, "5s") {
		t.Fatalf("expected the new interval announced, got %q", m.notice)
	}
}

func TestMineKeyTogglesScope(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, keyPress('u'))
	if m.jobs.rowCount() != 1 {
		t.Fatalf("expected only alice's job, got %d rows", m.jobs.rowCount())
	}
	if !strings.Contains(m.notice, "alice") {
		t.Fatalf("expected the owner in the notice, got %q", m.notice)
	}

	m, _ = update(t, m, keyPress('u'))
	if m.jobs.rowCount() != 2 {
		t.Fatalf("expected all jobs back, got %d rows", m.jobs.rowCount())
	}
}

func TestWatchKeyToggles(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, keyPress('w'))
	if !m.watch.Watched("101") {
		t.Fatalf("expected job 101 watched")
	}
	if !strings.Contains(m.notice, "watching job 101") {
		t.Fatalf("expected a watch notice, got %q", m.notice)
	}

	m, _ = update(t, m, keyPress('w'))
	if m.watch.Watched("101") {
		t.Fatalf("expected the watch removed")
	}
	if !strings.Contains(m.notice, "stopped watching") {
		t.Fatalf("expected a stop notice, got %q", m.notice)
	}
}

func TestFilterKeyFlow(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, jobsFetchedMsg{gen: 0, jobs: sampleJobs(), ok: true})

	m, _ = update(t, m, keyPress('/'))
	if !m.filtering {
		t.Fatalf("expected filter input active")
	}
	for _, r := range "train" {
		m, _ = update(t, m, keyPress(r))
	}
	if m.jobs.query() != "train" {
		t.Fatalf("expected the query live while typing, got %q", m.jobs.query())
	}
	if m.jobs.rowCount() != 1 {
		t.Fatalf("expected 1 matching row, got %d", m.jobs.rowCount())
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Fatalf("enter must leave filter entry")
	}
	if m.jobs.query() != "train" {
		t.Fatalf("enter must keep the query, got %q", m.jobs.query())
	}

	m, _ = update(t, m, keyPress('/'))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.filtering {
		t.Fatalf("esc must leave filter entry")
	}
	if m.jobs.query() != "" {
		t.Fatalf("esc must clear the query, got %q", m.jobs.query())
	}
	if m.jobs.rowCount() != 2 {
		t.Fatalf("expected all rows back, got %d", m.jobs.rowCount())
	}
}

func TestWindowMessageIgnoresZeroSizes(t *testing.T) {
	m := testModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.width != 100 || m.height != 30 {
		t.Fatalf("expected 100x30, got %dx%d", m.width, m.height)
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 0, Height: 0})
	if m.width != 100 || m.height != 30 {
		t.Fatalf("a zero-size message must keep the last size, got %dx%d", m.width, m.height)
	}
}
