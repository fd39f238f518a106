package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	version          = "0.4.0"
	noticeTTL        = 4 * time.Second
	minContentHeight = 5
	envDebug         = "SQTOP_DEBUG"
)

// intervalPresets are the refresh periods the interval key cycles through.
var intervalPresets = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// KeyMap defines the keybindings
type KeyMap struct {
	Quit key.Binding
	Back key.Binding
	Help key.Binding

	Jobs       key.Binding
	Nodes      key.Binding
	Partitions key.Binding
	Health     key.Binding
	NextTab    key.Binding

	Up   key.Binding
	Down key.Binding

	Filter key.Binding
	Mine   key.Binding

	Refresh  key.Binding
	Pause    key.Binding
	Interval key.Binding

	Watch   key.Binding
	Inspect key.Binding
	Stdout  key.Binding
	Stderr  key.Binding
	Attach  key.Binding
	Follow  key.Binding

	Cancel  key.Binding
	Hold    key.Binding
	Release key.Binding
	Requeue key.Binding

	Mark       key.Binding
	BulkCancel key.Binding
	Copy       key.Binding

	SortState key.Binding
	SortName  key.Binding
	SortTime  key.Binding
	SortCPU   key.Binding
	SortMem   key.Binding
	SortNodes key.Binding
}

var keys = KeyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),

	Jobs:       key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "jobs")),
	Nodes:      key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "nodes")),
	Partitions: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "partitions")),
	Health:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "health")),
	NextTab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),

	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),

	Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Mine:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "my jobs")),

	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
	Interval: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "interval")),

	Watch:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "watch")),
	Inspect: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Stdout:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "stdout")),
	Stderr:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "stderr")),
	Attach:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "attach")),
	Follow:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),

	Cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
	Hold:    key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "hold")),
	Release: key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "release")),
	Requeue: key.NewBinding(key.WithKeys("Q"), key.WithHelp("Q", "requeue")),

	Mark:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
	BulkCancel: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel marked")),
	Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),

	SortState: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort state")),
	SortName:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "sort name")),
	SortTime:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "sort time")),
	SortCPU:   key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "sort cpu")),
	SortMem:   key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "sort mem")),
	SortNodes: key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "sort nodes")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.NextTab, k.Filter, k.Refresh, k.Inspect, k.Watch, k.Mark, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab, k.Jobs, k.Nodes, k.Partitions, k.Health},
		{k.Filter, k.Mine, k.SortState, k.SortName, k.SortTime, k.SortCPU, k.SortMem, k.SortNodes},
		{k.Refresh, k.Pause, k.Interval, k.Watch, k.Inspect, k.Stdout, k.Stderr, k.Attach},
		{k.Cancel, k.Hold, k.Release, k.Requeue, k.Mark, k.BulkCancel, k.Copy, k.Quit},
	}
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmCancel
	confirmBulk
)

type attachReadyMsg struct {
	jobID string
	argv  []string
	err   error
}

type attachDoneMsg struct {
	jobID string
	err   error
}

type actionDoneMsg struct {
	action string
	jobID  string
	err    error
}

type bulkDoneMsg struct {
	requested int
	failed    int
	err       error
}

type detailMsg struct {
	title string
	state string
	text  string
	err   error
}

// Model is the main application model
type Model struct {
	cfg   Config
	slurm *Slurm
	user  string

	jobs   pane[Job]
	nodes  pane[Node]
	parts  pane[Partition]
	health healthPane
	logOv  logOverlay

	watch *WatchRegistry
	marks map[string]bool

	active viewID
	paused bool

	filterInput textinput.Model
	filtering   bool

	help help.Model

	notice       string
	noticeWarn   bool
	noticeExpiry time.Time

	confirm    confirmKind
	confirmJob Job
	bulkIDs    []string

	detailOpen  bool
	detailTitle string
	detailState string
	rawDetail   string
	detailTable table.Model

	width  int
	height int

	initCmds []tea.Cmd
}

func NewModel(cfg Config, slurm *Slurm) Model {
	every := cfg.Interval()
	marks := make(map[string]bool)

	// Marked jobs get a star on their id; the closure shares the model's
	// marks map, so a rebuild after toggling repaints in place.
	markedJobCells := func(j Job) []string {
		cells := jobCells(j)
		if marks[j.JobID] {
			cells[0] = "*" + cells[0]
		}
		return cells
	}

	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.CharLimit = 50
	ti.Width = 20
	ti.Prompt = "/"
	ti.PromptStyle = lipgloss.NewStyle().Foreground(highlight)
	ti.TextStyle = lipgloss.NewStyle().Foreground(textStrong)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(subtle)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(highlight)

	detailCols := []table.Column{
		{Title: "Key", Width: 20},
		{Title: "Value", Width: 40},
	}
	dt := table.New(
		table.WithColumns(detailCols),
		table.WithFocused(false),
		table.WithHeight(10),
	)
	dtStyles := table.DefaultStyles()
	dtStyles.Header = tableHeaderStyle
	dtStyles.Selected = tableSelectedStyle
	dt.SetStyles(dtStyles)

	m := Model{
		cfg:         cfg,
		slurm:       slurm,
		user:        slurm.User,
		jobs:        newPane(viewJobs, every, jobColumns(), cfg.JobColumnCaps(), jobsPipeline(), markedJobCells, slurm.User),
		nodes:       newPane(viewNodes, every, nodeColumns(), nil, nodesPipeline(), nodeCells, ""),
		parts:       newPane(viewPartitions, every, partitionColumns(), nil, partitionsPipeline(), partitionCells, ""),
		health:      newHealthPane(slurm.Log, cfg.Health.HistorySize),
		logOv:       newLogOverlay(slurm),
		watch:       NewWatchRegistry(cfg.TerminalStateSet()),
		marks:       marks,
		active:      viewJobs,
		filterInput: ti,
		help:        help.New(),
		detailTable: dt,
	}

	// Arm the timer chains and kick off the first fetches here, before the
	// model is handed to the program: the counters these bump must survive
	// into the copy Update sees, and Init cannot mutate its receiver.
	m.initCmds = []tea.Cmd{
		m.jobs.ref.start(),
		m.nodes.ref.start(),
		m.parts.ref.start(),
		m.jobs.ref.refreshNow(func(gen int) tea.Cmd { return fetchJobsCmd(slurm, gen) }),
		m.nodes.ref.refreshNow(func(gen int) tea.Cmd { return fetchNodesCmd(slurm, gen) }),
		m.parts.ref.refreshNow(func(gen int) tea.Cmd { return fetchPartitionsCmd(slurm, gen) }),
	}

	width, height := detectTerminalSize()
	m.applyWindowSize(width, height)

	return m
}

func (m Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.initCmds)+1)
	cmds = append(cmds, m.initCmds...)
	cmds = append(cmds, initialWindowSizeCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.notice != "" && time.Now().After(m.noticeExpiry) {
		m.notice = ""
	}

	switch msg := msg.(type) {
	case tickMsg:
		cmd := m.dispatchTick(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		// Some terminals briefly report zero dimensions during font or
		// window changes; fall back to the last known or detected size.
		width := msg.Width
		height := msg.Height
		if width <= 0 {
			if m.width > 0 {
				width = m.width
			} else {
				width, _ = detectTerminalSize()
			}
		}
		if height <= 0 {
			if m.height > 0 {
				height = m.height
			} else {
				_, height = detectTerminalSize()
			}
		}
		m.applyWindowSize(width, height)
		return m, nil

	case jobsFetchedMsg:
		if m.jobs.applyFetch(msg.gen, msg.jobs, msg.ok) {
			states := make(map[string]string, len(msg.jobs))
			for _, j := range msg.jobs {
				states[j.JobID] = j.State
			}
			if events := m.watch.Observe(states); len(events) > 0 {
				for _, ev := range events {
					log.Printf("watch: job %s %s", ev.ID, ev.Reason)
				}
				m.setNotice(watchNoticeText(events))
			}
			// Marks on jobs that left the queue are meaningless; drop them.
			for id := range m.marks {
				if _, live := states[id]; !live {
					delete(m.marks, id)
				}
			}
		}
		m.health.rebuild()
		return m, nil

	case nodesFetchedMsg:
		m.nodes.applyFetch(msg.gen, msg.nodes, msg.ok)
		m.health.rebuild()
		return m, nil

	case partitionsFetchedMsg:
		m.parts.applyFetch(msg.gen, msg.partitions, msg.ok)
		m.health.rebuild()
		return m, nil

	case logTailMsg:
		m.logOv.onTail(msg)
		return m, nil

	case logPathsMsg:
		if msg.err != nil && msg.stdout == "" && msg.stderr == "" {
			m.setWarn("logs: " + shortenText(msg.err.Error(), 64))
			return m, nil
		}
		cmd := m.logOv.open(msg.jobID, msg.stdout, msg.stderr, msg.stream)
		return m, cmd

	case detailMsg:
		if msg.err != nil {
			m.setWarn("details: " + shortenText(msg.err.Error(), 64))
			return m, nil
		}
		m.detailOpen = true
		m.detailTitle = msg.title
		m.detailState = msg.state
		m.rawDetail = msg.text
		m.detailTable.SetRows(parseDetailRows(msg.text))
		m.detailTable.SetCursor(0)
		m.detailTable.Focus()
		m.sizeDetailTable()
		return m, nil

	case attachReadyMsg:
		if msg.err != nil {
			m.setWarn("attach: " + shortenText(msg.err.Error(), 64))
			return m, nil
		}
		jobID := msg.jobID
		c := exec.Command(msg.argv[0], msg.argv[1:]...)
		return m, tea.ExecProcess(c, func(err error) tea.Msg {
			return attachDoneMsg{jobID: jobID, err: err}
		})

	case attachDoneMsg:
		if msg.err != nil {
			m.setWarn(fmt.Sprintf("attach to %s exited: %s", msg.jobID, shortenText(msg.err.Error(), 48)))
		} else {
			m.setNotice("detached from job " + msg.jobID)
		}
		cmd := m.refreshJobsNow()
		return m, cmd

	case actionDoneMsg:
		if msg.err != nil {
			m.setWarn(fmt.Sprintf("%s %s failed: %s", msg.action, msg.jobID, shortenText(msg.err.Error(), 48)))
			return m, nil
		}
		m.setNotice(fmt.Sprintf("%s requested for job %s", msg.action, msg.jobID))
		cmd := m.refreshJobsNow()
		return m, cmd

	case bulkDoneMsg:
		if msg.failed > 0 {
			m.setWarn(fmt.Sprintf("cancelled %d of %d marked jobs", msg.requested-msg.failed, msg.requested))
		} else {
			m.setNotice(fmt.Sprintf("cancelled %d jobs", msg.requested))
		}
		cmd := m.refreshJobsNow()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// dispatchTick routes a timer beat to the refresher that owns it. Pausing
// suppresses the periodic fetches but keeps the chains alive.
func (m *Model) dispatchTick(msg tickMsg) tea.Cmd {
	slurm := m.slurm
	switch msg.view {
	case viewJobs:
		var fetch func(int) tea.Cmd
		if !m.paused {
			fetch = func(gen int) tea.Cmd { return fetchJobsCmd(slurm, gen) }
		}
		return m.jobs.ref.onTick(msg, fetch)
	case viewNodes:
		var fetch func(int) tea.Cmd
		if !m.paused {
			fetch = func(gen int) tea.Cmd { return fetchNodesCmd(slurm, gen) }
		}
		return m.nodes.ref.onTick(msg, fetch)
	case viewPartitions:
		var fetch func(int) tea.Cmd
		if !m.paused {
			fetch = func(gen int) tea.Cmd { return fetchPartitionsCmd(slurm, gen) }
		}
		return m.parts.ref.onTick(msg, fetch)
	case viewLog:
		return m.logOv.onTick(msg)
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.confirm != confirmNone {
		return m.handleConfirmKey(msg)
	}
	if m.logOv.visible {
		cmd, closed := m.logOv.handleKey(msg)
		if closed {
			m.applyWindowSize(m.width, m.height)
		}
		return m, cmd
	}
	if m.detailOpen {
		return m.handleDetailKey(msg)
	}
	if m.filtering {
		return m.handleFilterKey(msg)
	}
	return m.handleViewKey(msg)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		kind := m.confirm
		m.confirm = confirmNone
		switch kind {
		case confirmCancel:
			return m, jobActionCmd(m.slurm, actionCancel, m.confirmJob.JobID)
		case confirmBulk:
			ids := m.bulkIDs
			m.bulkIDs = nil
			m.clearMarks()
			m.jobs.rebuild()
			return m, bulkCancelCmd(m.slurm, ids)
		}
	case "n", "N", "esc", "q":
		m.confirm = confirmNone
		m.bulkIDs = nil
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		m.detailOpen = false
		m.detailTable.Blur()
		return m, nil
	case key.Matches(msg, keys.Copy):
		row := m.detailTable.SelectedRow()
		if len(row) == 2 && strings.TrimSpace(row[1]) != "" {
			m.setNotice("copied " + row[0])
			return m, osc52CopyCmd(row[1])
		}
		return m, nil
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	var cmd tea.Cmd
	m.detailTable, cmd = m.detailTable.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		if ops := m.paneFor(m.active); ops != nil {
			ops.setQuery("")
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if ops := m.paneFor(m.active); ops != nil {
		ops.setQuery(m.filterInput.Value())
	}
	return m, cmd
}

func (m Model) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch {
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.applyWindowSize(m.width, m.height)

	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Jobs):
		m.setActive(viewJobs)
	case key.Matches(msg, keys.Nodes):
		m.setActive(viewNodes)
	case key.Matches(msg, keys.Partitions):
		m.setActive(viewPartitions)
	case key.Matches(msg, keys.Health):
		if m.cfg.Health.Enabled {
			m.setActive(viewHealth)
		}
	case key.Matches(msg, keys.NextTab):
		m.setActive(m.nextView())

	case key.Matches(msg, keys.Up):
		m.moveActive(-1)
	case key.Matches(msg, keys.Down):
		m.moveActive(1)

	case key.Matches(msg, keys.Filter):
		if ops := m.paneFor(m.active); ops != nil {
			m.filtering = true
			m.filterInput.SetValue(ops.query())
			m.filterInput.CursorEnd()
			cmds = append(cmds, m.filterInput.Focus())
		}

	case key.Matches(msg, keys.Mine):
		if m.active == viewJobs {
			if m.jobs.toggleMine() {
				m.setNotice("showing jobs for " + m.user)
			} else {
				m.setNotice("showing all jobs")
			}
		}

	case key.Matches(msg, keys.Refresh):
		switch m.active {
		case viewJobs:
			cmds = append(cmds, m.refreshJobsNow())
		case viewNodes:
			cmds = append(cmds, m.refreshNodesNow())
		case viewPartitions:
			cmds = append(cmds, m.refreshPartitionsNow())
		case viewHealth:
			m.health.rebuild()
		}

	case key.Matches(msg, keys.Pause):
		m.paused = !m.paused

	case key.Matches(msg, keys.Interval):
		cmds = append(cmds, m.cycleInterval())

	case key.Matches(msg, keys.Watch):
		if m.active == viewJobs {
			if job, ok := m.jobs.selected(); ok {
				if m.watch.Toggle(job.JobID, job.State) {
					m.setNotice("watching job " + job.JobID)
				} else {
					m.setNotice("stopped watching job " + job.JobID)
				}
			}
		}

	case key.Matches(msg, keys.Inspect):
		switch m.active {
		case viewJobs:
			if job, ok := m.jobs.selected(); ok {
				cmds = append(cmds, inspectJobCmd(m.slurm, job))
			}
		case viewNodes:
			if node, ok := m.nodes.selected(); ok {
				cmds = append(cmds, inspectNodeCmd(m.slurm, node))
			}
		case viewPartitions:
			if part, ok := m.parts.selected(); ok {
				cmds = append(cmds, inspectPartitionCmd(m.slurm, part))
			}
		}

	case key.Matches(msg, keys.Stdout), key.Matches(msg, keys.Stderr):
		if m.active == viewJobs {
			if job, ok := m.jobs.selected(); ok {
				stream := "stdout"
				if key.Matches(msg, keys.Stderr) {
					stream = "stderr"
				}
				m.setNotice("resolving logs for job " + job.JobID)
				cmds = append(cmds, resolveLogsCmd(m.slurm, job.JobID, stream))
			}
		}

	case key.Matches(msg, keys.Attach):
		if m.active != viewJobs {
			break
		}
		if !m.cfg.Attach.Enabled {
			m.setWarn("attach is disabled in config")
			break
		}
		if job, ok := m.jobs.selected(); ok {
			if !job.IsRunning() {
				m.setWarn("job " + job.JobID + " is not running")
				break
			}
			cmds = append(cmds, prepareAttachCmd(m.slurm, job, m.cfg.Attach))
		}

	case key.Matches(msg, keys.Cancel):
		if m.active == viewJobs {
			if job, ok := m.jobs.selected(); ok {
				if m.cfg.Safety.ConfirmCancelSingle {
					m.confirm = confirmCancel
					m.confirmJob = job
				} else {
					cmds = append(cmds, jobActionCmd(m.slurm, actionCancel, job.JobID))
				}
			}
		}

	case key.Matches(msg, keys.Hold):
		cmds = append(cmds, m.selectedJobAction(actionHold))
	case key.Matches(msg, keys.Release):
		cmds = append(cmds, m.selectedJobAction(actionRelease))
	case key.Matches(msg, keys.Requeue):
		cmds = append(cmds, m.selectedJobAction(actionRequeue))

	case key.Matches(msg, keys.Mark):
		if m.active == viewJobs {
			if job, ok := m.jobs.selected(); ok {
				if m.marks[job.JobID] {
					delete(m.marks, job.JobID)
				} else {
					m.marks[job.JobID] = true
				}
				m.jobs.rebuild()
				m.jobs.move(1)
			}
		}

	case key.Matches(msg, keys.BulkCancel):
		if m.active == viewJobs {
			ids := m.markedIDs()
			if len(ids) == 0 {
				m.setWarn("no jobs marked")
				break
			}
			if m.cfg.Safety.ConfirmBulkActions {
				m.confirm = confirmBulk
				m.bulkIDs = ids
			} else {
				m.clearMarks()
				m.jobs.rebuild()
				cmds = append(cmds, bulkCancelCmd(m.slurm, ids))
			}
		}

	case key.Matches(msg, keys.Copy):
		if text, label, ok := m.selectedIdentity(); ok {
			m.setNotice("copied " + label)
			cmds = append(cmds, osc52CopyCmd(text))
		}

	default:
		m.handleSortKey(msg)
	}

	return m, tea.Batch(cmds...)
}

// handleSortKey maps the per-view sort keys onto pipeline columns and
// reports whether the key was consumed.
func (m *Model) handleSortKey(msg tea.KeyMsg) bool {
	var column string
	switch m.active {
	case viewJobs:
		switch {
		case key.Matches(msg, keys.SortState):
			column = "STATE"
		case key.Matches(msg, keys.SortName):
			column = "NAME"
		case key.Matches(msg, keys.SortTime):
			column = "TIME"
		}
	case viewNodes:
		switch {
		case key.Matches(msg, keys.SortState):
			column = "STATE"
		case key.Matches(msg, keys.SortCPU):
			column = "CPU%"
		case key.Matches(msg, keys.SortMem):
			column = "MEM FREE"
		}
	case viewPartitions:
		switch {
		case key.Matches(msg, keys.SortState):
			column = "PARTITION"
		case key.Matches(msg, keys.SortNodes):
			column = "NODES"
		}
	}
	if column == "" {
		return false
	}
	m.paneFor(m.active).cycleSort(column)
	return true
}

func (m *Model) paneFor(v viewID) paneOps {
	switch v {
	case viewJobs:
		return &m.jobs
	case viewNodes:
		return &m.nodes
	case viewPartitions:
		return &m.parts
	}
	return nil
}

func (m *Model) setActive(v viewID) {
	if m.filtering {
		m.filtering = false
		m.filterInput.Blur()
	}
	m.active = v
	if v == viewHealth {
		m.health.rebuild()
	}
}

func (m *Model) tabOrder() []viewID {
	order := []viewID{viewJobs, viewNodes, viewPartitions}
	if m.cfg.Health.Enabled {
		order = append(order, viewHealth)
	}
	return order
}

func (m *Model) nextView() viewID {
	order := m.tabOrder()
	for i, v := range order {
		if v == m.active {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func (m *Model) moveActive(delta int) {
	if m.active == viewHealth {
		m.health.move(delta)
		return
	}
	if ops := m.paneFor(m.active); ops != nil {
		ops.move(delta)
	}
}

func (m *Model) selectedJobAction(action string) tea.Cmd {
	if m.active != viewJobs {
		return nil
	}
	job, ok := m.jobs.selected()
	if !ok {
		return nil
	}
	return jobActionCmd(m.slurm, action, job.JobID)
}

// selectedIdentity returns the copyable identity of the row under the
// cursor in the active view.
func (m *Model) selectedIdentity() (text, label string, ok bool) {
	switch m.active {
	case viewJobs:
		if job, sel := m.jobs.selected(); sel {
			return job.JobID, "job id " + job.JobID, true
		}
	case viewNodes:
		if node, sel := m.nodes.selected(); sel {
			return node.Name, "node " + node.Name, true
		}
	case viewPartitions:
		if part, sel := m.parts.selected(); sel {
			name := strings.TrimSuffix(part.Name, "*")
			return name, "partition " + name, true
		}
	case viewHealth:
		if stat, sel := m.health.selected(); sel {
			return stat.Command, "command", true
		}
	}
	return "", "", false
}

func (m *Model) markedIDs() []string {
	ids := make([]string, 0, len(m.marks))
	for id := range m.marks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clearMarks empties the marks map in place; the jobs pane's cell closure
// holds the same map.
func (m *Model) clearMarks() {
	for id := range m.marks {
		delete(m.marks, id)
	}
}

// cycleInterval advances all entity refreshers to the next preset period.
func (m *Model) cycleInterval() tea.Cmd {
	current := m.jobs.ref.interval()
	next := intervalPresets[0]
	for i, preset := range intervalPresets {
		if current == preset {
			next = intervalPresets[(i+1)%len(intervalPresets)]
			break
		}
	}
	cmds := []tea.Cmd{
		m.jobs.ref.setInterval(next),
		m.nodes.ref.setInterval(next),
		m.parts.ref.setInterval(next),
	}
	m.setNotice("refresh every " + next.String())
	return tea.Batch(cmds...)
}

func (m *Model) refreshJobsNow() tea.Cmd {
	slurm := m.slurm
	return m.jobs.ref.refreshNow(func(gen int) tea.Cmd { return fetchJobsCmd(slurm, gen) })
}

func (m *Model) refreshNodesNow() tea.Cmd {
	slurm := m.slurm
	return m.nodes.ref.refreshNow(func(gen int) tea.Cmd { return fetchNodesCmd(slurm, gen) })
}

func (m *Model) refreshPartitionsNow() tea.Cmd {
	slurm := m.slurm
	return m.parts.ref.refreshNow(func(gen int) tea.Cmd { return fetchPartitionsCmd(slurm, gen) })
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeWarn = false
	m.noticeExpiry = time.Now().Add(noticeTTL)
}

func (m *Model) setWarn(text string) {
	m.notice = text
	m.noticeWarn = true
	m.noticeExpiry = time.Now().Add(noticeTTL)
}

func watchNoticeText(events []WatchEvent) string {
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		if len(parts) == 3 {
			parts = append(parts, fmt.Sprintf("+%d more", len(events)-3))
			break
		}
		parts = append(parts, fmt.Sprintf("job %s %s", ev.ID, ev.Reason))
	}
	return strings.Join(parts, " · ")
}

// --- Layout ---

func (m *Model) applyWindowSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	m.width = width
	m.height = height
	m.help.Width = width - 2

	switch {
	case width >= 110:
		m.filterInput.Width = 20
	case width >= 80:
		m.filterInput.Width = 12
	default:
		m.filterInput.Width = 10
	}

	headerHeight := lipgloss.Height(m.renderTabs()) + lipgloss.Height(m.renderPills())
	helpHeight := lipgloss.Height(m.help.View(keys))
	bodyHeight := height - headerHeight - helpHeight - 1
	if bodyHeight < minContentHeight {
		bodyHeight = minContentHeight
	}

	contentWidth := width - 2
	if contentWidth < 20 {
		contentWidth = 20
	}

	m.jobs.resize(contentWidth, bodyHeight)
	m.nodes.resize(contentWidth, bodyHeight)
	m.parts.resize(contentWidth, bodyHeight)
	m.health.resize(contentWidth, bodyHeight)
	m.logOv.resize(contentWidth, height-2)
	m.sizeDetailTable()
}

func (m *Model) sizeDetailTable() {
	w := m.width - 8
	if w < 10 {
		w = 10
	}
	keyW := w * 25 / 100
	if keyW < 8 {
		keyW = 8
	}
	valW := w - keyW - 1
	if valW < 1 {
		valW = 1
	}
	m.detailTable.SetColumns([]table.Column{
		{Title: "Key", Width: keyW},
		{Title: "Value", Width: valW},
	})
	m.detailTable.SetWidth(w)
	h := m.height - 7
	if h < minContentHeight {
		h = minContentHeight
	}
	m.detailTable.SetHeight(h)
}

// --- View ---

func (m Model) View() string {
	if m.logOv.visible {
		view := m.logOv.view()
		view = clampViewHeight(view, m.height)
		view = clampViewWidth(view, m.width)
		return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, view)
	}

	if m.confirm != confirmNone {
		return m.viewConfirm()
	}

	if m.detailOpen {
		return m.viewDetail()
	}

	sections := []string{
		m.renderTabs(),
		m.renderPills(),
		m.bodyView(),
		m.help.View(keys),
		m.noticeLine(),
	}
	full := lipgloss.JoinVertical(lipgloss.Left, sections...)
	full = clampViewHeight(full, m.height)
	full = clampViewWidth(full, m.width)
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, full)
}

func (m Model) renderTabs() string {
	parts := []string{panelTitleStyle.Render("sqtop")}
	for _, v := range m.tabOrder() {
		label := fmt.Sprintf("%d %s", int(v)+1, v)
		style := tabStyle
		if v == m.active {
			style = tabActiveStyle
		}
		parts = append(parts, style.Render(label))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(joinWithGap(parts, 1))
}

func (m Model) renderPills() string {
	var required []string
	if m.filtering {
		required = append(required, filterBoxStyle.Render(m.filterInput.View()))
	}

	if ops := m.paneFor(m.active); ops != nil {
		tag := ops.statusTag()
		if strings.HasPrefix(tag, "update failed") {
			required = append(required, metaAlertPillStyle.Render(tag))
		} else {
			required = append(required, metaPillStyle.Render(tag))
		}
		for _, t := range ops.stateTags() {
			required = append(required, metaMutedPillStyle.Render(t))
		}
	} else {
		required = append(required, metaPillStyle.Render("telemetry"))
	}

	if m.paused {
		required = append(required, metaMutedPillStyle.Copy().Background(accentOrange).Foreground(textOnAccent).Render("paused"))
	}

	var optional []string
	optional = append(optional, metaMutedPillStyle.Render("every "+m.jobs.ref.interval().String()))
	if summary := m.activeSummary(); summary != "" {
		optional = append(optional, metaMutedPillStyle.Render(summary))
	}
	if n := m.watch.Len(); n > 0 {
		optional = append(optional, metaMutedPillStyle.Render(fmt.Sprintf("watch %d", n)))
	}
	if n := len(m.marks); n > 0 {
		optional = append(optional, metaMutedPillStyle.Render(fmt.Sprintf("marked %d", n)))
	}

	// Keep a one-line header by dropping optional pills until it fits.
	parts := append([]string{}, required...)
	parts = append(parts, optional...)
	for len(parts) > len(required) && lipgloss.Width(joinWithGap(parts, 1)) > m.width {
		parts = parts[:len(parts)-1]
	}

	return lipgloss.NewStyle().MaxWidth(m.width).Render(joinWithGap(parts, 1))
}

func (m Model) activeSummary() string {
	switch m.active {
	case viewJobs:
		return jobsSummary(m.jobs.snap.Items)
	case viewNodes:
		return nodesSummary(m.nodes.snap.Items)
	case viewPartitions:
		return partitionsSummary(m.parts.snap.Items)
	case viewHealth:
		return m.health.summary()
	}
	return ""
}

func (m Model) bodyView() string {
	if m.active == viewHealth {
		return m.health.view()
	}
	return m.paneFor(m.active).view()
}

func (m Model) noticeLine() string {
	if m.notice != "" {
		style := copyStatusStyle
		if m.noticeWarn {
			style = noticeStyle
		}
		return lipgloss.NewStyle().MaxWidth(m.width).Render(style.Render(m.notice))
	}
	if m.filtering {
		return filterHintStyle.Render("enter keep · esc clear")
	}
	return filterHintStyle.Render("press / to filter · ? for all keys")
}

func (m Model) viewConfirm() string {
	var prompt string
	switch m.confirm {
	case confirmCancel:
		prompt = fmt.Sprintf("Cancel job %s?\n\n%s\n\n[y/N]", m.confirmJob.JobID, shortenText(m.confirmJob.Name, 40))
	case confirmBulk:
		prompt = fmt.Sprintf("Cancel %d marked jobs?\n\n%s\n\n[y/N]", len(m.bulkIDs), shortenText(strings.Join(m.bulkIDs, " "), 40))
	}
	dialog := dialogStyle.Render(prompt)
	dialog = clampViewHeight(dialog, m.height)
	dialog = clampViewWidth(dialog, m.width)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

func (m Model) viewDetail() string {
	title := metaPillStyle.Copy().
		Foreground(textStrong).
		BorderForeground(panelBorder).
		Render(m.detailTitle)
	badge := renderStateBadge("", m.detailState)
	hint := metaMutedPillStyle.Render(detailHintText(m.width))

	var top string
	if m.width < 90 {
		top = lipgloss.JoinVertical(lipgloss.Left, joinWithGap([]string{title, badge}, 1), hint)
	} else {
		top = joinWithGap([]string{title, badge, hint}, 1)
	}
	top = lipgloss.NewStyle().MaxWidth(m.width).Render(top)

	panel := detailsStyle.Copy().Width(m.width - 2).Render(m.detailTable.View())

	view := lipgloss.JoinVertical(lipgloss.Left, top, panel, m.help.View(keys))
	view = clampViewHeight(view, m.height)
	view = clampViewWidth(view, m.width)
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, view)
}

func detailHintText(width int) string {
	switch {
	case width >= 56:
		return "esc close · y copy value · ↑/↓ scroll"
	case width >= 34:
		return "esc close · y copy"
	default:
		return "esc · y"
	}
}

// --- Commands ---

func fetchJobsCmd(slurm *Slurm, gen int) tea.Cmd {
	return func() tea.Msg {
		jobs, err := slurm.FetchJobs()
		if err != nil {
			log.Printf("fetch jobs: %v", err)
			return jobsFetchedMsg{gen: gen, ok: false}
		}
		return jobsFetchedMsg{gen: gen, jobs: jobs, ok: true}
	}
}

func fetchNodesCmd(slurm *Slurm, gen int) tea.Cmd {
	return func() tea.Msg {
		nodes, err := slurm.FetchNodes()
		if err != nil {
			log.Printf("fetch nodes: %v", err)
			return nodesFetchedMsg{gen: gen, ok: false}
		}
		return nodesFetchedMsg{gen: gen, nodes: nodes, ok: true}
	}
}

func fetchPartitionsCmd(slurm *Slurm, gen int) tea.Cmd {
	return func() tea.Msg {
		partitions, err := slurm.FetchPartitions()
		if err != nil {
			log.Printf("fetch partitions: %v", err)
			return partitionsFetchedMsg{gen: gen, ok: false}
		}
		return partitionsFetchedMsg{gen: gen, partitions: partitions, ok: true}
	}
}

func inspectJobCmd(slurm *Slurm, job Job) tea.Cmd {
	return func() tea.Msg {
		text, err := slurm.JobDetails(job.JobID)
		return detailMsg{title: "job " + job.JobID, state: job.State, text: text, err: err}
	}
}

func inspectNodeCmd(slurm *Slurm, node Node) tea.Cmd {
	return func() tea.Msg {
		text, err := slurm.NodeDetails(node.Name)
		return detailMsg{title: "node " + node.Name, state: node.State, text: text, err: err}
	}
}

func inspectPartitionCmd(slurm *Slurm, part Partition) tea.Cmd {
	return func() tea.Msg {
		name := strings.TrimSuffix(part.Name, "*")
		text, err := slurm.PartitionDetails(part.Name)
		return detailMsg{title: "partition " + name, state: part.State, text: text, err: err}
	}
}

func resolveLogsCmd(slurm *Slurm, jobID, stream string) tea.Cmd {
	return func() tea.Msg {
		stdout, stderr, err := slurm.ResolveLogPaths(jobID)
		if err != nil {
			log.Printf("resolve logs %s: %v", jobID, err)
		}
		return logPathsMsg{jobID: jobID, stdout: stdout, stderr: stderr, err: err, stream: stream}
	}
}

func jobActionCmd(slurm *Slurm, action, jobID string) tea.Cmd {
	return func() tea.Msg {
		err := slurm.RunJobAction(action, jobID)
		if err != nil {
			log.Printf("%s %s: %v", action, jobID, err)
		}
		return actionDoneMsg{action: action, jobID: jobID, err: err}
	}
}

func prepareAttachCmd(slurm *Slurm, job Job, cfg AttachConfig) tea.Cmd {
	return func() tea.Msg {
		node, err := slurm.FirstNode(job.NodeList)
		if err != nil {
			return attachReadyMsg{jobID: job.JobID, err: err}
		}
		return attachReadyMsg{jobID: job.JobID, argv: BuildAttachCommand(job.JobID, node, cfg)}
	}
}

func bulkCancelCmd(slurm *Slurm, ids []string) tea.Cmd {
	return func() tea.Msg {
		var g errgroup.Group
		g.SetLimit(4)
		var mu sync.Mutex
		failed := 0
		for _, id := range ids {
			g.Go(func() error {
				if err := slurm.CancelJob(id); err != nil {
					log.Printf("cancel %s: %v", id, err)
					mu.Lock()
					failed++
					mu.Unlock()
					return err
				}
				return nil
			})
		}
		err := g.Wait()
		return bulkDoneMsg{requested: len(ids), failed: failed, err: err}
	}
}

func osc52CopyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		seq := osc52.New(text).Limit(100 * 1024)

		termEnv := strings.ToLower(os.Getenv("TERM"))
		if tmux := os.Getenv("TMUX"); tmux != "" || strings.HasPrefix(termEnv, "tmux") {
			seq = seq.Tmux()
		} else if strings.HasPrefix(termEnv, "screen") {
			seq = seq.Screen()
		}

		_, _ = seq.WriteTo(os.Stdout)
		return nil
	}
}

func initialWindowSizeCmd() tea.Cmd {
	return func() tea.Msg {
		width, height := detectTerminalSize()
		return tea.WindowSizeMsg{Width: width, Height: height}
	}
}

func detectTerminalSize() (int, int) {
	width, height, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}

// --- Helpers ---

// parseDetailRows turns scontrol key=value output into table rows,
// falling back to the accounting layout when the text is pipe-separated.
func parseDetailRows(text string) []table.Row {
	text = strings.TrimSpace(text)
	if text == "" {
		return []table.Row{{"Info", "no details available"}}
	}
	if !strings.Contains(text, "=") && strings.Contains(text, "|") {
		return parseAccountingRows(text)
	}

	var rows []table.Row
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			parts := strings.SplitN(field, "=", 2)
			if len(parts) != 2 {
				continue
			}
			val := parts[1]
			if val == "" {
				val = "(empty)"
			}
			rows = append(rows, table.Row{parts[0], val})
		}
	}
	if len(rows) == 0 {
		return []table.Row{{"Info", "no details available"}}
	}
	return rows
}

// accountingLabels matches the sacct format JobDetails falls back to.
var accountingLabels = []string{
	"JobID",
	"JobName",
	"User",
	"State",
	"Partition",
	"Elapsed",
	"AllocNodes",
	"NodeList",
	"Start",
	"End",
	"ExitCode",
}

func parseAccountingRows(text string) []table.Row {
	var fields []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		jobID := strings.TrimSpace(parts[0])
		if jobID == "" {
			continue
		}
		// Prefer the top-level job row over step rows like "123.batch".
		if !strings.Contains(jobID, ".") {
			fields = parts
			break
		}
		if len(fields) == 0 {
			fields = parts
		}
	}
	if len(fields) == 0 {
		return []table.Row{{"Info", "no accounting details found"}}
	}

	var rows []table.Row
	for i, label := range accountingLabels {
		if i >= len(fields) {
			break
		}
		val := strings.TrimSpace(fields[i])
		if val == "" {
			continue
		}
		rows = append(rows, table.Row{label, val})
		if label == "State" {
			if code := StateCode(val); code != "" && code != val {
				rows = append(rows, table.Row{"StateCode", code})
			}
		}
	}
	if len(rows) == 0 {
		return []table.Row{{"Info", "no accounting details found"}}
	}
	return rows
}

func joinWithGap(parts []string, gap int) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	if len(filtered) == 0 {
		return ""
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	if gap <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Left, filtered...)
	}
	spacer := lipgloss.NewStyle().Width(gap).Render(" ")
	row := filtered[0]
	for _, part := range filtered[1:] {
		row = lipgloss.JoinHorizontal(lipgloss.Left, row, spacer, part)
	}
	return row
}

func renderStateBadge(state, label string) string {
	code := strings.ToUpper(strings.TrimSpace(state))
	if code == "" && label != "" {
		code = StateCode(label)
	}

	caption := strings.TrimSpace(label)
	if caption == "" {
		caption = strings.ToUpper(code)
	} else {
		caption = strings.ToUpper(caption)
		if code != "" {
			caption = fmt.Sprintf("%s (%s)", caption, code)
		}
	}
	if caption == "" {
		caption = "UNKNOWN"
	}

	return statusBadgeStyle.Copy().
		Background(statusColor(code)).
		Render(caption)
}

func shortenText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func clampViewWidth(view string, width int) string {
	if width <= 0 {
		return view
	}
	lines := strings.Split(strings.ReplaceAll(view, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = truncate.String(line, uint(width))
		}
	}
	return strings.Join(lines, "\n")
}

func clampViewHeight(view string, height int) string {
	if height <= 0 {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(view, "\r\n", "\n"), "\n")
	if len(lines) <= height {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:height], "\n")
}

// --- Entrypoint ---

func newRootCmd() *cobra.Command {
	var cfgPath string
	var interval float64

	cmd := &cobra.Command{
		Use:     "sqtop",
		Short:   "Terminal dashboard for Slurm jobs, nodes, and partitions",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := LoadConfig(cfgPath)
			if cmd.Flags().Changed("interval") && interval > 0 {
				cfg.RefreshInterval = interval
			}
			return runDashboard(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", defaultConfigPath, "path to the config file")
	cmd.Flags().Float64VarP(&interval, "interval", "n", 0, "refresh interval in seconds (overrides config)")
	return cmd
}

func runDashboard(cfg Config) error {
	if os.Getenv(envDebug) != "" {
		f, err := tea.LogToFile("sqtop-debug.log", "debug")
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	slurm := NewSlurm(NewCommandLog(commandLogCapacity))
	m := NewModel(cfg, slurm)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run dashboard: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
