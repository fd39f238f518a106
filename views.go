package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// viewID identifies a refresh target: the three entity tabs, the health
// tab, and the log overlay's tail loop.
type viewID int

const (
	viewJobs viewID = iota
	viewNodes
	viewPartitions
	viewHealth
	viewLog
)

func (v viewID) String() string {
	switch v {
	case viewJobs:
		return "jobs"
	case viewNodes:
		return "nodes"
	case viewPartitions:
		return "partitions"
	case viewHealth:
		return "health"
	case viewLog:
		return "log"
	default:
		return "unknown"
	}
}

// Fetch results carry the gen of the refresher that issued them so
// results from a torn-down fetch can be recognized and dropped.
type jobsFetchedMsg struct {
	gen  int
	jobs []Job
	ok   bool
}

type nodesFetchedMsg struct {
	gen   int
	nodes []Node
	ok    bool
}

type partitionsFetchedMsg struct {
	gen        int
	partitions []Partition
	ok         bool
}

// pane is one dashboard tab: a table fed by its own refresher through the
// filter/sort pipeline, with layout and cursor state carried across
// rebuilds.
type pane[E any] struct {
	table table.Model
	ref   refresher
	pipe  Pipeline[E]
	vs    ViewState

	snap Snapshot[E]
	rows []E

	specs  []columnSpec
	caps   map[string]int
	cells  func(E) []string
	layout tableLayout

	user   string
	width  int
	height int

	lastUpdate   time.Time
	updateFailed bool
	failures     int
}

func newPane[E any](view viewID, every time.Duration, specs []columnSpec, caps map[string]int, pipe Pipeline[E], cells func(E) []string, user string) pane[E] {
	return pane[E]{
		table: newPaneTable(),
		ref:   newRefresher(view, every),
		pipe:  pipe,
		specs: specs,
		caps:  caps,
		cells: cells,
		user:  user,
	}
}

func newPaneTable() table.Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = tableHeaderStyle
	s.Selected = tableSelectedStyle
	t.SetStyles(s)
	return t
}

// applyFetch ingests one fetch result and reports whether a fresh
// snapshot was applied. Results from a stale gen are dropped whole;
// failed fetches keep the previous rows on screen and only move the
// staleness marker.
func (p *pane[E]) applyFetch(gen int, items []E, ok bool) bool {
	if !p.ref.accept(gen) {
		return false
	}
	if !ok {
		p.failures++
		p.updateFailed = true
		return false
	}
	p.failures = 0
	p.updateFailed = false
	p.lastUpdate = time.Now()
	p.snap = Snapshot[E]{Items: items, Seq: p.ref.nextSeq(), Taken: p.lastUpdate}
	p.rebuild()
	return true
}

// rebuild runs the pipeline, recomputes the layout, and restores the
// cursor by identity. It is the only writer of the table widget's rows
// and columns.
func (p *pane[E]) rebuild() {
	st := captureState(p.rows, p.pipe.ID, p.table.Cursor(), 0)
	p.rows = p.pipe.Apply(p.snap, p.vs, p.user)

	cells := make([][]string, len(p.rows))
	for i, row := range p.rows {
		cells[i] = p.cells(row)
	}

	lay := computeLayout(p.specs, p.width, cells, p.caps)
	if !lay.equal(p.layout) {
		// Rows must go before the column set changes or the widget
		// would index old rows against the new columns.
		p.table.SetRows([]table.Row{})
		p.table.SetColumns(lay.columns())
		p.layout = lay
	}

	tableRows := make([]table.Row, len(cells))
	for i, c := range cells {
		tableRows[i] = p.layout.project(c)
	}
	p.table.SetRows(tableRows)

	if cursor, _ := restoreState(p.rows, p.pipe.ID, st); cursor >= 0 {
		p.table.SetCursor(cursor)
	}
}

// resize updates the pane geometry. Row order cannot change here, so the
// anchor lookup inside rebuild finds the cursor right where it was.
func (p *pane[E]) resize(width, height int) {
	p.width = width
	p.table.SetWidth(width)
	p.table.SetHeight(height)
	p.rebuild()
}

func (p *pane[E]) setQuery(query string) {
	p.vs.Query = query
	p.rebuild()
}

func (p *pane[E]) query() string {
	return p.vs.Query
}

func (p *pane[E]) toggleMine() bool {
	p.vs.MineOnly = !p.vs.MineOnly
	p.rebuild()
	return p.vs.MineOnly
}

func (p *pane[E]) cycleSort(column string) {
	p.vs.CycleSort(column)
	p.rebuild()
}

// move steps the cursor with wraparound at both ends.
func (p *pane[E]) move(delta int) {
	if cursor := cycleCursor(p.table.Cursor(), delta, len(p.rows)); cursor >= 0 {
		p.table.SetCursor(cursor)
	}
}

// selected returns the entity under the cursor.
func (p *pane[E]) selected() (E, bool) {
	var zero E
	idx := p.table.Cursor()
	if idx < 0 || idx >= len(p.rows) {
		return zero, false
	}
	return p.rows[idx], true
}

func (p *pane[E]) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd
}

func (p *pane[E]) view() string {
	return p.table.View()
}

func (p *pane[E]) rowCount() int {
	return len(p.rows)
}

// statusTag describes data freshness for the header.
func (p *pane[E]) statusTag() string {
	if p.updateFailed {
		tag := "update failed"
		if p.failures > 1 {
			tag = fmt.Sprintf("update failed ×%d", p.failures)
		}
		if !p.lastUpdate.IsZero() {
			tag += " · showing " + p.lastUpdate.Format("15:04:05")
		}
		return tag
	}
	if p.lastUpdate.IsZero() {
		return "loading"
	}
	return "updated " + p.lastUpdate.Format("15:04:05")
}

// stateTags renders the active filter/sort indicators for the header.
func (p *pane[E]) stateTags() []string {
	var tags []string
	if q := strings.TrimSpace(p.vs.Query); q != "" {
		tags = append(tags, "filter:"+q)
	}
	if p.vs.MineOnly {
		tags = append(tags, "mine")
	}
	if p.vs.Sort.Column != "" {
		dir := "↑"
		if p.vs.Sort.Desc {
			dir = "↓"
		}
		tags = append(tags, "sort:"+p.vs.Sort.Column+dir)
	}
	return tags
}

// paneOps is the type-erased surface the update loop uses to drive
// whichever pane is active; entity-specific operations stay behind
// explicit switches.
type paneOps interface {
	rebuild()
	resize(width, height int)
	setQuery(query string)
	query() string
	toggleMine() bool
	cycleSort(column string)
	move(delta int)
	update(msg tea.Msg) tea.Cmd
	view() string
	rowCount() int
	statusTag() string
	stateTags() []string
}

// jobStateRank buckets job state codes for the default ordering:
// finishing jobs surface first, then running, then queued, then the rest.
var jobStateRank = map[string]int{
	"CG": 0,
	"R":  1,
	"PD": 2,
}

const jobStateRankOther = 3

func jobRank(j Job) int {
	if rank, ok := jobStateRank[j.StateCode()]; ok {
		return rank
	}
	return jobStateRankOther
}

// numericID parses a job id for ordering; array and het job ids that do
// not parse rank first.
func numericID(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}

func jobsPipeline() Pipeline[Job] {
	return Pipeline[Job]{
		ID: func(j Job) string { return j.JobID },
		Haystack: func(j Job) []string {
			return []string{j.Name, j.State, j.StateCode(), j.Partition}
		},
		Owner: func(j Job) string { return j.User },
		Default: func(a, b Job) bool {
			ra, rb := jobRank(a), jobRank(b)
			if ra != rb {
				return ra < rb
			}
			return numericID(a.JobID) < numericID(b.JobID)
		},
		Columns: map[string]func(a, b Job) bool{
			"STATE": func(a, b Job) bool { return a.State < b.State },
			"NAME":  func(a, b Job) bool { return a.Name < b.Name },
			"TIME":  func(a, b Job) bool { return parseElapsed(a.Time) < parseElapsed(b.Time) },
		},
	}
}

func jobColumns() []columnSpec {
	return []columnSpec{
		{Title: "JOBID", MinWidth: 8, Threshold: 0},
		{Title: "NAME", MinWidth: 16, Threshold: 0},
		{Title: "STATE", MinWidth: 12, Threshold: 0},
		{Title: "USER", MinWidth: 10, Threshold: 65},
		{Title: "TIME", MinWidth: 10, Threshold: 65},
		{Title: "PARTITION", MinWidth: 11, Threshold: 90},
		{Title: "NODES", MinWidth: 6, Threshold: 90},
		{Title: "CPUS", MinWidth: 6, Threshold: 105},
		{Title: "TIME_LIMIT", MinWidth: 10, Threshold: 105},
		{Title: "NODELIST(REASON)", MinWidth: 20, Threshold: 120},
	}
}

func jobCells(j Job) []string {
	return []string{
		j.JobID,
		j.Name,
		j.State,
		j.User,
		j.Time,
		j.Partition,
		j.Nodes,
		j.CPUs,
		j.TimeLimit,
		j.NodeListOrReason(),
	}
}

// parseElapsed converts Slurm time formats (MM:SS, HH:MM:SS, D-HH:MM:SS)
// to seconds for sorting. Unparseable values sort first.
func parseElapsed(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	days := 0
	if i := strings.IndexByte(s, '-'); i >= 0 {
		days = atoiOrZero(s[:i])
		s = s[i+1:]
	}
	total := 0
	for _, part := range strings.Split(s, ":") {
		total = total*60 + atoiOrZero(part)
	}
	return days*86400 + total
}

func nodesPipeline() Pipeline[Node] {
	return Pipeline[Node]{
		ID: func(n Node) string { return n.Name },
		Haystack: func(n Node) []string {
			return []string{n.Name, n.State, strings.Join(n.Partitions, ",")}
		},
		Columns: map[string]func(a, b Node) bool{
			"STATE":    func(a, b Node) bool { return a.State < b.State },
			"CPU%":     func(a, b Node) bool { return cpuUsage(a) < cpuUsage(b) },
			"MEM FREE": func(a, b Node) bool { return a.FreeMemMB < b.FreeMemMB },
		},
	}
}

func cpuUsage(n Node) float64 {
	if n.CPUsTotal <= 0 {
		return 0
	}
	return float64(n.CPUsAlloc) / float64(n.CPUsTotal)
}

func nodeColumns() []columnSpec {
	return []columnSpec{
		{Title: "NODE", MinWidth: 12, Threshold: 0},
		{Title: "STATE", MinWidth: 12, Threshold: 0},
		{Title: "CPU%", MinWidth: 14, Threshold: 0},
		{Title: "GPU%", MinWidth: 14, Threshold: 60},
		{Title: "CPUS A/T", MinWidth: 10, Threshold: 75},
		{Title: "GPU A/T", MinWidth: 9, Threshold: 75},
		{Title: "MEM FREE", MinWidth: 10, Threshold: 90},
		{Title: "PARTITION", MinWidth: 12, Threshold: 105},
		{Title: "MEM TOTAL", MinWidth: 10, Threshold: 120},
		{Title: "LOAD", MinWidth: 8, Threshold: 120},
	}
}

func nodeCells(n Node) []string {
	gpuBar, gpuAT := "-", "-"
	if n.GPUsTotal > 0 {
		gpuBar = usageBar(n.GPUsAlloc, n.GPUsTotal)
		gpuAT = fmt.Sprintf("%d/%d", n.GPUsAlloc, n.GPUsTotal)
	}
	return []string{
		n.Name,
		n.State,
		usageBar(n.CPUsAlloc, n.CPUsTotal),
		gpuBar,
		fmt.Sprintf("%d/%d", n.CPUsAlloc, n.CPUsTotal),
		gpuAT,
		formatMemMB(n.FreeMemMB),
		strings.Join(n.Partitions, ","),
		formatMemMB(n.MemoryMB),
		n.Load,
	}
}

// usageBar renders a fixed-width utilization bar like "███░░░░░  38%".
func usageBar(used, total int) string {
	if total <= 0 {
		return "-"
	}
	pct := float64(used) / float64(total)
	if pct > 1 {
		pct = 1
	}
	const width = 8
	filled := int(pct*width + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %3.0f%%", pct*100)
}

func formatMemMB(mb int) string {
	if mb <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(mb) << 20)
}

func partitionsPipeline() Pipeline[Partition] {
	return Pipeline[Partition]{
		ID: func(p Partition) string { return p.ID() },
		Haystack: func(p Partition) []string {
			return []string{p.Name, p.State, p.Avail}
		},
		Columns: map[string]func(a, b Partition) bool{
			"PARTITION": func(a, b Partition) bool { return a.Name < b.Name },
			"NODES":     func(a, b Partition) bool { return atoiOrZero(a.Nodes) < atoiOrZero(b.Nodes) },
		},
	}
}

func partitionColumns() []columnSpec {
	return []columnSpec{
		{Title: "PARTITION", MinWidth: 14, Threshold: 0},
		{Title: "AVAIL", MinWidth: 7, Threshold: 0},
		{Title: "TIMELIMIT", MinWidth: 12, Threshold: 0},
		{Title: "NODES", MinWidth: 7, Threshold: 0},
		{Title: "STATE", MinWidth: 12, Threshold: 0},
		{Title: "NODELIST", MinWidth: 30, Threshold: 0},
	}
}

func partitionCells(p Partition) []string {
	return []string{p.Name, p.Avail, p.TimeLimit, p.Nodes, p.State, p.NodeList}
}

// jobsSummary condenses a jobs snapshot for the status header.
func jobsSummary(jobs []Job) string {
	running, pending := 0, 0
	for _, j := range jobs {
		switch {
		case j.IsRunning():
			running++
		case j.IsPending():
			pending++
		}
	}
	return fmt.Sprintf("%d running · %d pending · %d total", running, pending, len(jobs))
}

func nodesSummary(nodes []Node) string {
	idle, alloc, mixed, down := 0, 0, 0, 0
	for _, n := range nodes {
		state := strings.ToLower(n.State)
		switch {
		case strings.Contains(state, "idle"):
			idle++
		case strings.Contains(state, "mix"):
			mixed++
		case strings.Contains(state, "alloc"):
			alloc++
		case strings.Contains(state, "down"), strings.Contains(state, "drain"), strings.Contains(state, "drng"):
			down++
		}
	}
	return fmt.Sprintf("%d idle · %d alloc · %d mixed · %d down", idle, alloc, mixed, down)
}

func partitionsSummary(partitions []Partition) string {
	names := make(map[string]bool)
	up := make(map[string]bool)
	for _, p := range partitions {
		name := strings.TrimSuffix(p.Name, "*")
		names[name] = true
		if p.Avail == "up" {
			up[name] = true
		}
	}
	return fmt.Sprintf("%d partitions · %d up", len(names), len(up))
}
