package main

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	tailLines       = 500
	logTailInterval = 2 * time.Second
)

// logTailMsg delivers one tail(1) result to the overlay.
type logTailMsg struct {
	gen     int
	content string
	ok      bool
}

// logPathsMsg carries resolved stdout/stderr paths for a job.
type logPathsMsg struct {
	jobID  string
	stdout string
	stderr string
	err    error
	stream string
}

// logOverlay tails one resolved log file on a short period. The refresher
// lives in the model across opens: close() stops it and bumps its gen, so
// a tail still in flight when the user leaves can never paint a reopened
// overlay with stale content.
type logOverlay struct {
	ref     refresher
	vp      viewport.Model
	slurm   *Slurm
	visible bool

	jobID      string
	stdoutPath string
	stderrPath string
	stream     string // "stdout" or "stderr"
	follow     bool
	failed     bool
	content    string

	width  int
	height int
}

func newLogOverlay(slurm *Slurm) logOverlay {
	return logOverlay{
		ref:    newRefresher(viewLog, logTailInterval),
		vp:     viewport.New(80, 20),
		slurm:  slurm,
		stream: "stdout",
	}
}

// open points the overlay at a job's resolved log paths and starts the
// tail loop with an immediate fetch.
func (lo *logOverlay) open(jobID, stdoutPath, stderrPath, stream string) tea.Cmd {
	lo.visible = true
	lo.jobID = jobID
	lo.stdoutPath = stdoutPath
	lo.stderrPath = stderrPath
	lo.stream = stream
	lo.follow = true
	lo.failed = false
	lo.content = ""
	lo.vp.SetContent("loading …")
	lo.vp.GotoTop()
	return tea.Batch(lo.ref.start(), lo.ref.refreshNow(lo.fetch))
}

// close tears the overlay down. An in-flight tail result lands with a
// stale gen and is dropped.
func (lo *logOverlay) close() {
	lo.ref.stop()
	lo.visible = false
}

func (lo *logOverlay) path() string {
	if lo.stream == "stderr" {
		return lo.stderrPath
	}
	return lo.stdoutPath
}

// fetch is the tail command bound to the overlay's current path.
func (lo *logOverlay) fetch(gen int) tea.Cmd {
	slurm, path := lo.slurm, lo.path()
	return func() tea.Msg {
		out, err := slurm.TailFile(path, tailLines)
		if err != nil {
			log.Printf("tail %s: %v", path, err)
		}
		return logTailMsg{gen: gen, content: out, ok: err == nil}
	}
}

func (lo *logOverlay) onTick(msg tickMsg) tea.Cmd {
	return lo.ref.onTick(msg, lo.fetch)
}

// onTail ingests one tail result, keeping previous content on failure.
func (lo *logOverlay) onTail(msg logTailMsg) {
	if !lo.ref.accept(msg.gen) {
		return
	}
	if !msg.ok {
		lo.failed = true
		return
	}
	lo.failed = false
	lo.content = msg.content
	lo.setViewportContent()
	if lo.follow {
		lo.vp.GotoBottom()
	}
}

func (lo *logOverlay) setViewportContent() {
	width := lo.vp.Width
	if width < 10 {
		width = 10
	}
	lo.vp.SetContent(wordwrap.String(lo.content, width))
}

func (lo *logOverlay) resize(width, height int) {
	lo.width = width
	lo.height = height
	lo.vp.Width = width
	vpHeight := height - 3
	if vpHeight < 3 {
		vpHeight = 3
	}
	lo.vp.Height = vpHeight
	if lo.content != "" {
		lo.setViewportContent()
	}
}

// handleKey processes keys while the overlay is up and reports whether it
// closed.
func (lo *logOverlay) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		lo.close()
		return nil, true
	case key.Matches(msg, keys.Follow):
		lo.follow = !lo.follow
		if lo.follow {
			lo.vp.GotoBottom()
		}
		return nil, false
	case key.Matches(msg, keys.Refresh):
		return lo.ref.refreshNow(lo.fetch), false
	case key.Matches(msg, keys.Stdout):
		return lo.switchStream("stdout"), false
	case key.Matches(msg, keys.Stderr):
		return lo.switchStream("stderr"), false
	}
	var cmd tea.Cmd
	lo.vp, cmd = lo.vp.Update(msg)
	return cmd, false
}

func (lo *logOverlay) switchStream(stream string) tea.Cmd {
	if lo.stream == stream {
		return nil
	}
	lo.stream = stream
	lo.content = ""
	lo.vp.SetContent("loading …")
	// A busy refresher declines the immediate fetch; the running tick
	// loop picks the new path up on its next beat.
	return lo.ref.refreshNow(lo.fetch)
}

func (lo *logOverlay) view() string {
	followTag := "follow off"
	if lo.follow {
		followTag = "follow on"
	}
	status := followTag
	if lo.failed {
		status = "tail failed · " + followTag
	}
	title := panelTitleStyle.Render(fmt.Sprintf("job %s · %s", lo.jobID, lo.stream))
	meta := filterHintStyle.Render(fmt.Sprintf("%s · %s", shortenPath(lo.path(), lo.width/2), status))
	hints := copyHintStyle.Render("o stdout · e stderr · f follow · r refresh · esc back")
	return lipgloss.JoinVertical(lipgloss.Left, title, meta, lo.vp.View(), hints)
}

// shortenPath elides the middle of long paths for the overlay header.
func shortenPath(path string, max int) string {
	if max < 8 || len(path) <= max {
		return path
	}
	keep := (max - 1) / 2
	return path[:keep] + "…" + path[len(path)-keep:]
}
