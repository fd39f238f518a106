package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickMsg is one beat of a view's refresh timer. Ticks carry the epoch
// they were scheduled under; a tick whose epoch no longer matches belongs
// to a replaced timer chain and is dropped.
type tickMsg struct {
	view  viewID
	epoch int
}

// refresher drives one view's periodic fetch under a single-flight guard.
// It is plain state inside the model, touched only from the update loop.
// Two counters make stray messages identifiable: epoch tags timer ticks
// (bumped when the interval changes or the refresher stops, ending the
// old chain) and gen tags fetch results (bumped on stop, so a fetch that
// was in flight at teardown is recognized and its result discarded).
type refresher struct {
	view    viewID
	every   time.Duration
	busy    bool
	gen     int
	epoch   int
	stopped bool
	seq     uint64
}

func newRefresher(view viewID, every time.Duration) refresher {
	return refresher{view: view, every: every}
}

// start arms the timer chain. The first tick fires one interval from now;
// callers wanting data immediately pair this with refreshNow.
func (r *refresher) start() tea.Cmd {
	r.stopped = false
	r.epoch++
	return r.schedule()
}

func (r *refresher) schedule() tea.Cmd {
	view, epoch := r.view, r.epoch
	return tea.Tick(r.every, func(time.Time) tea.Msg {
		return tickMsg{view: view, epoch: epoch}
	})
}

// onTick handles one timer beat. Stale and post-stop ticks end their
// chain. A live tick always schedules the next beat; the fetch itself is
// skipped entirely when one is already in flight (single-flight, no
// queueing) or when the caller passes a nil fetch (view paused).
func (r *refresher) onTick(msg tickMsg, fetch func(gen int) tea.Cmd) tea.Cmd {
	if msg.epoch != r.epoch || r.stopped {
		return nil
	}
	next := r.schedule()
	if r.busy || fetch == nil {
		return next
	}
	r.busy = true
	return tea.Batch(fetch(r.gen), next)
}

// refreshNow launches a fetch outside the timer. The single-flight guard
// still applies; the timer chain is untouched.
func (r *refresher) refreshNow(fetch func(gen int) tea.Cmd) tea.Cmd {
	if r.stopped || r.busy {
		return nil
	}
	r.busy = true
	return fetch(r.gen)
}

// setInterval replaces the timer with a new period. The in-flight guard
// is left alone: a fetch already running completes and its result is
// still applied.
func (r *refresher) setInterval(every time.Duration) tea.Cmd {
	r.every = every
	r.epoch++
	if r.stopped {
		return nil
	}
	return r.schedule()
}

// stop ends the timer chain and invalidates any in-flight fetch. Its
// result will arrive carrying a stale gen and be dropped by accept.
func (r *refresher) stop() {
	r.stopped = true
	r.epoch++
	r.gen++
	r.busy = false
}

// accept reports whether a fetch result tagged with gen is still live and
// clears the in-flight flag when it is. Results issued before a stop are
// dropped whole; the busy flag then belongs to whatever fetch the
// restarted refresher launched.
func (r *refresher) accept(gen int) bool {
	if gen != r.gen {
		return false
	}
	r.busy = false
	return true
}

// nextSeq allocates the sequence number for an applied snapshot.
func (r *refresher) nextSeq() uint64 {
	r.seq++
	return r.seq
}

func (r *refresher) interval() time.Duration {
	return r.every
}
