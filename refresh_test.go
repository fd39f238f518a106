package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// countingFetch returns a fetch func that records invocations and the gen
// it was handed, returning a dummy command so nil-ness stays meaningful.
func countingFetch(calls *int, gen *int) func(int) tea.Cmd {
	return func(g int) tea.Cmd {
		*calls++
		*gen = g
		return func() tea.Msg { return nil }
	}
}

func TestOnTickSingleFlight(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	if cmd := r.start(); cmd == nil {
		t.Fatalf("start must schedule the first tick")
	}

	calls, gen := 0, -1
	fetch := countingFetch(&calls, &gen)
	tick := tickMsg{view: viewJobs, epoch: r.epoch}

	if cmd := r.onTick(tick, fetch); cmd == nil {
		t.Fatalf("live tick must reschedule")
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}

	// The next beat arrives while the fetch is in flight: skipped whole,
	// nothing queued, chain alive.
	if cmd := r.onTick(tick, fetch); cmd == nil {
		t.Fatalf("busy tick must still reschedule")
	}
	if calls != 1 {
		t.Fatalf("busy tick must not fetch, got %d calls", calls)
	}

	if !r.accept(gen) {
		t.Fatalf("result from the live gen must be accepted")
	}
	if cmd := r.onTick(tick, fetch); cmd == nil {
		t.Fatalf("post-accept tick must reschedule")
	}
	if calls != 2 {
		t.Fatalf("expected fetch to resume after accept, got %d calls", calls)
	}
}

func TestOnTickStaleEpochEndsChain(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	r.start()
	stale := tickMsg{view: viewJobs, epoch: r.epoch}

	if cmd := r.setInterval(5 * time.Second); cmd == nil {
		t.Fatalf("setInterval must schedule the replacement chain")
	}
	if r.interval() != 5*time.Second {
		t.Fatalf("expected interval 5s, got %s", r.interval())
	}

	calls, gen := 0, -1
	if cmd := r.onTick(stale, countingFetch(&calls, &gen)); cmd != nil {
		t.Fatalf("a tick from the replaced chain must die")
	}
	if calls != 0 {
		t.Fatalf("stale tick must not fetch, got %d calls", calls)
	}
}

func TestOnTickNilFetchKeepsChain(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	r.start()
	tick := tickMsg{view: viewJobs, epoch: r.epoch}

	if cmd := r.onTick(tick, nil); cmd == nil {
		t.Fatalf("paused tick must keep the chain alive")
	}
	if r.busy {
		t.Fatalf("paused tick must not mark a fetch in flight")
	}
}

func TestRefreshNowSingleFlight(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	r.start()

	calls, gen := 0, -1
	fetch := countingFetch(&calls, &gen)

	if cmd := r.refreshNow(fetch); cmd == nil {
		t.Fatalf("idle refreshNow must fetch")
	}
	if cmd := r.refreshNow(fetch); cmd != nil {
		t.Fatalf("refreshNow with a fetch in flight must decline")
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}

	if !r.accept(gen) {
		t.Fatalf("live result must be accepted")
	}
	if cmd := r.refreshNow(fetch); cmd == nil {
		t.Fatalf("refreshNow must fetch again once the result landed")
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	r.start()

	calls, issued := 0, -1
	fetch := countingFetch(&calls, &issued)
	r.refreshNow(fetch)

	r.stop()
	if r.accept(issued) {
		t.Fatalf("a result issued before stop must be dropped")
	}

	if cmd := r.refreshNow(fetch); cmd != nil {
		t.Fatalf("stopped refresher must not fetch")
	}
	if cmd := r.onTick(tickMsg{view: viewJobs, epoch: r.epoch}, fetch); cmd != nil {
		t.Fatalf("stopped refresher must not keep ticking")
	}

	// A restart issues a fresh gen whose results are live again.
	r.start()
	prev := issued
	r.refreshNow(fetch)
	if issued == prev {
		t.Fatalf("restart must hand out a new gen")
	}
	if !r.accept(issued) {
		t.Fatalf("post-restart result must be accepted")
	}
}

func TestSetIntervalPreservesInFlightGuard(t *testing.T) {
	r := newRefresher(viewJobs, 2*time.Second)
	r.start()

	calls, issued := 0, -1
	fetch := countingFetch(&calls, &issued)
	r.refreshNow(fetch)

	if cmd := r.setInterval(500 * time.Millisecond); cmd == nil {
		t.Fatalf("setInterval must schedule the replacement chain")
	}
	if cmd := r.refreshNow(fetch); cmd != nil {
		t.Fatalf("interval change must not clear the in-flight guard")
	}
	if !r.accept(issued) {
		t.Fatalf("the in-flight result must survive an interval change")
	}
}

func TestNextSeqIncreases(t *testing.T) {
	r := newRefresher(viewJobs, time.Second)
	if a, b := r.nextSeq(), r.nextSeq(); a != 1 || b != 2 {
		t.Fatalf("expected 1 then 2, got %d then %d", a, b)
	}
}
