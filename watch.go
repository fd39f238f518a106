package main

import "sort"

// reasonDisappeared marks a watched entity that left the snapshot before
// reaching a terminal state.
const reasonDisappeared = "disappeared"

// WatchEvent is the single notification a watch produces. Reason is
// either the terminal state the entity reached or reasonDisappeared.
type WatchEvent struct {
	ID     string
	Reason string
}

// WatchRegistry tracks user-watched identifiers until they reach a
// terminal state or vanish from a snapshot, then notifies exactly once
// and forgets them. It is owned by the update loop; no locking.
type WatchRegistry struct {
	entries  map[string]string // id -> last observed non-terminal state
	terminal map[string]bool
}

func NewWatchRegistry(terminal map[string]bool) *WatchRegistry {
	return &WatchRegistry{
		entries:  make(map[string]string),
		terminal: terminal,
	}
}

// Watch starts tracking id. Watching an id again after its notification
// fired starts a fresh lifecycle.
func (w *WatchRegistry) Watch(id, state string) {
	w.entries[id] = state
}

// Unwatch stops tracking id without notifying.
func (w *WatchRegistry) Unwatch(id string) {
	delete(w.entries, id)
}

// Watched reports whether id is currently tracked.
func (w *WatchRegistry) Watched(id string) bool {
	_, ok := w.entries[id]
	return ok
}

// Toggle flips the watch for id and reports whether it is watched
// afterwards.
func (w *WatchRegistry) Toggle(id, state string) bool {
	if w.Watched(id) {
		w.Unwatch(id)
		return false
	}
	w.Watch(id, state)
	return true
}

// Len is the number of tracked identifiers.
func (w *WatchRegistry) Len() int {
	return len(w.entries)
}

// Observe compares every tracked identifier against the states of one new
// snapshot (id -> lifecycle state). An identifier that vanished or
// reached a terminal state fires one event and is dropped; a non-terminal
// state change is recorded silently. Events come back sorted by id so
// delivery order is deterministic. Callers must not feed snapshots from
// failed fetches: absence caused by an outage is not a disappearance.
func (w *WatchRegistry) Observe(states map[string]string) []WatchEvent {
	var events []WatchEvent
	for id, last := range w.entries {
		state, present := states[id]
		switch {
		case !present:
			events = append(events, WatchEvent{ID: id, Reason: reasonDisappeared})
			delete(w.entries, id)
		case w.terminal[state]:
			events = append(events, WatchEvent{ID: id, Reason: state})
			delete(w.entries, id)
		case state != last:
			w.entries[id] = state
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events
}
