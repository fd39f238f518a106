package main

// tableState is a cursor position captured before a table rebuild. The
// anchor is the identity of the row under the cursor rather than its
// index, so the same logical row can be found again after rows move.
type tableState struct {
	Anchor string
	Cursor int
	Scroll int
}

// captureState records the identity at cursor, or no anchor when the
// table is empty or the cursor is out of range.
func captureState[E any](rows []E, id func(E) string, cursor, scroll int) tableState {
	st := tableState{Cursor: cursor, Scroll: scroll}
	if cursor >= 0 && cursor < len(rows) {
		st.Anchor = id(rows[cursor])
	}
	return st
}

// restoreState relocates the anchored row in newRows and returns the new
// cursor and scroll offset. When the anchor is gone the cursor falls back
// to the captured index clamped to the new row count; an empty table
// leaves the cursor unset (-1). A rebuild that did not reorder rows finds
// the anchor at its old index, making restore an exact no-op.
func restoreState[E any](newRows []E, id func(E) string, st tableState) (int, int) {
	if len(newRows) == 0 {
		return -1, 0
	}
	if st.Anchor != "" {
		for i, row := range newRows {
			if id(row) == st.Anchor {
				return i, st.Scroll
			}
		}
	}
	cursor := st.Cursor
	if cursor >= len(newRows) {
		cursor = len(newRows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor, st.Scroll
}

// cycleCursor applies wraparound navigation: one step past either end of
// the list lands on the opposite end. Moves on an empty list leave the
// cursor unset.
func cycleCursor(cursor, delta, rowCount int) int {
	if rowCount == 0 {
		return -1
	}
	next := cursor + delta
	if next < 0 {
		return rowCount - 1
	}
	if next >= rowCount {
		return 0
	}
	return next
}
