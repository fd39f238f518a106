package main

import "testing"

func jobID(j Job) string { return j.JobID }

func TestCaptureStateRecordsAnchor(t *testing.T) {
	rows := []Job{{JobID: "1"}, {JobID: "2"}, {JobID: "3"}}

	st := captureState(rows, jobID, 1, 4)
	if st.Anchor != "2" || st.Cursor != 1 || st.Scroll != 4 {
		t.Fatalf("unexpected capture: %+v", st)
	}

	if st := captureState(rows, jobID, -1, 0); st.Anchor != "" {
		t.Errorf("negative cursor must not anchor, got %q", st.Anchor)
	}
	if st := captureState(rows, jobID, 3, 0); st.Anchor != "" {
		t.Errorf("cursor past the end must not anchor, got %q", st.Anchor)
	}
	if st := captureState([]Job{}, jobID, 0, 0); st.Anchor != "" {
		t.Errorf("empty rows must not anchor, got %q", st.Anchor)
	}
}

func TestRestoreStateFollowsAnchor(t *testing.T) {
	before := []Job{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}}
	st := captureState(before, jobID, 1, 7)

	after := []Job{{JobID: "c"}, {JobID: "a"}, {JobID: "b"}}
	cursor, scroll := restoreState(after, jobID, st)
	if cursor != 2 {
		t.Fatalf("expected cursor to follow row b to index 2, got %d", cursor)
	}
	if scroll != 7 {
		t.Fatalf("expected scroll preserved at 7, got %d", scroll)
	}
}

func TestRestoreStateIsNoOpWithoutReorder(t *testing.T) {
	rows := []Job{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}}
	st := captureState(rows, jobID, 2, 1)

	cursor, scroll := restoreState(rows, jobID, st)
	if cursor != 2 || scroll != 1 {
		t.Fatalf("restore over unchanged rows must keep (2,1), got (%d,%d)", cursor, scroll)
	}
}

func TestRestoreStateFallsBackClamped(t *testing.T) {
	before := []Job{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}}
	st := captureState(before, jobID, 2, 0)

	// The anchored row is gone and the old index exceeds the new length.
	after := []Job{{JobID: "a"}, {JobID: "b"}}
	cursor, _ := restoreState(after, jobID, st)
	if cursor != 1 {
		t.Fatalf("expected clamped fallback 1, got %d", cursor)
	}

	// The anchored row is gone but the old index is still valid.
	st = captureState(before, jobID, 1, 0)
	after = []Job{{JobID: "a"}, {JobID: "x"}, {JobID: "c"}}
	cursor, _ = restoreState(after, jobID, st)
	if cursor != 1 {
		t.Fatalf("expected fallback to old index 1, got %d", cursor)
	}
}

func TestRestoreStateEmptyUnsetsCursor(t *testing.T) {
	st := captureState([]Job{{JobID: "a"}}, jobID, 0, 3)
	cursor, scroll := restoreState([]Job{}, jobID, st)
	if cursor != -1 || scroll != 0 {
		t.Fatalf("empty rows must unset the cursor, got (%d,%d)", cursor, scroll)
	}
}

func TestCycleCursorWrapsBothEnds(t *testing.T) {
	tests := []struct {
		cursor, delta, rows, want int
	}{
		{0, 1, 3, 1},
		{2, 1, 3, 0},
		{0, -1, 3, 2},
		{1, -1, 3, 0},
		{0, 1, 1, 0},
		{0, -1, 1, 0},
	}
	for _, tc := range tests {
		if got := cycleCursor(tc.cursor, tc.delta, tc.rows); got != tc.want {
			t.Errorf("cycleCursor(%d,%d,%d) = %d, want %d", tc.cursor, tc.delta, tc.rows, got, tc.want)
		}
	}

	if got := cycleCursor(0, 1, 0); got != -1 {
		t.Errorf("moves on an empty list must unset the cursor, got %d", got)
	}
}
