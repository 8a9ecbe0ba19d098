package labelstore

import "testing"

func TestInsertSortsAscendingTimeThenAnchor(t *testing.T) {
	s := New(1, 2, 20)
	s.Insert(0, 0, 5)
	s.Insert(0, 2, 5)

	anchors, times := s.Row(0)
	if times[0] != 5 || times[1] != 5 {
		t.Fatalf("times = %v, want [5 5]", times)
	}
	if anchors[0] != 0 || anchors[1] != 2 {
		t.Fatalf("anchors = %v, want [0 2] (tie broken by ascending anchor)", anchors)
	}
}

func TestInsertOverflowPolicy(t *testing.T) {
	// cutoff_primary=10, cutoff_overflow=50, K=2.
	// A=0 at 5 (primary), B=1 at 40 (overflow) retained.
	s := New(1, 2, 10)
	s.Insert(0, 0, 5)
	s.Insert(0, 1, 40)

	anchors, times := s.Row(0)
	if times[0] != 5 || anchors[0] != 0 {
		t.Fatalf("slot 0 = (%d,%d), want (0,5)", anchors[0], times[0])
	}
	if times[1] != 40 || anchors[1] != 1 {
		t.Fatalf("slot 1 = (%d,%d), want (1,40)", anchors[1], times[1])
	}
	if s.PrimaryCount[0] != 1 {
		t.Fatalf("primary_count = %d, want 1", s.PrimaryCount[0])
	}

	// C=2 at 45 (overflow) arrives; primary_count(1) < K(2), so it competes
	// with the worst overflow slot (B at 40). 45 < 40 is false, B stays.
	s.Insert(0, 2, 45)
	anchors, times = s.Row(0)
	if anchors[1] != 1 || times[1] != 40 {
		t.Fatalf("overflow slot should remain (1,40), got (%d,%d)", anchors[1], times[1])
	}
}

func TestInsertOverflowRejectedWhenPrimaryFull(t *testing.T) {
	s := New(1, 2, 10)
	s.Insert(0, 0, 5)
	s.Insert(0, 1, 8) // both primary, primary_count == K == 2

	s.Insert(0, 2, 40) // overflow candidate, primary_count(2) == K(2): rejected
	anchors, times := s.Row(0)
	if anchors[0] != 0 || anchors[1] != 1 {
		t.Fatalf("anchors = %v, want [0 1] unchanged", anchors)
	}
	if times[0] != 5 || times[1] != 8 {
		t.Fatalf("times = %v, want [5 8] unchanged", times)
	}
}

func TestInsertDedupKeepsMinTime(t *testing.T) {
	s := New(1, 3, UNREACHABLE)
	s.Insert(0, 7, 20)
	s.Insert(0, 7, 10) // same anchor, better time: replace
	s.Insert(0, 7, 30) // same anchor, worse time: no-op

	anchors, times := s.Row(0)
	if anchors[0] != 7 || times[0] != 10 {
		t.Fatalf("slot 0 = (%d,%d), want (7,10)", anchors[0], times[0])
	}
	if s.Used[0] != 1 {
		t.Fatalf("used = %d, want 1 (no duplicate entries)", s.Used[0])
	}
}

func TestReset(t *testing.T) {
	s := New(2, 2, UNREACHABLE)
	s.Insert(1, 3, 5)
	s.Reset(1)

	anchors, times := s.Row(1)
	for i := range anchors {
		if anchors[i] != NoAnchor || times[i] != UNREACHABLE {
			t.Fatalf("slot %d not cleared: (%d,%d)", i, anchors[i], times[i])
		}
	}
	if s.Used[1] != 0 || s.PrimaryCount[1] != 0 {
		t.Fatalf("counters not cleared: used=%d primary=%d", s.Used[1], s.PrimaryCount[1])
	}
}
