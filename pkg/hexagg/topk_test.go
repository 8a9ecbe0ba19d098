package hexagg

import (
	"testing"

	"reachcore/pkg/labelstore"
)

// TestDedupSameCellKeepsMinTime covers S5: two nodes land in the same
// resolution-r cell with labels (anchor=7, t=100) and (anchor=7, t=80).
// The cell's top-K must contain (7, 80) exactly once.
func TestDedupSameCellKeepsMinTime(t *testing.T) {
	lat := []float32{37.0, 37.0001}
	lon := []float32{-122.0, -122.0001}
	resolutions := []int{7}
	cells := CellIDs(lat, lon, resolutions)
	if cells[0][0] != cells[1][0] {
		t.Skip("test coordinates did not land in the same H3 cell; adjust fixture")
	}

	labels := labelstore.New(2, 4, labelstore.UNREACHABLE)
	labels.Insert(0, 7, 100)
	labels.Insert(1, 7, 80)

	result, err := Aggregate(cells, resolutions, labels, 2)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	count := 0
	for i, a := range result.Anchor {
		if a == 7 {
			count++
			if result.Time[i] != 80 {
				t.Errorf("anchor 7 time = %d, want 80", result.Time[i])
			}
		}
	}
	if count != 1 {
		t.Errorf("anchor 7 appears %d times in cell top-K, want exactly 1", count)
	}
}

func TestAggregateSortedByTimeThenAnchor(t *testing.T) {
	lat := []float32{10, 10, 10}
	lon := []float32{20, 20, 20}
	resolutions := []int{5}
	cells := CellIDs(lat, lon, resolutions)

	labels := labelstore.New(3, 4, labelstore.UNREACHABLE)
	labels.Insert(0, 3, 50)
	labels.Insert(1, 1, 50)
	labels.Insert(2, 2, 10)

	result, err := Aggregate(cells, resolutions, labels, 1)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	var times []uint16
	var anchors []int32
	for i, id := range result.H3ID {
		if id == cells[0][0] {
			times = append(times, result.Time[i])
			anchors = append(anchors, result.Anchor[i])
		}
	}
	want := []struct {
		t uint16
		a int32
	}{{10, 2}, {50, 1}, {50, 3}}
	if len(times) != len(want) {
		t.Fatalf("got %d entries, want %d", len(times), len(want))
	}
	for i, w := range want {
		if times[i] != w.t || anchors[i] != w.a {
			t.Errorf("entry %d = (t=%d,a=%d), want (t=%d,a=%d)", i, times[i], anchors[i], w.t, w.a)
		}
	}
}

// TestDeterministicMerge covers S6 for C6: the same inputs aggregated
// with different thread counts must produce byte-equal output.
func TestDeterministicMerge(t *testing.T) {
	n := 200
	lat := make([]float32, n)
	lon := make([]float32, n)
	for i := 0; i < n; i++ {
		lat[i] = 10 + float32(i%7)*0.001
		lon[i] = 20 + float32(i%5)*0.001
	}
	resolutions := []int{6, 8}
	cells := CellIDs(lat, lon, resolutions)

	labels := labelstore.New(n, 3, labelstore.UNREACHABLE)
	for i := 0; i < n; i++ {
		labels.Insert(uint32(i), int32(i%11), uint16(100+(i*37)%500))
	}

	r1, err := Aggregate(cells, resolutions, labels, 1)
	if err != nil {
		t.Fatalf("Aggregate threads=1: %v", err)
	}
	r8, err := Aggregate(cells, resolutions, labels, 8)
	if err != nil {
		t.Fatalf("Aggregate threads=8: %v", err)
	}

	if len(r1.H3ID) != len(r8.H3ID) {
		t.Fatalf("entry count mismatch: threads=1 got %d, threads=8 got %d", len(r1.H3ID), len(r8.H3ID))
	}
	for i := range r1.H3ID {
		if r1.H3ID[i] != r8.H3ID[i] || r1.Anchor[i] != r8.Anchor[i] ||
			r1.Time[i] != r8.Time[i] || r1.Resolution[i] != r8.Resolution[i] {
			t.Fatalf("entry %d differs: threads=1 (%d,%d,%d,%d) vs threads=8 (%d,%d,%d,%d)",
				i, r1.H3ID[i], r1.Anchor[i], r1.Time[i], r1.Resolution[i],
				r8.H3ID[i], r8.Anchor[i], r8.Time[i], r8.Resolution[i])
		}
	}
}

func TestCellIDsNonFiniteCoordinatesYieldSentinel(t *testing.T) {
	lat := []float32{float32(nan()), 12}
	lon := []float32{34, float32(nan())}
	cells := CellIDs(lat, lon, []int{9, 7})
	for node := 0; node < 2; node++ {
		for ri := range cells[node] {
			if cells[node][ri] != 0 {
				t.Errorf("node %d res col %d = %d, want sentinel 0", node, ri, cells[node][ri])
			}
		}
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
