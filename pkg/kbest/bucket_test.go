package kbest

import (
	"testing"

	"reachcore/pkg/csr"
	"reachcore/pkg/labelstore"
)

func buildGraph(t *testing.T, n uint32, edges []csr.Edge) *csr.Graph {
	t.Helper()
	nodeIDs := make([]int64, n)
	lat := make([]float32, n)
	lon := make([]float32, n)
	for i := range nodeIDs {
		nodeIDs[i] = int64(i)
	}
	g, err := csr.Build(nodeIDs, lat, lon, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestKbestLineGraph(t *testing.T) {
	g := buildGraph(t, 4, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 10},
		{U: 1, V: 2, Oneway: true, WSec: 10},
		{U: 2, V: 3, Oneway: true, WSec: 10},
	})

	store, err := Kbest(g, []int32{0}, Config{K: 1, CutoffPrimary: 30, CutoffOverflow: 30, Threads: 1})
	if err != nil {
		t.Fatalf("Kbest: %v", err)
	}

	wantTime := []uint16{0, 10, 20, 30}
	for node := uint32(0); node < 4; node++ {
		anchors, times := store.Row(node)
		if times[0] != wantTime[node] || anchors[0] != 0 {
			t.Errorf("node %d: time=%d anchor=%d, want time=%d anchor=0", node, times[0], anchors[0], wantTime[node])
		}
	}
}

func TestKbestCompetingAnchors(t *testing.T) {
	g := buildGraph(t, 3, []csr.Edge{
		{U: 0, V: 1, Oneway: false, WSec: 5},
		{U: 1, V: 2, Oneway: false, WSec: 5},
	})

	store, err := Kbest(g, []int32{0, 2}, Config{K: 2, CutoffPrimary: 20, CutoffOverflow: 20, Threads: 1})
	if err != nil {
		t.Fatalf("Kbest: %v", err)
	}

	anchors, times := store.Row(1)
	if times[0] != 5 || times[1] != 5 {
		t.Fatalf("node 1 times = %v, want [5 5]", times)
	}
	if anchors[0] != 0 || anchors[1] != 2 {
		t.Fatalf("node 1 anchors = %v, want [0 2] (tie broken by anchor id)", anchors)
	}
}

func TestKbestRejectsMismatchedCutoffs(t *testing.T) {
	g := buildGraph(t, 2, []csr.Edge{{U: 0, V: 1, Oneway: true, WSec: 1}})
	_, err := Kbest(g, []int32{0}, Config{K: 1, CutoffPrimary: 50, CutoffOverflow: 10, Threads: 1})
	if err == nil {
		t.Fatal("expected validation error for cutoff_overflow < cutoff_primary")
	}
}

func TestKbestDeterministicAcrossThreadCounts(t *testing.T) {
	// A 40-node bidirectional chain with every node an anchor: 40 anchors
	// exceed 4*8, so the threads=8 run takes the chunked path.
	const n = 40
	var edges []csr.Edge
	for i := uint32(0); i < n-1; i++ {
		edges = append(edges, csr.Edge{U: int64(i), V: int64(i + 1), Oneway: false, WSec: uint16(1 + i%5)})
	}
	g := buildGraph(t, n, edges)

	var anchors []int32
	for i := int32(0); i < n; i++ {
		anchors = append(anchors, i)
	}

	cfg1 := Config{K: 3, CutoffPrimary: 100, CutoffOverflow: 200, Threads: 1}
	cfg8 := Config{K: 3, CutoffPrimary: 100, CutoffOverflow: 200, Threads: 8}

	store1, err := Kbest(g, anchors, cfg1)
	if err != nil {
		t.Fatalf("Kbest(threads=1): %v", err)
	}
	store8, err := Kbest(g, anchors, cfg8)
	if err != nil {
		t.Fatalf("Kbest(threads=8): %v", err)
	}

	for node := uint32(0); node < n; node++ {
		a1, t1 := store1.Row(node)
		a8, t8 := store8.Row(node)
		for j := 0; j < 3; j++ {
			if a1[j] != a8[j] || t1[j] != t8[j] {
				t.Fatalf("node %d slot %d differs: threads=1 (%d,%d) vs threads=8 (%d,%d)",
					node, j, a1[j], t1[j], a8[j], t8[j])
			}
		}
	}
}

// TestKbestMixedZeroWeightEdgeNotPruned exercises a node with one
// zero-weight and one positive-weight outgoing edge (node 1 below) through
// the full Kbest search, not just MinOutWeight in isolation. Before
// MinOutWeight seeded its running minimum at math.MaxUint16 instead of 0,
// a {0, 5}-weight node's computed min_out was inflated (it returned the
// second edge's weight instead of the true 0), which could make the
// pruning check in computeChunk over-estimate how much further a path
// through that node could possibly improve and skip relaxation it should
// have performed. This asserts every node downstream of the zero-weight
// edge still receives the correct label.
func TestKbestMixedZeroWeightEdgeNotPruned(t *testing.T) {
	g := buildGraph(t, 4, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 2},
		{U: 1, V: 2, Oneway: true, WSec: 0},
		{U: 1, V: 3, Oneway: true, WSec: 5},
	})

	store, err := Kbest(g, []int32{0}, Config{K: 1, CutoffPrimary: 20, CutoffOverflow: 20, Threads: 1})
	if err != nil {
		t.Fatalf("Kbest: %v", err)
	}

	wantTime := []uint16{0, 2, 2, 7}
	for node := uint32(0); node < 4; node++ {
		anchors, times := store.Row(node)
		if times[0] != wantTime[node] || anchors[0] != 0 {
			t.Errorf("node %d: time=%d anchor=%d, want time=%d anchor=0", node, times[0], anchors[0], wantTime[node])
		}
	}
}

func TestMergeChunksAnchorTieBreak(t *testing.T) {
	c1 := labelstore.New(1, 2, labelstore.UNREACHABLE)
	c1.Insert(0, 5, 10)
	c2 := labelstore.New(1, 2, labelstore.UNREACHABLE)
	c2.Insert(0, 2, 10)

	merged := mergeChunks(1, 2, labelstore.UNREACHABLE, []*labelstore.Store{c1, c2})
	anchors, times := merged.Row(0)
	if anchors[0] != 2 || anchors[1] != 5 {
		t.Fatalf("anchors = %v, want [2 5] (ascending anchor on time tie)", anchors)
	}
	if times[0] != 10 || times[1] != 10 {
		t.Fatalf("times = %v, want [10 10]", times)
	}
}
