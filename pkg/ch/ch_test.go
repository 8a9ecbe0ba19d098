package ch

import (
	"math"
	"path/filepath"
	"testing"

	"reachcore/pkg/csr"
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

func TestOneToAllDiamond(t *testing.T) {
	// 0->1(3), 0->2(4), 1->3(2), 2->3(1). one_to_all(0) = [0,3,4,5].
	g := buildGraph(t, 4, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 3},
		{U: 0, V: 2, Oneway: true, WSec: 4},
		{U: 1, V: 3, Oneway: true, WSec: 2},
		{U: 2, V: 3, Oneway: true, WSec: 1},
	})

	pg := Contract(g, nil)
	dist := pg.OneToAll(0, math.MaxUint32)

	want := []uint32{0, 3, 4, 5}
	for i, w := range want {
		if dist[i] != w {
			t.Errorf("dist[%d] = %d, want %d", i, dist[i], w)
		}
	}
}

func TestOneToAllRespectsLimit(t *testing.T) {
	g := buildGraph(t, 3, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 5},
		{U: 1, V: 2, Oneway: true, WSec: 5},
	})
	pg := Contract(g, nil)

	dist := pg.OneToAll(0, 5)
	if dist[2] != infU32 {
		t.Errorf("dist[2] = %d, want unreachable under limit 5", dist[2])
	}
	if dist[1] != 5 {
		t.Errorf("dist[1] = %d, want 5", dist[1])
	}
}

func TestSubsetProjection(t *testing.T) {
	g := buildGraph(t, 3, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 5},
		{U: 1, V: 2, Oneway: true, WSec: 5},
	})
	pg := Contract(g, nil)

	out := pg.Subset(0, []int32{-1, 2, 99}, math.MaxUint32)
	if out[0] != infU32 {
		t.Errorf("negative target should map to infU32, got %d", out[0])
	}
	if out[1] != 10 {
		t.Errorf("target 2 = %d, want 10", out[1])
	}
	if out[2] != infU32 {
		t.Errorf("out-of-range target should map to infU32, got %d", out[2])
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	g := buildGraph(t, 4, []csr.Edge{
		{U: 0, V: 1, Oneway: true, WSec: 3},
		{U: 0, V: 2, Oneway: true, WSec: 4},
		{U: 1, V: 3, Oneway: true, WSec: 2},
		{U: 2, V: 3, Oneway: true, WSec: 1},
	})
	pg := Contract(g, nil)

	path := filepath.Join(t.TempDir(), "ch.bin")
	if err := WriteBinary(path, pg); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	loaded, err := ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	distBefore := pg.OneToAll(0, math.MaxUint32)
	distAfter := loaded.OneToAll(0, math.MaxUint32)
	for i := range distBefore {
		if distBefore[i] != distAfter[i] {
			t.Errorf("dist[%d] = %d after round trip, want %d", i, distAfter[i], distBefore[i])
		}
	}
}

func TestDebugEdges(t *testing.T) {
	g := buildGraph(t, 2, []csr.Edge{{U: 0, V: 1, Oneway: true, WSec: 7}})
	pg := Contract(g, nil)

	rank, fwd, down := pg.DebugEdges(0)
	_ = rank
	if len(fwd) == 0 && len(down) == 0 {
		t.Fatal("expected at least one incident edge for node 0")
	}
}
