package csr

import "testing"

// TestMinOutWeightZeroEdgeNotMistakenForUnset reproduces the exact trace a
// best==0 sentinel would mishandle: a node whose outgoing edges, in
// destination order, carry weights [5, 0, 3]. The true minimum is 0; a
// sentinel collision would instead report 3 (the first value that beats a
// running "best" stuck at 0 after the second edge).
func TestMinOutWeightZeroEdgeNotMistakenForUnset(t *testing.T) {
	nodeIDs := []int64{0, 1, 2, 3}
	lat := make([]float32, 4)
	lon := make([]float32, 4)
	edges := []Edge{
		{U: 0, V: 1, Oneway: true, WSec: 5},
		{U: 0, V: 2, Oneway: true, WSec: 0},
		{U: 0, V: 3, Oneway: true, WSec: 3},
	}

	g, err := Build(nodeIDs, lat, lon, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	min := g.MinOutWeight()
	if min[0] != 0 {
		t.Errorf("MinOutWeight[0] = %d, want 0", min[0])
	}
}

func TestMinOutWeightNoOutgoingEdges(t *testing.T) {
	nodeIDs := []int64{0, 1}
	lat := make([]float32, 2)
	lon := make([]float32, 2)
	edges := []Edge{{U: 1, V: 0, Oneway: true, WSec: 7}}

	g, err := Build(nodeIDs, lat, lon, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	min := g.MinOutWeight()
	if min[0] != 0 {
		t.Errorf("MinOutWeight[0] (no outgoing edges) = %d, want 0", min[0])
	}
	if min[1] != 7 {
		t.Errorf("MinOutWeight[1] = %d, want 7", min[1])
	}
}
