// Package csr implements the CSR Builder (C1): converting raw node and
// edge arrays into a sorted Compressed Sparse Row adjacency, plus the
// immutable Graph type the rest of the pipeline reads.
package csr

import "math"

// Graph is an immutable directed weighted graph in Compressed Sparse Row
// form, once built. indices within each row are sorted by destination
// node ordinal.
type Graph struct {
	NumNodes uint32
	NumEdges uint32

	// IndPtr has length NumNodes+1; IndPtr[u]..IndPtr[u+1] are the edges
	// leaving node u. Monotone non-decreasing.
	IndPtr []int64
	// Indices has length NumEdges; destination node ordinal per edge,
	// sorted ascending within each row.
	Indices []int32
	// Weight has length NumEdges; edge weight in seconds.
	Weight []uint16

	// NodeLat, NodeLon are optional companion coordinate arrays, degrees.
	NodeLat []float32
	NodeLon []float32

	// NodeIDs is the optional original external node ID per ordinal,
	// passed through unchanged so callers can map ordinals back.
	NodeIDs []int64
}

// EdgesFrom returns the half-open range of edge indices leaving node u.
func (g *Graph) EdgesFrom(u uint32) (start, end int64) {
	return g.IndPtr[u], g.IndPtr[u+1]
}

// MinOutWeight returns, for every node, the minimum outgoing edge weight,
// or 0 for nodes with no outgoing edges. Used by the Bucket K-Best Engine
// (C4) to prune relaxation once no outgoing edge could possibly improve a
// neighbor's label. Seeds the running minimum at math.MaxUint16 rather
// than 0, matching `_examples/original_source/vicinity_native/src/lib.rs`
// — 0 is a legitimate edge weight outside CH (spec.md: w_sec "must be >=
// 1 where used by CH; may be 0 elsewhere"), so it cannot double as the
// "no edge seen yet" sentinel without mistaking the true minimum of a
// {0, w>0} node for whatever edge happens to come after the 0-weight one.
func (g *Graph) MinOutWeight() []uint16 {
	min := make([]uint16, g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		best := uint16(math.MaxUint16)
		for e := start; e < end; e++ {
			w := g.Weight[e]
			if w < best {
				best = w
			}
		}
		if best == math.MaxUint16 && start == end {
			best = 0
		}
		min[u] = best
	}
	return min
}

// Reverse returns the reverse graph (all edges flipped), used by the
// Weakly Connected Components pass (C2).
func (g *Graph) Reverse() *Graph {
	indPtr := make([]int64, g.NumNodes+1)
	for e := int64(0); e < int64(g.NumEdges); e++ {
		indPtr[g.Indices[e]+1]++
	}
	for i := uint32(1); i <= g.NumNodes; i++ {
		indPtr[i] += indPtr[i-1]
	}

	indices := make([]int32, g.NumEdges)
	weight := make([]uint16, g.NumEdges)
	cursor := make([]int64, g.NumNodes)
	copy(cursor, indPtr[:g.NumNodes])

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Indices[e]
			pos := cursor[v]
			indices[pos] = int32(u)
			weight[pos] = g.Weight[e]
			cursor[v]++
		}
	}

	return &Graph{
		NumNodes: g.NumNodes,
		NumEdges: g.NumEdges,
		IndPtr:   indPtr,
		Indices:  indices,
		Weight:   weight,
	}
}
