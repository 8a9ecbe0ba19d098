// Package wcc computes weakly connected components over a CSR graph (C2):
// BFS over the union of forward and reverse neighbor sets, plus largest-
// component extraction used to give CH contraction (C5) a small connected
// core to work with.
package wcc

import "reachcore/pkg/csr"

// Components assigns every node an integer component id in [0, C), in the
// order components are first discovered by ascending starting node. g and
// rev must be a forward/reverse CSR pair over the same node set (rev is
// typically g.Reverse()).
func Components(g, rev *csr.Graph) []int32 {
	n := g.NumNodes
	compID := make([]int32, n)
	for i := range compID {
		compID[i] = -1
	}

	queue := make([]uint32, 0, n)
	var next int32
	for start := uint32(0); start < n; start++ {
		if compID[start] >= 0 {
			continue
		}
		compID[start] = next
		queue = queue[:0]
		queue = append(queue, start)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]

			s, e := g.EdgesFrom(u)
			for i := s; i < e; i++ {
				v := uint32(g.Indices[i])
				if compID[v] < 0 {
					compID[v] = next
					queue = append(queue, v)
				}
			}
			s2, e2 := rev.EdgesFrom(u)
			for i := s2; i < e2; i++ {
				v := uint32(rev.Indices[i])
				if compID[v] < 0 {
					compID[v] = next
					queue = append(queue, v)
				}
			}
		}
		next++
	}
	return compID
}

// unionFind is a disjoint-set structure with path halving and union by
// rank, used only to extract the largest component quickly without
// requiring a reverse CSR.
type unionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

func newUnionFind(n uint32) *unionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range parent {
		parent[i] = uint32(i)
		size[i] = 1
	}
	return &unionFind{parent: parent, rank: make([]byte, n), size: size}
}

func (uf *unionFind) find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y uint32) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}

// LargestComponent returns the node ordinals belonging to the largest
// weakly connected component, treating every directed edge as undirected.
// cmd/reachctl uses it to restrict the graph before the K-best search and
// the optional CH contraction (C5).
func LargestComponent(g *csr.Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := newUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		s, e := g.EdgesFrom(u)
		for i := s; i < e; i++ {
			uf.union(u, uint32(g.Indices[i]))
		}
	}

	bestRoot, bestSize := uint32(0), uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.find(i)
		if uf.size[root] > bestSize {
			bestRoot, bestSize = root, uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent builds the induced subgraph over nodes, renumbering
// ordinals 0..len(nodes) in the order given. Edges with an endpoint
// outside nodes are dropped.
func FilterToComponent(g *csr.Graph, nodes []uint32) *csr.Graph {
	if len(nodes) == 0 {
		return &csr.Graph{}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	numNodes := uint32(len(nodes))

	type edge struct {
		from, to uint32
		weight   uint16
	}
	var edges []edge
	for _, oldU := range nodes {
		s, e := g.EdgesFrom(oldU)
		for i := s; i < e; i++ {
			oldV := uint32(g.Indices[i])
			if newV, ok := oldToNew[oldV]; ok {
				edges = append(edges, edge{from: oldToNew[oldU], to: newV, weight: g.Weight[i]})
			}
		}
	}

	numEdges := uint32(len(edges))
	indPtr := make([]int64, numNodes+1)
	indices := make([]int32, numEdges)
	weight := make([]uint16, numEdges)

	for _, e := range edges {
		indPtr[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		indPtr[i] += indPtr[i-1]
	}

	pos := make([]int64, numNodes)
	copy(pos, indPtr[:numNodes])
	for _, e := range edges {
		p := pos[e.from]
		indices[p] = int32(e.to)
		weight[p] = e.weight
		pos[e.from]++
	}

	var nodeLat, nodeLon []float32
	if g.NodeLat != nil {
		nodeLat = make([]float32, numNodes)
		nodeLon = make([]float32, numNodes)
		for newIdx, oldIdx := range nodes {
			nodeLat[newIdx] = g.NodeLat[oldIdx]
			nodeLon[newIdx] = g.NodeLon[oldIdx]
		}
	}
	var nodeIDs []int64
	if g.NodeIDs != nil {
		nodeIDs = make([]int64, numNodes)
		for newIdx, oldIdx := range nodes {
			nodeIDs[newIdx] = g.NodeIDs[oldIdx]
		}
	}

	return &csr.Graph{
		NumNodes: numNodes,
		NumEdges: numEdges,
		IndPtr:   indPtr,
		Indices:  indices,
		Weight:   weight,
		NodeLat:  nodeLat,
		NodeLon:  nodeLon,
		NodeIDs:  nodeIDs,
	}
}
