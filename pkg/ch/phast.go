package ch

import "math"

// infU32 is the unreachable sentinel for one_to_all distances.
const infU32 = math.MaxUint32

// PreparedGraph is the opaque, reusable output of Contract: a node-rank
// permutation, an upward edge list keyed by rank (only edges to a
// strictly higher rank), and a downward edge list keyed by node id (only
// edges to a strictly lower rank). PHAST queries never touch the
// original graph once this is built.
type PreparedGraph struct {
	NumNodes uint32
	Rank     []uint32 // per node id
	Order    []uint32 // Order[r] = node id at rank r

	// Upward CSR, indexed by rank: FwdIndPtr[rank]..FwdIndPtr[rank+1].
	FwdIndPtr []uint32
	FwdTo     []uint32
	FwdWeight []uint32

	// Downward CSR, indexed by node id: DownIndPtr[u]..DownIndPtr[u+1]
	// are u's edges to strictly lower rank.
	DownIndPtr []uint32
	DownTo     []uint32
	DownWeight []uint32
}

// buildPrepared classifies every edge in the contracted adjacency
// (original edges plus shortcuts) as upward or downward by rank and
// packs each into its CSR.
func buildPrepared(n uint32, outAdj [][]adjEntry, rank []uint32) *PreparedGraph {
	order := make([]uint32, n)
	for node, r := range rank {
		order[r] = uint32(node)
	}

	type edge struct {
		from, to uint32
		weight   uint32
	}
	var upEdges, downEdges []edge
	for u := uint32(0); u < n; u++ {
		for _, e := range outAdj[u] {
			if rank[u] < rank[e.to] {
				upEdges = append(upEdges, edge{from: u, to: e.to, weight: e.weight})
			} else {
				downEdges = append(downEdges, edge{from: u, to: e.to, weight: e.weight})
			}
		}
	}

	fwdIndPtr := make([]uint32, n+1)
	fwdTo := make([]uint32, len(upEdges))
	fwdWeight := make([]uint32, len(upEdges))
	for _, e := range upEdges {
		fwdIndPtr[rank[e.from]+1]++
	}
	for i := uint32(1); i <= n; i++ {
		fwdIndPtr[i] += fwdIndPtr[i-1]
	}
	fwdPos := make([]uint32, n)
	copy(fwdPos, fwdIndPtr[:n])
	for _, e := range upEdges {
		r := rank[e.from]
		p := fwdPos[r]
		fwdTo[p] = e.to
		fwdWeight[p] = e.weight
		fwdPos[r]++
	}

	downIndPtr := make([]uint32, n+1)
	downTo := make([]uint32, len(downEdges))
	downWeight := make([]uint32, len(downEdges))
	for _, e := range downEdges {
		downIndPtr[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		downIndPtr[i] += downIndPtr[i-1]
	}
	downPos := make([]uint32, n)
	copy(downPos, downIndPtr[:n])
	for _, e := range downEdges {
		p := downPos[e.from]
		downTo[p] = e.to
		downWeight[p] = e.weight
		downPos[e.from]++
	}

	return &PreparedGraph{
		NumNodes:   n,
		Rank:       rank,
		Order:      order,
		FwdIndPtr:  fwdIndPtr,
		FwdTo:      fwdTo,
		FwdWeight:  fwdWeight,
		DownIndPtr: downIndPtr,
		DownTo:     downTo,
		DownWeight: downWeight,
	}
}

// minHeap is a concrete-typed min-heap for PHAST's upward Dijkstra,
// avoiding container/heap's interface-boxing overhead.
type minHeap struct {
	items []heapItem
}

type heapItem struct {
	node uint32
	dist uint32
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(node, dist uint32) {
	h.items = append(h.items, heapItem{node, dist})
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap) Pop() heapItem {
	n := len(h.items)
	top := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	n--
	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.items[left].dist < h.items[smallest].dist {
			smallest = left
		}
		if right < n && h.items[right].dist < h.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
	return top
}

// OneToAll runs the PHAST query: an upward Dijkstra from source restricted
// to rank-increasing edges, followed by a descending-rank downward sweep
// relaxing rank-decreasing edges. limit caps every returned distance;
// unreached nodes report infU32.
func (pg *PreparedGraph) OneToAll(source uint32, limit uint32) []uint32 {
	n := pg.NumNodes
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = infU32
	}
	if source >= n {
		return dist
	}

	dist[source] = 0
	var h minHeap
	h.Push(source, 0)

	for h.Len() > 0 {
		cur := h.Pop()
		if cur.dist > limit {
			continue
		}
		if cur.dist != dist[cur.node] {
			continue
		}
		r := pg.Rank[cur.node]
		start, end := pg.FwdIndPtr[r], pg.FwdIndPtr[r+1]
		for e := start; e < end; e++ {
			v := pg.FwdTo[e]
			w := pg.FwdWeight[e]
			nd := saturatingAddU32(cur.dist, w)
			if nd > limit {
				continue
			}
			if nd < dist[v] {
				dist[v] = nd
				h.Push(v, nd)
			}
		}
	}

	for i := n; i > 0; i-- {
		u := pg.Order[i-1]
		du := dist[u]
		if du == infU32 {
			continue
		}
		start, end := pg.DownIndPtr[u], pg.DownIndPtr[u+1]
		for e := start; e < end; e++ {
			v := pg.DownTo[e]
			w := pg.DownWeight[e]
			nd := saturatingAddU32(du, w)
			if nd > limit {
				continue
			}
			if nd < dist[v] {
				dist[v] = nd
			}
		}
	}

	return dist
}

// Subset projects a one_to_all result onto target node ids; out-of-range
// or negative targets map to infU32.
func (pg *PreparedGraph) Subset(source uint32, targets []int32, limit uint32) []uint32 {
	dist := pg.OneToAll(source, limit)
	out := make([]uint32, len(targets))
	for i, raw := range targets {
		if raw < 0 || uint32(raw) >= pg.NumNodes {
			out[i] = infU32
			continue
		}
		out[i] = dist[raw]
	}
	return out
}

// DebugEdges returns node's rank and its upward/downward incident edges
// as (from, to, weight) tuples, for inspecting a prepared graph without a
// round trip through serialization.
func (pg *PreparedGraph) DebugEdges(node uint32) (rank uint32, fwd, down [][3]uint32) {
	rank = pg.Rank[node]
	fs, fe := pg.FwdIndPtr[rank], pg.FwdIndPtr[rank+1]
	for e := fs; e < fe; e++ {
		fwd = append(fwd, [3]uint32{node, pg.FwdTo[e], pg.FwdWeight[e]})
	}
	ds, de := pg.DownIndPtr[node], pg.DownIndPtr[node+1]
	for e := ds; e < de; e++ {
		down = append(down, [3]uint32{node, pg.DownTo[e], pg.DownWeight[e]})
	}
	return rank, fwd, down
}

func saturatingAddU32(a, b uint32) uint32 {
	sum := a + b
	if sum < a {
		return infU32
	}
	return sum
}
