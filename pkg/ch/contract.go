// Package ch implements the CH Query Engine (C5): contraction hierarchy
// preparation, the PHAST one-to-all/subset query, and opaque blob
// serialization of the prepared structure.
package ch

import (
	"container/heap"

	"go.uber.org/zap"

	"reachcore/pkg/csr"
)

// maxShortcutsPerNode bounds the shortcuts a single contraction step may
// create; the first node exceeding this stops contraction, and it and
// every node not yet contracted remain uncontracted, forming a core at
// the top of the hierarchy.
const maxShortcutsPerNode = 1000

// adjEntry is an edge in the mutable adjacency list used during
// contraction: original edges carry middle == -1, shortcuts carry the
// node id they bypass.
type adjEntry struct {
	to     uint32
	weight uint32
	middle int32
}

// Contract runs Contraction Hierarchies preprocessing over g (whose
// weights must all be >= 1) and returns the prepared query structure.
func Contract(g *csr.Graph, logger *zap.Logger) *PreparedGraph {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := g.NumNodes
	if n == 0 {
		return &PreparedGraph{}
	}

	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)
	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := uint32(g.Indices[e])
			w := uint32(g.Weight[e])
			outAdj[u] = append(outAdj[u], adjEntry{to: v, weight: w, middle: -1})
			inAdj[v] = append(inAdj[v], adjEntry{to: u, weight: w, middle: -1})
		}
	}

	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)
	level := make([]int, n)

	pq := make(priorityQueue, n)
	for i := uint32(0); i < n; i++ {
		pq[i] = &pqEntry{
			node:     i,
			priority: computePriority(outAdj, inAdj, i, contracted, contractedNeighbors[i], level[i]),
			index:    int(i),
		}
	}
	heap.Init(&pq)

	ws := newWitnessState(n)

	logger.Info("ch: starting contraction", zap.Uint32("nodes", n))

	var totalShortcuts int
	order := uint32(0)

	for pq.Len() > 0 {
		entry := heap.Pop(&pq).(*pqEntry)
		node := entry.node
		if contracted[node] {
			continue
		}

		newPriority := computePriority(outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node])
		if newPriority > entry.priority && pq.Len() > 0 && newPriority > pq[0].priority {
			entry.priority = newPriority
			heap.Push(&pq, entry)
			continue
		}

		shortcuts := findShortcuts(ws, outAdj, inAdj, node, contracted)
		if len(shortcuts) > maxShortcutsPerNode {
			logger.Info("ch: stopping contraction early",
				zap.Uint32("node", node), zap.Int("shortcuts", len(shortcuts)), zap.Uint32("core_remaining", n-order))
			break
		}

		contracted[node] = true
		rank[node] = order
		order++
		totalShortcuts += len(shortcuts)

		for _, sc := range shortcuts {
			outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, weight: sc.weight, middle: int32(node)})
			inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, weight: sc.weight, middle: int32(node)})
		}

		for _, e := range outAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
		for _, e := range inAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
	}

	coreSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		if !contracted[i] {
			contracted[i] = true
			rank[i] = order
			order++
			coreSize++
		}
	}

	logger.Info("ch: contraction complete",
		zap.Int("shortcuts", totalShortcuts), zap.Uint32("core_nodes", coreSize))

	return buildPrepared(n, outAdj, rank)
}

const (
	maxWitnessSettled = 500 // max nodes settled during a witness search
	maxWitnessHops    = 5   // max hops from the witness source
)

const maxUint32 = ^uint32(0)

// witnessHeapItem is an entry in the witness search min-heap.
type witnessHeapItem struct {
	node uint32
	dist uint32
	hops int
}

// witnessHeap is a concrete-typed binary min-heap for witness search,
// avoiding container/heap's interface-boxing overhead the same way
// phast.go's minHeap does for PHAST's upward Dijkstra.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Push(node uint32, dist uint32, hops int) {
	h.items = append(h.items, witnessHeapItem{node, dist, hops})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

// siftUp uses hole-sift: saves the floating item and does 1 assignment per
// level instead of 3 (swap).
func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

// siftDown uses hole-sift: saves the floating item and does 1 assignment per
// level instead of 3 (swap).
func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() {
	h.items = h.items[:0]
}

// witnessState holds reusable state for the batch witness searches
// findShortcuts runs while contracting each node. A touched-list reset
// avoids reallocating the distance array between searches.
type witnessState struct {
	dist    []uint32 // distance array indexed by node ordinal
	touched []uint32 // nodes touched since the last reset
	heap    witnessHeap
}

func newWitnessState(n uint32) *witnessState {
	dist := make([]uint32, n)
	for i := range dist {
		dist[i] = maxUint32
	}
	return &witnessState{
		dist: dist,
		heap: witnessHeap{items: make([]witnessHeapItem, 0, 256)},
	}
}

func (ws *witnessState) reset() {
	for _, n := range ws.touched {
		ws.dist[n] = maxUint32
	}
	ws.touched = ws.touched[:0]
	ws.heap.Reset()
}

// batchWitnessSearch runs a single Dijkstra from source over the
// not-yet-contracted adjacency (excluding the node being contracted) and
// leaves ws.dist populated with distances to every node it reached. This
// replaces the per-(in,out)-pair witness search with a single search per
// incoming neighbor, reducing the number of searches findShortcuts runs
// from O(|in|*|out|) to O(|in|).
func batchWitnessSearch(ws *witnessState, outAdj [][]adjEntry, source, excluded uint32, maxWeight uint32, contracted []bool) {
	ws.reset()

	ws.dist[source] = 0
	ws.touched = append(ws.touched, source)
	ws.heap.Push(source, 0, 0)

	settled := 0

	for ws.heap.Len() > 0 {
		cur := ws.heap.Pop()

		// Skip stale entries.
		if cur.dist > ws.dist[cur.node] {
			continue
		}

		settled++
		if settled >= maxWitnessSettled {
			break
		}

		if cur.dist > maxWeight {
			continue
		}

		if cur.hops >= maxWitnessHops {
			continue
		}

		for _, e := range outAdj[cur.node] {
			if e.to == excluded || contracted[e.to] {
				continue
			}

			newDist := cur.dist + e.weight
			if newDist > maxWeight {
				continue
			}

			if newDist < ws.dist[e.to] {
				if ws.dist[e.to] == maxUint32 {
					ws.touched = append(ws.touched, e.to)
				}
				ws.dist[e.to] = newDist
				ws.heap.Push(e.to, newDist, cur.hops+1)
			}
		}
	}
}

type shortcut struct {
	from, to uint32
	weight   uint32
}

// findShortcuts determines the shortcuts needed to contract node, using
// one batch witness search per incoming neighbor rather than one per
// (incoming, outgoing) pair.
func findShortcuts(ws *witnessState, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool) []shortcut {
	var incoming []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}
	var outgoing []adjEntry
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}
	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	var shortcuts []shortcut
	for _, in := range incoming {
		var maxOut uint32
		for _, out := range outgoing {
			if out.to != in.to && out.weight > maxOut {
				maxOut = out.weight
			}
		}
		if maxOut == 0 {
			continue
		}
		maxWeight := in.weight + maxOut

		batchWitnessSearch(ws, outAdj, in.to, node, maxWeight, contracted)

		for _, out := range outgoing {
			if out.to == in.to {
				continue
			}
			scWeight := in.weight + out.weight
			if ws.dist[out.to] > scWeight {
				shortcuts = append(shortcuts, shortcut{from: in.to, to: out.to, weight: scWeight})
			}
		}
	}
	return shortcuts
}

// computePriority returns the contraction priority for node (lower =
// contract first): edge-difference heuristic plus contracted-neighbor and
// hierarchy-depth terms.
func computePriority(outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, contractedNeighbors, level int) int {
	activeIn := 0
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			activeIn++
		}
	}
	activeOut := 0
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			activeOut++
		}
	}
	edgeDifference := activeIn*activeOut - (activeIn + activeOut)
	return edgeDifference + 2*contractedNeighbors + level
}

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}
