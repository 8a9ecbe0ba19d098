// Package hexagg implements the Hex Aggregator (C6): deriving per-node H3
// cell ids at a set of requested resolutions, then reducing per-node
// K-best labels (pkg/labelstore) into per-cell top-K labels.
package hexagg

import (
	"context"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"reachcore/internal/pool"
	"reachcore/pkg/labelstore"
)

// CellIDs computes, for every node and every requested resolution, the H3
// cell containing it. The finest requested resolution is indexed directly
// from (lat, lon); every coarser resolution is derived by walking parent
// cells one level at a time from the finest cell, rather than re-indexing
// from scratch. A node with non-finite coordinates, or whose coordinates
// h3 rejects, gets cell id 0 at every resolution — the sentinel the
// aggregation pass skips.
func CellIDs(lat, lon []float32, resolutions []int) [][]uint64 {
	n := len(lat)
	cols := len(resolutions)
	out := make([][]uint64, n)
	for i := range out {
		out[i] = make([]uint64, cols)
	}
	if n == 0 || cols == 0 {
		return out
	}

	uniqDesc := uniqueDescending(resolutions)
	maxRes := uniqDesc[0]

	finest := make([]uint64, n)
	for i := 0; i < n; i++ {
		la, lo := float64(lat[i]), float64(lon[i])
		if !isFinite(la) || !isFinite(lo) {
			continue
		}
		cell := h3.LatLngToCell(h3.LatLng{Lat: la, Lng: lo}, maxRes)
		if !cell.IsValid() {
			continue
		}
		finest[i] = uint64(cell)
	}

	perRes := make(map[int][]uint64, len(uniqDesc))
	perRes[maxRes] = finest

	current := finest
	currentRes := maxRes
	for _, target := range uniqDesc[1:] {
		for currentRes > target {
			nextRes := currentRes - 1
			next := make([]uint64, n)
			for i, h := range current {
				if h == 0 {
					continue
				}
				parent := h3.Cell(h).Parent(nextRes)
				if !parent.IsValid() {
					continue
				}
				next[i] = uint64(parent)
			}
			current = next
			currentRes = nextRes
		}
		cached := make([]uint64, n)
		copy(cached, current)
		perRes[target] = cached
	}

	for ri, res := range resolutions {
		column := perRes[res]
		for node := 0; node < n; node++ {
			out[node][ri] = column[node]
		}
	}
	return out
}

func uniqueDescending(resolutions []int) []int {
	seen := make(map[int]bool, len(resolutions))
	var uniq []int
	for _, r := range resolutions {
		if !seen[r] {
			seen[r] = true
			uniq = append(uniq, r)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(uniq)))
	return uniq
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Result is the long-format output of Aggregate: parallel slices, one
// entry per (cell, label) pair, grouped by cell and sorted within each
// group by ascending time then ascending anchor id.
type Result struct {
	H3ID       []uint64
	Anchor     []int32
	Time       []uint16
	Resolution []int32
}

// Aggregate reduces labels (a node-indexed K-best store, typically the
// output of pkg/kbest.Kbest) into per-H3-cell top-K labels, independently
// for every column of cellIDs (as returned by CellIDs; cellIDs[node][ri]
// pairs with resolutions[ri]). Each resolution's reduction is chunked
// across threads by contiguous node range and merged single-threaded, so
// the result is identical regardless of thread count.
func Aggregate(cellIDs [][]uint64, resolutions []int, labels *labelstore.Store, threads int) (*Result, error) {
	result := &Result{}
	if len(resolutions) == 0 || len(cellIDs) == 0 {
		return result, nil
	}
	n := len(cellIDs)

	for ri, res := range resolutions {
		column := make([]uint64, n)
		for node := 0; node < n; node++ {
			column[node] = cellIDs[node][ri]
		}
		ids, anchors, times, err := aggregateResolution(column, labels, threads)
		if err != nil {
			return nil, err
		}
		for i := range ids {
			result.H3ID = append(result.H3ID, ids[i])
			result.Anchor = append(result.Anchor, anchors[i])
			result.Time = append(result.Time, times[i])
			result.Resolution = append(result.Resolution, int32(res))
		}
	}
	return result, nil
}

type partial struct {
	ids   []uint64
	store *labelstore.Store
}

// aggregateResolution runs one resolution's reduction: a parallel
// per-chunk build of (distinct cell id -> labelstore row) partials,
// reusing labelstore.Store for the per-cell top-K bookkeeping instead of
// duplicating its insert/bubble logic, followed by a single-threaded
// merge in fixed chunk order.
func aggregateResolution(cellIDs []uint64, labels *labelstore.Store, threads int) (ids []uint64, anchors []int32, times []uint16, err error) {
	n := len(cellIDs)
	k := labels.K
	if threads < 1 {
		threads = 1
	}
	chunks := pool.Partition(n, threads)
	partials := make([]partial, len(chunks))
	indexByLo := make(map[int]int, len(chunks))
	for ci, c := range chunks {
		indexByLo[c.Lo] = ci
	}

	task := func(_ context.Context, c pool.Chunk) error {
		partials[indexByLo[c.Lo]] = buildPartial(cellIDs, labels, k, c)
		return nil
	}
	if err := pool.Run(context.Background(), chunks, threads, task, nil); err != nil {
		return nil, nil, nil, err
	}

	ids, anchors, times = mergePartials(partials, k)
	return ids, anchors, times, nil
}

// buildPartial assigns every distinct, non-zero cell id in [c.Lo, c.Hi) a
// row in a freshly sized Store (CutoffPrimary == UNREACHABLE collapses it
// to plain bounded top-K with dedup), then replays every valid label from
// each node onto its cell's row.
func buildPartial(cellIDs []uint64, labels *labelstore.Store, k int, c pool.Chunk) partial {
	index := make(map[uint64]int)
	var ids []uint64
	for node := c.Lo; node < c.Hi; node++ {
		cell := cellIDs[node]
		if cell == 0 {
			continue
		}
		if _, ok := index[cell]; !ok {
			index[cell] = len(ids)
			ids = append(ids, cell)
		}
	}

	store := labelstore.New(len(ids), k, labelstore.UNREACHABLE)
	for node := c.Lo; node < c.Hi; node++ {
		cell := cellIDs[node]
		if cell == 0 {
			continue
		}
		row := uint32(index[cell])
		anchorsRow, timesRow := labels.Row(uint32(node))
		for j := 0; j < k; j++ {
			a := anchorsRow[j]
			t := timesRow[j]
			if a == labelstore.NoAnchor || t == labelstore.UNREACHABLE {
				continue
			}
			store.Insert(row, a, t)
		}
	}
	return partial{ids: ids, store: store}
}

// mergePartials folds every chunk's partial store into one global Store,
// assigning each distinct cell id a row the first time it's seen while
// walking partials in fixed chunk order — this is what keeps the merged
// result independent of how many threads built the partials.
func mergePartials(partials []partial, k int) (ids []uint64, anchors []int32, times []uint16) {
	globalIndex := make(map[uint64]int)
	var globalIDs []uint64
	for _, p := range partials {
		for _, id := range p.ids {
			if _, ok := globalIndex[id]; !ok {
				globalIndex[id] = len(globalIDs)
				globalIDs = append(globalIDs, id)
			}
		}
	}

	global := labelstore.New(len(globalIDs), k, labelstore.UNREACHABLE)
	for _, p := range partials {
		for localRow, id := range p.ids {
			globalRow := uint32(globalIndex[id])
			a, t := p.store.Row(uint32(localRow))
			for j := 0; j < k; j++ {
				if a[j] == labelstore.NoAnchor || t[j] == labelstore.UNREACHABLE {
					continue
				}
				global.Insert(globalRow, a[j], t[j])
			}
		}
	}

	for row, id := range globalIDs {
		a, t := global.Row(uint32(row))
		for j := 0; j < k; j++ {
			if a[j] == labelstore.NoAnchor {
				continue
			}
			ids = append(ids, id)
			anchors = append(anchors, a[j])
			times = append(times, t[j])
		}
	}
	return ids, anchors, times
}
