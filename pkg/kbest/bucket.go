// Package kbest implements the Bucket K-Best Engine (C4): a multi-source
// bounded top-K shortest-paths search over a static CSR graph using a
// Dial bucket frontier, with deterministic data-parallel chunking and
// merge so output is identical regardless of thread count.
package kbest

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"reachcore/internal/pool"
	"reachcore/internal/rerr"
	"reachcore/pkg/csr"
	"reachcore/pkg/labelstore"
)

// Config holds the tunables for one Kbest call.
type Config struct {
	K              int
	CutoffPrimary  uint16
	CutoffOverflow uint16
	Threads        int
	// Targets, if non-nil, enables per-chunk early termination: once every
	// target node ordinal has received at least one label, that chunk's
	// search stops early.
	Targets *roaring.Bitmap
	// Progress, if non-nil, is invoked once per completed chunk in the
	// parallel path, and once as (1, 1) on the single-chunk path.
	Progress pool.ProgressFunc
	Logger   *zap.Logger
}

// pairKey packs (node, anchor) into the dedup map key, per spec.md's
// node<<32|anchor convention.
func pairKey(node uint32, anchor int32) uint64 {
	return uint64(node)<<32 | uint64(uint32(anchor))
}

// Kbest runs the multi-source bounded top-K search and returns the
// resulting label store (one row of up to K (anchor,time) labels per
// node).
func Kbest(g *csr.Graph, anchors []int32, cfg Config) (*labelstore.Store, error) {
	if cfg.K < 1 {
		return nil, rerr.Validationf("K must be >= 1, got %d", cfg.K)
	}
	if cfg.CutoffOverflow < cfg.CutoffPrimary {
		return nil, rerr.Validationf("cutoff_overflow (%d) must be >= cutoff_primary (%d)", cfg.CutoffOverflow, cfg.CutoffPrimary)
	}
	for _, a := range anchors {
		if a < 0 || uint32(a) >= g.NumNodes {
			return nil, rerr.Validationf("anchor %d out of range [0, %d)", a, g.NumNodes)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	minOut := g.MinOutWeight()

	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	shouldParallel := threads > 1 && len(anchors) > threads*4

	if !shouldParallel {
		logger.Info("kbest: single-chunk search",
			zap.Int("anchors", len(anchors)), zap.Uint32("nodes", g.NumNodes))
		store := computeChunk(g, minOut, anchors, cfg)
		if cfg.Progress != nil {
			cfg.Progress(1, 1)
		}
		return store, nil
	}

	numParts := threads * 2
	if numParts > len(anchors) {
		numParts = len(anchors)
	}
	chunks := pool.Partition(len(anchors), numParts)

	logger.Info("kbest: parallel chunked search",
		zap.Int("anchors", len(anchors)), zap.Int("chunks", len(chunks)), zap.Int("threads", threads))

	results := make([]*labelstore.Store, len(chunks))
	indexByLo := make(map[int]int, len(chunks))
	for ci, c := range chunks {
		indexByLo[c.Lo] = ci
	}
	task := func(_ context.Context, c pool.Chunk) error {
		results[indexByLo[c.Lo]] = computeChunk(g, minOut, anchors[c.Lo:c.Hi], cfg)
		return nil
	}
	if err := pool.Run(context.Background(), chunks, threads, task, cfg.Progress); err != nil {
		return nil, rerr.Resourcef(err, "kbest: chunk computation failed")
	}

	return mergeChunks(g.NumNodes, cfg.K, cfg.CutoffPrimary, results), nil
}

type bucketPair struct {
	node   int32
	anchor int32
}

// computeChunk runs the Dial bucket search for one anchor subset against
// the full node set, returning a freshly allocated label store.
func computeChunk(g *csr.Graph, minOut []uint16, anchors []int32, cfg Config) *labelstore.Store {
	store := labelstore.New(int(g.NumNodes), cfg.K, cfg.CutoffPrimary)

	bucketsLen := int(cfg.CutoffOverflow) + 1
	buckets := make([][]bucketPair, bucketsLen)
	active := make([]bool, bucketsLen)
	activeCount := 0

	markActive := func(idx int) {
		if !active[idx] {
			active[idx] = true
			activeCount++
		}
	}

	for _, s := range anchors {
		buckets[0] = append(buckets[0], bucketPair{node: s, anchor: s})
	}
	if len(buckets[0]) > 0 {
		markActive(0)
	}

	pairBest := make(map[uint64]uint16, len(anchors)*8)

	var targetMask *roaring.Bitmap
	remainingTargets := 0
	trackTargets := cfg.Targets != nil && !cfg.Targets.IsEmpty()
	if trackTargets {
		targetMask = cfg.Targets
		remainingTargets = int(targetMask.GetCardinality())
	}

	curIdx := 0
	for activeCount > 0 {
		if !active[curIdx] || len(buckets[curIdx]) == 0 {
			if active[curIdx] && len(buckets[curIdx]) == 0 {
				active[curIdx] = false
				activeCount--
			}
			curIdx = (curIdx + 1) % bucketsLen
			continue
		}

		n := len(buckets[curIdx])
		p := buckets[curIdx][n-1]
		buckets[curIdx] = buckets[curIdx][:n-1]
		u, anchor := uint32(p.node), p.anchor
		du := uint16(curIdx)

		key := pairKey(u, anchor)
		if best, ok := pairBest[key]; ok && du >= best {
			if len(buckets[curIdx]) == 0 && active[curIdx] {
				active[curIdx] = false
				activeCount--
			}
			continue
		}
		pairBest[key] = du

		if int(store.PrimaryCount[u]) == cfg.K {
			_, times := store.Row(u)
			worst := times[cfg.K-1]
			if du >= worst {
				if len(buckets[curIdx]) == 0 && active[curIdx] {
					active[curIdx] = false
					activeCount--
				}
				continue
			}
			m := minOut[u]
			if m > 0 && uint32(du)+uint32(m) >= uint32(worst) {
				if len(buckets[curIdx]) == 0 && active[curIdx] {
					active[curIdx] = false
					activeCount--
				}
				continue
			}
		}

		beforeUsed := store.Used[u]
		store.Insert(u, anchor, du)

		if trackTargets && beforeUsed == 0 && targetMask.Contains(u) {
			remainingTargets--
			if remainingTargets == 0 {
				break
			}
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := uint32(g.Indices[e])
			w := g.Weight[e]
			nd32 := uint32(du) + uint32(w)
			if nd32 > uint32(cfg.CutoffOverflow) {
				continue
			}
			nd := uint16(nd32)
			if int(store.PrimaryCount[v]) == cfg.K {
				_, times := store.Row(v)
				if nd >= times[cfg.K-1] {
					continue
				}
			}
			vkey := pairKey(v, anchor)
			if best, ok := pairBest[vkey]; ok && nd >= best {
				continue
			}
			ndi := int(nd)
			buckets[ndi] = append(buckets[ndi], bucketPair{node: int32(v), anchor: anchor})
			markActive(ndi)
		}

		if len(buckets[curIdx]) == 0 && active[curIdx] {
			active[curIdx] = false
			activeCount--
		}
	}

	return store
}

type candidate struct {
	time   uint16
	anchor int32
}

// mergeChunks gathers each chunk's labels per node, sorts by (time asc,
// anchor asc), and replays Insert in that order so the result is
// independent of chunk count or goroutine scheduling.
func mergeChunks(numNodes uint32, k int, cutoffPrimary uint16, chunks []*labelstore.Store) *labelstore.Store {
	final := labelstore.New(int(numNodes), k, cutoffPrimary)

	cands := make([]candidate, 0, len(chunks)*k)
	for node := uint32(0); node < numNodes; node++ {
		cands = cands[:0]
		for _, chunk := range chunks {
			anchors, times := chunk.Row(node)
			for j := 0; j < k; j++ {
				a := anchors[j]
				if a < 0 {
					continue
				}
				t := times[j]
				if t >= labelstore.UNREACHABLE {
					continue
				}
				cands = append(cands, candidate{time: t, anchor: a})
			}
		}

		sort.Slice(cands, func(i, j int) bool {
			if cands[i].time != cands[j].time {
				return cands[i].time < cands[j].time
			}
			return cands[i].anchor < cands[j].anchor
		})

		for _, c := range cands {
			final.Insert(node, c.anchor, c.time)
		}
	}

	return final
}
