// Command reachctl drives the reachcore compute pipeline end to end:
// load a node/edge CSV pair, build the CSR graph, restrict to its
// largest weakly connected component, run the bounded multi-source
// K-best search from a set of anchor nodes, aggregate the resulting
// labels onto H3 cells, and optionally contract a CH prepared graph for
// later PHAST queries.
package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"reachcore/internal/pool"
	"reachcore/pkg/ch"
	"reachcore/pkg/csr"
	"reachcore/pkg/hexagg"
	"reachcore/pkg/kbest"
	"reachcore/pkg/labelstore"
	"reachcore/pkg/wcc"
)

func main() {
	nodesPath := flag.String("nodes", "", "Path to nodes CSV: id,lat,lon")
	edgesPath := flag.String("edges", "", "Path to edges CSV: u,v,oneway,w_sec")
	anchorsPath := flag.String("anchors", "", "Path to anchors file: one external node id per line")
	k := flag.Int("k", 4, "Labels retained per node/cell")
	cutoffPrimary := flag.Int("cutoff-primary", 1800, "Primary cutoff in seconds")
	cutoffOverflow := flag.Int("cutoff-overflow", 3600, "Overflow cutoff in seconds")
	threads := flag.Int("threads", 1, "Worker threads for the K-best search and hex aggregation")
	resolutions := flag.String("resolutions", "7,8,9", "Comma-separated H3 resolutions to aggregate onto")
	labelsOut := flag.String("labels-out", "labels.csv", "Output CSV for per-node K-best labels")
	hexOut := flag.String("hex-out", "hex.csv", "Output CSV for per-cell H3 top-K labels")
	chOut := flag.String("ch-out", "", "If set, contract a CH prepared graph and write it to this path")
	progress := flag.Bool("progress", false, "Show a progress bar during the K-best search and hex aggregation")
	flag.Parse()

	if *nodesPath == "" || *edgesPath == "" || *anchorsPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: reachctl --nodes nodes.csv --edges edges.csv --anchors anchors.txt [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	start := time.Now()

	logger.Info("reachctl: loading nodes", zap.String("path", *nodesPath))
	nodeIDs, lat, lon, err := loadNodes(*nodesPath)
	if err != nil {
		logger.Fatal("failed to load nodes", zap.Error(err))
	}
	logger.Info("reachctl: loading edges", zap.String("path", *edgesPath))
	edges, err := loadEdges(*edgesPath)
	if err != nil {
		logger.Fatal("failed to load edges", zap.Error(err))
	}

	logger.Info("reachctl: building CSR graph", zap.Int("nodes", len(nodeIDs)), zap.Int("edges", len(edges)))
	g, err := csr.Build(nodeIDs, lat, lon, edges)
	if err != nil {
		logger.Fatal("failed to build graph", zap.Error(err))
	}

	logger.Info("reachctl: extracting largest connected component")
	componentNodes := wcc.LargestComponent(g)
	logger.Info("reachctl: largest component",
		zap.Int("nodes", len(componentNodes)), zap.Uint32("of", g.NumNodes))
	g = wcc.FilterToComponent(g, componentNodes)

	anchorExtIDs, err := loadAnchors(*anchorsPath)
	if err != nil {
		logger.Fatal("failed to load anchors", zap.Error(err))
	}
	anchors, err := resolveAnchors(g, anchorExtIDs)
	if err != nil {
		logger.Fatal("failed to resolve anchors", zap.Error(err))
	}
	logger.Info("reachctl: resolved anchors", zap.Int("count", len(anchors)))

	var bar *progressbar.ProgressBar
	var progressFn pool.ProgressFunc
	if *progress {
		bar = progressbar.Default(-1, "kbest")
		progressFn = func(done, total int) {
			bar.ChangeMax(total)
			bar.Set(done)
		}
	}

	logger.Info("reachctl: running bucket K-best search",
		zap.Int("k", *k), zap.Int("cutoff_primary", *cutoffPrimary), zap.Int("cutoff_overflow", *cutoffOverflow))
	labels, err := kbest.Kbest(g, anchors, kbest.Config{
		K:              *k,
		CutoffPrimary:  uint16(*cutoffPrimary),
		CutoffOverflow: uint16(*cutoffOverflow),
		Threads:        *threads,
		Progress:       progressFn,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("kbest failed", zap.Error(err))
	}

	logger.Info("reachctl: writing labels", zap.String("path", *labelsOut))
	if err := writeLabels(*labelsOut, g, labels); err != nil {
		logger.Fatal("failed to write labels", zap.Error(err))
	}

	resList, err := parseResolutions(*resolutions)
	if err != nil {
		logger.Fatal("failed to parse resolutions", zap.Error(err))
	}

	logger.Info("reachctl: computing H3 cells", zap.Ints("resolutions", resList))
	cells := hexagg.CellIDs(g.NodeLat, g.NodeLon, resList)

	if *progress {
		bar = progressbar.Default(-1, "hexagg")
	}
	logger.Info("reachctl: aggregating onto H3 cells")
	hexResult, err := hexagg.Aggregate(cells, resList, labels, *threads)
	if err != nil {
		logger.Fatal("hex aggregation failed", zap.Error(err))
	}
	if bar != nil {
		bar.Finish()
	}

	logger.Info("reachctl: writing hex aggregation", zap.String("path", *hexOut))
	if err := writeHex(*hexOut, hexResult); err != nil {
		logger.Fatal("failed to write hex output", zap.Error(err))
	}

	if *chOut != "" {
		logger.Info("reachctl: contracting CH prepared graph")
		pg := ch.Contract(g, logger)
		logger.Info("reachctl: writing CH binary", zap.String("path", *chOut))
		if err := ch.WriteBinary(*chOut, pg); err != nil {
			logger.Fatal("failed to write CH binary", zap.Error(err))
		}
	}

	logger.Info("reachctl: done", zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
}

func loadNodes(path string) (ids []int64, lat, lon []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 3
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, nil, err
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("nodes: bad id %q: %w", rec[0], err)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 32)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("nodes: bad lat %q: %w", rec[1], err)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 32)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("nodes: bad lon %q: %w", rec[2], err)
		}
		ids = append(ids, id)
		lat = append(lat, float32(la))
		lon = append(lon, float32(lo))
	}
	return ids, lat, lon, nil
}

func loadEdges(path string) ([]csr.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var edges []csr.Edge
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 4
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		u, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edges: bad u %q: %w", rec[0], err)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edges: bad v %q: %w", rec[1], err)
		}
		oneway, err := strconv.ParseBool(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("edges: bad oneway %q: %w", rec[2], err)
		}
		w, err := strconv.ParseUint(strings.TrimSpace(rec[3]), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("edges: bad weight %q: %w", rec[3], err)
		}
		edges = append(edges, csr.Edge{U: u, V: v, Oneway: oneway, WSec: uint16(w)})
	}
	return edges, nil
}

func loadAnchors(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []int64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("anchors: bad id %q: %w", line, err)
		}
		ids = append(ids, id)
	}
	return ids, sc.Err()
}

// resolveAnchors maps external anchor node ids to g's CSR ordinals (as
// assigned by csr.Build and renumbered by wcc.FilterToComponent), using
// g.NodeIDs (present because Build and
// FilterToComponent both preserve the node-id passthrough).
func resolveAnchors(g *csr.Graph, extIDs []int64) ([]int32, error) {
	if g.NodeIDs == nil {
		return nil, fmt.Errorf("graph has no node-id passthrough to resolve anchors against")
	}
	byID := make(map[int64]int32, len(g.NodeIDs))
	for ord, id := range g.NodeIDs {
		byID[id] = int32(ord)
	}
	anchors := make([]int32, 0, len(extIDs))
	for _, id := range extIDs {
		ord, ok := byID[id]
		if !ok {
			continue
		}
		anchors = append(anchors, ord)
	}
	return anchors, nil
}

func parseResolutions(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad resolution %q: %w", p, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// writeLabels emits one row per (node, slot) with a real label, mapping
// ordinals back to external node/anchor ids via g.NodeIDs.
func writeLabels(path string, g *csr.Graph, labels *labelstore.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(bufio.NewWriter(f))
	defer w.Flush()

	if err := w.Write([]string{"node_id", "anchor_id", "time_s"}); err != nil {
		return err
	}
	for node := uint32(0); node < g.NumNodes; node++ {
		anchors, times := labels.Row(node)
		nodeID := nodeExternalID(g, node)
		for j := 0; j < labels.K; j++ {
			a := anchors[j]
			if a == labelstore.NoAnchor {
				continue
			}
			rec := []string{
				strconv.FormatInt(nodeID, 10),
				strconv.FormatInt(int64(nodeExternalID(g, uint32(a))), 10),
				strconv.FormatUint(uint64(times[j]), 10),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

func nodeExternalID(g *csr.Graph, ord uint32) int64 {
	if g.NodeIDs == nil {
		return int64(ord)
	}
	return g.NodeIDs[ord]
}

func writeHex(path string, result *hexagg.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(bufio.NewWriter(f))
	defer w.Flush()

	if err := w.Write([]string{"h3_id", "anchor", "time_s", "resolution"}); err != nil {
		return err
	}
	for i := range result.H3ID {
		rec := []string{
			strconv.FormatUint(result.H3ID[i], 10),
			strconv.FormatInt(int64(result.Anchor[i]), 10),
			strconv.FormatUint(uint64(result.Time[i]), 10),
			strconv.FormatInt(int64(result.Resolution[i]), 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
