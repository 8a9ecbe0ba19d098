package csr

import (
	"sort"

	"reachcore/internal/rerr"
)

// Edge is one external-ID edge record as supplied by the caller:
// (u_ext, v_ext, oneway, w_sec). Non-oneway edges are expanded into both
// directions during Build.
type Edge struct {
	U      int64
	V      int64
	Oneway bool
	WSec   uint16
}

// Build converts external node and edge arrays into a sorted CSR Graph.
// NodeIDs must be unique; edges referencing a node ID absent from NodeIDs
// are dropped, matching the reference builder's behavior. Output ordinals
// follow the order of NodeIDs.
func Build(nodeIDs []int64, lat, lon []float32, edges []Edge) (*Graph, error) {
	if len(lat) != len(nodeIDs) || len(lon) != len(nodeIDs) {
		return nil, rerr.Validationf("lat/lon length %d/%d must match node count %d", len(lat), len(lon), len(nodeIDs))
	}

	numNodes := uint32(len(nodeIDs))
	ord := make(map[int64]uint32, numNodes)
	for i, id := range nodeIDs {
		ord[id] = uint32(i)
	}

	type directed struct {
		src, dst uint32
		w        uint16
	}
	directedEdges := make([]directed, 0, len(edges)*2)
	for _, e := range edges {
		su, ok := ord[e.U]
		if !ok {
			continue
		}
		sv, ok := ord[e.V]
		if !ok {
			continue
		}
		directedEdges = append(directedEdges, directed{su, sv, e.WSec})
		if !e.Oneway {
			directedEdges = append(directedEdges, directed{sv, su, e.WSec})
		}
	}

	sort.Slice(directedEdges, func(i, j int) bool {
		if directedEdges[i].src != directedEdges[j].src {
			return directedEdges[i].src < directedEdges[j].src
		}
		return directedEdges[i].dst < directedEdges[j].dst
	})

	numEdges := uint32(len(directedEdges))
	indPtr := make([]int64, numNodes+1)
	indices := make([]int32, numEdges)
	weight := make([]uint16, numEdges)

	for _, e := range directedEdges {
		indPtr[e.src+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		indPtr[i] += indPtr[i-1]
	}
	for i, e := range directedEdges {
		indices[i] = int32(e.dst)
		weight[i] = e.w
	}

	nodeLat := make([]float32, numNodes)
	nodeLon := make([]float32, numNodes)
	copy(nodeLat, lat)
	copy(nodeLon, lon)

	idsCopy := make([]int64, numNodes)
	copy(idsCopy, nodeIDs)

	return &Graph{
		NumNodes: numNodes,
		NumEdges: numEdges,
		IndPtr:   indPtr,
		Indices:  indices,
		Weight:   weight,
		NodeLat:  nodeLat,
		NodeLon:  nodeLon,
		NodeIDs:  idsCopy,
	}, nil
}
