package roadnet

import (
	"sort"

	"github.com/paulmach/osm"

	"cpdrouter/pkg/graphmodel"
)

// Build compacts parsed OSM edges into a CSR Graph with geodetic
// coordinates. Euclidean is left false: OSM edge weights are travel
// distances along curved roads, not straight-line distances, so the
// Euclidean-embedding weight invariant does not apply.
func Build(result *ParseResult) *graphmodel.Graph {
	if len(result.Edges) == 0 {
		return &graphmodel.Graph{FirstOut: []uint32{0}}
	}

	nodeSet := make(map[osm.NodeID]uint32)
	var nodeIDs []osm.NodeID
	addNode := func(id osm.NodeID) uint32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := uint32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}
	for i := range result.Edges {
		addNode(result.Edges[i].FromNodeID)
		addNode(result.Edges[i].ToNodeID)
	}

	numVertices := uint32(len(nodeIDs))

	type compactEdge struct {
		from, to uint32
		weight   float64
	}
	compact := make([]compactEdge, len(result.Edges))
	for i, e := range result.Edges {
		compact[i] = compactEdge{from: nodeSet[e.FromNodeID], to: nodeSet[e.ToNodeID], weight: e.Weight}
	}
	sort.Slice(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numVertices+1)
	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)
	for i, e := range compact {
		head[i] = e.to
		weight[i] = e.weight
	}
	for _, e := range compact {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}

	lat := make([]float64, numVertices)
	lon := make([]float64, numVertices)
	externalID := make([]uint64, numVertices)
	for id, idx := range nodeSet {
		lat[idx] = result.NodeLat[id]
		lon[idx] = result.NodeLon[id]
		externalID[idx] = uint64(id)
	}

	return &graphmodel.Graph{
		NumVertices: numVertices,
		FirstOut:    firstOut,
		Head:        head,
		Weight:      weight,
		Lat:         lat,
		Lon:         lon,
		ExternalID:  externalID,
		Euclidean:   false,
	}
}
