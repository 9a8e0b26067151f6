// Package graphmodel implements the indexed vertex/edge store shared by every
// preprocessing and query component: a directed graph in CSR (Compressed
// Sparse Row) form, carrying integer planar coordinates and supporting the
// well-defined edge-weight perturbation operation used to model dynamic
// costs without invalidating a built CPD.
package graphmodel

import (
	"math"

	"cpdrouter/pkg/cpderr"
)

// Graph is a directed graph in CSR format. Vertex identifiers are dense and
// contiguous in [0, NumVertices). Edges are directed with non-negative real
// weights.
type Graph struct {
	NumVertices uint32
	FirstOut    []uint32  // len NumVertices+1; FirstOut[v]..FirstOut[v+1] index into Head/Weight
	Head        []uint32  // len NumEdges; target vertex of each edge
	Weight      []float64 // len NumEdges; non-negative edge weight

	// X, Y are planar integer coordinates. For OSM-derived graphs these are
	// not populated; use Lat/Lon instead and consult Euclidean.
	X, Y []int32

	// Lat, Lon hold WGS84 degrees for road-network graphs. Nil for
	// grid/DIMACS graphs.
	Lat, Lon []float64

	// Euclidean is true when edge weights are claimed to embed straight-line
	// distance between X,Y (or octile distance, for grid graphs) —
	// load-time weight validation consults this flag.
	Euclidean bool

	// Octile is true for 8-connected grid graphs, where the admissible
	// search heuristic is octile distance rather than plain Euclidean
	// distance (octile is tighter there, since movement is restricted to
	// 8 directions). Implies Euclidean.
	Octile bool

	// ExternalID maps internal vertex id to the externally-visible id
	// (1-indexed for DIMACS, OSM node id for road networks). Nil means
	// internal ids are already the external ids (e.g. grid maps).
	ExternalID []uint64
	graphID    map[uint64]uint32
}

// NumEdges returns the number of directed edges in the graph.
func (g *Graph) NumEdges() uint32 {
	if len(g.FirstOut) == 0 {
		return 0
	}
	return g.FirstOut[g.NumVertices]
}

// OutEdges returns the half-open range of edge indices originating at v.
func (g *Graph) OutEdges(v uint32) (start, end uint32) {
	return g.FirstOut[v], g.FirstOut[v+1]
}

// XY returns the planar coordinates of vertex v.
func (g *Graph) XY(v uint32) (x, y int32) {
	return g.X[v], g.Y[v]
}

// buildGraphIDIndex lazily constructs the external-id-to-internal-id map.
func (g *Graph) buildGraphIDIndex() {
	if g.graphID != nil || g.ExternalID == nil {
		return
	}
	g.graphID = make(map[uint64]uint32, len(g.ExternalID))
	for i, ext := range g.ExternalID {
		g.graphID[ext] = uint32(i)
	}
}

// ToExternalID converts an internal vertex id to its externally-visible id.
func (g *Graph) ToExternalID(v uint32) uint64 {
	if g.ExternalID == nil {
		return uint64(v)
	}
	return g.ExternalID[v]
}

// ToGraphID converts an externally-visible id to an internal vertex id. The
// second return value is false when the external id is unknown.
func (g *Graph) ToGraphID(ext uint64) (uint32, bool) {
	if g.ExternalID == nil {
		if ext >= uint64(g.NumVertices) {
			return 0, false
		}
		return uint32(ext), true
	}
	g.buildGraphIDIndex()
	v, ok := g.graphID[ext]
	return v, ok
}

// PerturbTriple is one ⟨tail, head, new_weight⟩ record from a perturbation
// stream, expressed in internal vertex ids.
type PerturbTriple struct {
	Tail, Head uint32
	NewWeight  float64
}

// Perturb overwrites the weight of edge (tail -> head) in place, if present.
// A perturbation naming an edge that does not exist is silently ignored —
// perturbations never change topology, only weights.
func (g *Graph) Perturb(triples []PerturbTriple) {
	for _, t := range triples {
		start, end := g.OutEdges(t.Tail)
		for e := start; e < end; e++ {
			if g.Head[e] == t.Head {
				g.Weight[e] = t.NewWeight
				break
			}
		}
	}
}

// Validate checks the invariants required before a graph can be used for
// CPD preprocessing: dense contiguous ids, in-range edge targets,
// non-negative weights, and (when Euclidean is set) weights no smaller than
// straight-line distance.
func (g *Graph) Validate() error {
	if uint32(len(g.FirstOut)) != g.NumVertices+1 {
		return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate",
			errLenMismatch("FirstOut", len(g.FirstOut), int(g.NumVertices+1)))
	}
	numEdges := g.NumEdges()
	if uint32(len(g.Head)) != numEdges || uint32(len(g.Weight)) != numEdges {
		return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate",
			errLenMismatch("Head/Weight", len(g.Head), int(numEdges)))
	}
	for v := uint32(1); v <= g.NumVertices; v++ {
		if g.FirstOut[v] < g.FirstOut[v-1] {
			return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate", errNonMonotonic(v))
		}
	}
	for e, h := range g.Head {
		if h >= g.NumVertices {
			return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate", errHeadOutOfRange(e, int(h), g.NumVertices))
		}
	}
	for v := uint32(0); v < g.NumVertices; v++ {
		start, end := g.OutEdges(v)
		for e := start; e < end; e++ {
			if g.Weight[e] < 0 {
				return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate", errNegativeWeight(v, g.Head[e], g.Weight[e]))
			}
			if g.Euclidean && g.X != nil {
				straight := euclidean(g.X[v], g.Y[v], g.Head[e], g)
				const slack = 1e-6
				if g.Weight[e]+slack < straight {
					return cpderr.New(cpderr.KindInvalidGraph, "graph.Validate", errSubEuclidean(v, g.Head[e], g.Weight[e], straight))
				}
			}
		}
	}
	return nil
}

func euclidean(x1, y1 int32, head uint32, g *Graph) float64 {
	dx := float64(x1 - g.X[head])
	dy := float64(y1 - g.Y[head])
	return math.Sqrt(dx*dx + dy*dy)
}
