// Package search implements the CPD-guided bounded-suboptimal A* query
// engine: an admissible lower-bound heuristic paired with a CPD-derived
// upper bound, a search-node arena reused across queries via an epoch
// counter, and the best-first loop that maintains an incumbent while
// pruning on both f and ub.
package search

import (
	"math"

	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/geo"
	"cpdrouter/pkg/graphmodel"
)

// Heuristic supplies both the admissible lower bound h(n) and the
// CPD-derived upper bound ub(n) for a node n with respect to the current
// query's target.
type Heuristic struct {
	g      *graphmodel.Graph
	c      *cpd.CPD
	hscale float64
}

// NewHeuristic builds a Heuristic bound to g and c. hscale multiplies the
// admissible lower bound (values > 1 make the search inadmissible but
// faster; the CPD upper bound keeps returned paths bounded-suboptimal
// regardless).
func NewHeuristic(g *graphmodel.Graph, c *cpd.CPD, hscale float64) *Heuristic {
	if hscale <= 0 {
		hscale = 1
	}
	return &Heuristic{g: g, c: c, hscale: hscale}
}

// H returns the admissible lower-bound distance from n to target, scaled
// by hscale. A graph with neither Lat/Lon nor X/Y coordinates gets 0, the
// trivial lower bound.
func (h *Heuristic) H(n, target uint32) float64 {
	if h.g.Lat != nil {
		return h.hscale * geo.Haversine(h.g.Lat[n], h.g.Lon[n], h.g.Lat[target], h.g.Lon[target])
	}
	if len(h.g.X) == 0 {
		return 0
	}
	x1, y1 := h.g.XY(n)
	x2, y2 := h.g.XY(target)
	if h.g.Octile {
		return h.hscale * geo.Octile(x1, y1, x2, y2)
	}
	return h.hscale * geo.Euclidean(x1, y1, x2, y2)
}

// UB returns the CPD-derived upper-bound distance from n to target, or
// +Inf if the CPD has no continuation from n (e.g. n is unreachable to
// target after perturbation).
func (h *Heuristic) UB(n, target uint32) float64 {
	dist, ok := h.c.Distance(h.g, n, target, ubMaxSteps(h.g))
	if !ok {
		return math.Inf(1)
	}
	return dist
}

func ubMaxSteps(g *graphmodel.Graph) int {
	// A concrete path can visit each vertex at most once on an
	// unperturbed CPD; double it as slack against a perturbed CPD whose
	// first-move chain briefly detours before regaining an optimal path.
	n := int(g.NumVertices)
	if n < 64 {
		return 64
	}
	return 2 * n
}
