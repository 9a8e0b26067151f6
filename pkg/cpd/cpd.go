package cpd

import (
	"math"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/order"
)

// CPD is the whole-graph compressed path database: a node ordering plus the
// concatenated RLE rows of every source vertex, held entirely in memory
// (streaming from disk is out of scope).
type CPD struct {
	Order    *order.Ordering
	RowBegin []uint64 // len NumVertices+1; RowBegin[NumVertices] == len(Runs)
	Runs     []Run
}

// NumVertices returns the vertex count implied by the ordering.
func (c *CPD) NumVertices() uint32 {
	return uint32(len(c.Order.ToNew))
}

// rowRunsForSource returns the compressed row for sourceInternal. RowBegin
// is indexed directly by raw internal vertex id, not by Order-space id:
// only the column (target) dimension is reordered, since that is what the
// ordering is chosen to cluster into long runs.
func (c *CPD) rowRunsForSource(sourceInternal uint32) []Run {
	return c.Runs[c.RowBegin[sourceInternal]:c.RowBegin[sourceInternal+1]]
}

// FirstMove returns the first-move symbol for travelling from source
// towards target, both given as internal graph vertex ids. The symbol is
// an index into source's own out-edge list, or SymbolNone/SymbolWildcard.
func (c *CPD) FirstMove(source, target uint32) Symbol {
	runs := c.rowRunsForSource(source)
	tPrime := c.Order.ToNew[target]
	return DecodeColumn(runs, tPrime)
}

// Distance returns the CPD-derived upper-bound path cost from source to
// target by walking first-move lookups and summing edge weights, without
// materialising the path. Returns (cost, true) if a path was found within
// maxSteps, else (+Inf, false).
func (c *CPD) Distance(g *graphmodel.Graph, source, target uint32, maxSteps int) (float64, bool) {
	cost := 0.0
	current := source
	for i := 0; i < maxSteps; i++ {
		if current == target {
			return cost, true
		}
		sym := c.FirstMove(current, target)
		edge, ok := c.resolveEdge(g, current, sym)
		if !ok {
			return math.Inf(1), false
		}
		cost += g.Weight[edge]
		current = g.Head[edge]
	}
	return math.Inf(1), false
}

// ExtractPath walks first-move lookups from source to target, returning the
// externally-visible vertex ids of the full path (inclusive of both
// endpoints) and its total cost. maxSteps bounds the walk against a
// corrupted or perturbed CPD looping forever.
func (c *CPD) ExtractPath(g *graphmodel.Graph, source, target uint32, maxSteps int) ([]uint64, float64, error) {
	if source == target {
		return []uint64{g.ToExternalID(source)}, 0, nil
	}
	path := []uint64{g.ToExternalID(source)}
	cost := 0.0
	current := source
	for i := 0; i < maxSteps; i++ {
		sym := c.FirstMove(current, target)
		edge, ok := c.resolveEdge(g, current, sym)
		if !ok {
			return nil, 0, cpderr.New(cpderr.KindUnreachable, "cpd.ExtractPath", errUnreachable)
		}
		cost += g.Weight[edge]
		current = g.Head[edge]
		path = append(path, g.ToExternalID(current))
		if current == target {
			return path, cost, nil
		}
	}
	return nil, 0, cpderr.New(cpderr.KindIO, "cpd.ExtractPath", errStepBudgetExceeded)
}

// Step performs one first-move lookup from v towards target, returning the
// successor vertex and the weight of the edge taken.
func (c *CPD) Step(g *graphmodel.Graph, v, target uint32) (next uint32, weight float64, ok bool) {
	sym := c.FirstMove(v, target)
	edge, ok := c.resolveEdge(g, v, sym)
	if !ok {
		return 0, 0, false
	}
	return g.Head[edge], g.Weight[edge], true
}

// resolveEdge converts a first-move symbol at vertex v into a concrete
// out-edge index. WILDCARD picks the lowest-index out-edge: CompressRow only
// leaves a WILDCARD run in place when out-edge 0 is an optimal first move
// for every column the run covers.
func (c *CPD) resolveEdge(g *graphmodel.Graph, v uint32, sym Symbol) (uint32, bool) {
	start, end := g.OutEdges(v)
	switch sym {
	case SymbolNone:
		return 0, false
	case SymbolWildcard:
		if start == end {
			return 0, false
		}
		return start, true
	default:
		idx := start + uint32(sym)
		if idx >= end {
			return 0, false
		}
		return idx, true
	}
}

var errUnreachable = simpleError("cpd: no optimal continuation from current node")
var errStepBudgetExceeded = simpleError("cpd: path extraction exceeded step budget")

type simpleError string

func (e simpleError) Error() string { return string(e) }
