package search

import (
	"context"
	"math"
	"strconv"
	"time"

	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/graphmodel"
)

// openHeap is a concrete min-heap on f-value, avoiding interface boxing.
// Stale entries (a vertex whose f has since improved) are left in place
// and skipped on pop rather than removed, mirroring the lazy-deletion
// Dijkstra workspace in pkg/cpd.
type openHeap struct {
	items []openItem
}

type openItem struct {
	v uint32
	f float64
}

func (h *openHeap) push(v uint32, f float64) {
	h.items = append(h.items, openItem{v, f})
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].f >= h.items[parent].f {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *openHeap) pop() openItem {
	n := len(h.items)
	top := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	n--
	i := 0
	for {
		smallest := i
		left, right := 2*i+1, 2*i+2
		if left < n && h.items[left].f < h.items[smallest].f {
			smallest = left
		}
		if right < n && h.items[right].f < h.items[smallest].f {
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

func (h *openHeap) empty() bool { return len(h.items) == 0 }

// Engine runs CPD-guided bounded-suboptimal A* queries against a fixed
// graph and CPD, reusing a search-node arena across queries.
type Engine struct {
	g     *graphmodel.Graph
	c     *cpd.CPD
	arena *arena
	open  openHeap
}

// NewEngine builds an Engine over g and c. One Engine should be used by a
// single goroutine at a time; concurrent queries each need their own
// Engine (and hence their own arena), per the single-threaded-per-query
// concurrency model.
func NewEngine(g *graphmodel.Graph, c *cpd.CPD) *Engine {
	return &Engine{g: g, c: c, arena: newArena(g.NumVertices)}
}

// GetPath runs one bounded-suboptimal A* query from start to target
// (external ids) and returns the best path found under opts' cutoffs.
func (e *Engine) GetPath(ctx context.Context, startExt, targetExt uint64, opts Options) (Result, error) {
	opts = opts.normalized()

	start, ok := e.g.ToGraphID(startExt)
	if !ok {
		return Result{}, cpderr.New(cpderr.KindInvalidArgument, "search.GetPath", errBadVertex("start", startExt))
	}
	target, ok := e.g.ToGraphID(targetExt)
	if !ok {
		return Result{}, cpderr.New(cpderr.KindInvalidArgument, "search.GetPath", errBadVertex("target", targetExt))
	}

	h := NewHeuristic(e.g, e.c, opts.HScale)
	begin := time.Now()

	e.arena.beginQuery()
	e.open.items = e.open.items[:0]

	var res Result

	if start == target {
		res.Path = []uint64{e.g.ToExternalID(start)}
		res.TimeNano = time.Since(begin).Nanoseconds()
		return res, nil
	}

	startNode := e.arena.get(start)
	startNode.g = 0
	startUB := h.UB(start, target)
	startNode.f = h.H(start, target)
	startNode.ub = startUB
	startNode.cpdUB = startUB
	startNode.generated = true
	e.open.push(start, startNode.f)
	res.Inserted++

	// incumbentBound is a plain copy of the current best known upper
	// bound on total path cost, not a pointer into the arena: the
	// incumbent's own record and the node currently being considered
	// can be the same vertex, and comparing a node's f/ub against an
	// arena lookup of itself would trivially prune it against itself.
	var incumbent uint32
	hasIncumbent := false
	incumbentBound := math.Inf(1)
	if startUB < math.Inf(1) {
		incumbent = start
		hasIncumbent = true
		incumbentBound = startUB
	}

	prune := func(f, ub float64) bool {
		if !hasIncumbent {
			return false
		}
		if f > incumbentBound {
			return true
		}
		if ub < math.Inf(1) && ub > incumbentBound {
			return true
		}
		return false
	}

	for !e.open.empty() {
		if err := ctx.Err(); err != nil {
			return e.finalize(res, incumbent, hasIncumbent, target, h, begin, opts)
		}

		top := e.open.pop()
		current := e.arena.get(top.v)
		if current.state == stateClosed {
			continue // stale duplicate
		}
		if current.f > top.f+1e-12 {
			continue // superseded by a better relaxation since being pushed
		}
		current.state = stateClosed
		res.Expansions++

		if cutoff, reason := e.checkCutoff(current, &res, opts, begin); cutoff {
			res.Cutoff = reason
			res.Suboptimal = true
			break
		}

		// f is a certified lower bound on any unexplored path (min-heap
		// pop order); once the current node's own ub is within
		// quality-ratio of that bound, its path is good enough to stop
		// for. QualityRatio 1 recovers the exact f == ub certificate. This
		// only certifies that no unexplored path can beat the incumbent by
		// more than quality-ratio — it says nothing about current being
		// better than whatever incumbent is already on record, so the
		// incumbent is only replaced when current genuinely improves on it.
		if current.ub < math.Inf(1) && current.f*opts.QualityRatio >= current.ub {
			res.Cutoff = CutoffOptimal
			if current.ub < incumbentBound {
				incumbent = top.v
				hasIncumbent = true
				incumbentBound = current.ub
			}
			break
		}

		if prune(current.f, current.ub) {
			continue
		}

		start2, end := e.g.OutEdges(top.v)
		for edge := start2; edge < end; edge++ {
			succ := e.g.Head[edge]
			w := e.g.Weight[edge]
			gval := current.g + w
			res.Touched++

			sn := e.arena.get(succ)

			if !sn.generated {
				sn.generated = true
				sn.cpdUB = h.UB(succ, target)
				sn.parent = top.v
				sn.hasParent = true
			}

			fCandidate := gval + h.H(succ, target)
			ubCandidate := math.Inf(1)
			if sn.cpdUB < math.Inf(1) {
				ubCandidate = gval + sn.cpdUB
			}

			if prune(fCandidate, ubCandidate) {
				continue
			}

			if gval < sn.g {
				sn.g = gval
				sn.f = fCandidate
				sn.ub = ubCandidate
				sn.parent = top.v
				sn.hasParent = true
				if sn.state == stateClosed {
					sn.state = stateOpen // reopen: harmless even though h here is consistent
				}
				e.open.push(succ, sn.f)
				res.Inserted++
				res.Updated++

				// This relaxation may have produced a better full-path
				// bound than the current incumbent; re-evaluate every
				// time g improves, not just on first discovery.
				if succ == target {
					if gval < incumbentBound {
						incumbent = succ
						hasIncumbent = true
						incumbentBound = gval
					}
				} else if ubCandidate < incumbentBound {
					incumbent = succ
					hasIncumbent = true
					incumbentBound = ubCandidate
				}
			}
		}
	}

	return e.finalize(res, incumbent, hasIncumbent, target, h, begin, opts)
}

func (e *Engine) checkCutoff(current *node, res *Result, opts Options, begin time.Time) (bool, CutoffReason) {
	if current.f > opts.CostCutoff {
		return true, CutoffCost
	}
	if res.Expansions >= opts.ExpansionCutoff {
		return true, CutoffExpansions
	}
	if time.Since(begin).Nanoseconds() > opts.TimeCutoffNano {
		return true, CutoffTime
	}
	return false, CutoffNone
}

// finalize reconstructs the path from the incumbent (following arena
// backpointers to start), then concretises the remainder via the CPD when
// the incumbent isn't the target itself.
func (e *Engine) finalize(res Result, incumbent uint32, hasIncumbent bool, target uint32, h *Heuristic, begin time.Time, opts Options) (Result, error) {
	res.TimeNano = time.Since(begin).Nanoseconds()
	if !hasIncumbent {
		return res, nil
	}

	incNode := e.arena.get(incumbent)
	res.SumOfEdgeCosts = incNode.g

	var backChain []uint32
	cur := incumbent
	for {
		backChain = append(backChain, cur)
		n := e.arena.get(cur)
		if !n.hasParent {
			break
		}
		cur = n.parent
	}
	// backChain is target-ward -> start; reverse it.
	for i, j := 0, len(backChain)-1; i < j; i, j = i+1, j-1 {
		backChain[i], backChain[j] = backChain[j], backChain[i]
	}

	path := backChain
	tail := incumbent
	for tail != target {
		next, w, ok := e.c.Step(e.g, tail, target)
		if !ok {
			// CPD has no continuation: report what we have as a failed
			// concretisation rather than fabricate a path.
			return res, cpderr.New(cpderr.KindUnreachable, "search.GetPath", errNoConcretization)
		}
		res.SumOfEdgeCosts += w
		path = append(path, next)
		tail = next
	}

	res.Path = make([]uint64, len(path))
	for i, v := range path {
		res.Path[i] = e.g.ToExternalID(v)
	}
	return res, nil
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

var errNoConcretization = simpleError("search: incumbent has no CPD continuation to target")

func errBadVertex(which string, ext uint64) error {
	return simpleError("search: " + which + " id " + strconv.FormatUint(ext, 10) + " not found in graph")
}
