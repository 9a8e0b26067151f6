package cpd

import (
	"container/heap"
	"math"

	"cpdrouter/pkg/graphmodel"
)

// EpsilonFor returns the equality tolerance used when comparing tentative
// distances during allowed-set propagation, pinned to the spec's suggested
// 1e-9 * max edge weight (see DESIGN.md, "Open questions").
func EpsilonFor(g *graphmodel.Graph) float64 {
	maxW := 0.0
	for _, w := range g.Weight {
		if w > maxW {
			maxW = w
		}
	}
	if maxW == 0 {
		return 1e-9
	}
	return 1e-9 * maxW
}

// Workspace holds the reusable state for one worker's per-source Dijkstra
// runs: distance array, allowed-set array, and a scratch heap. Reusing a
// Workspace across sources in the same worker avoids reallocating |V|-sized
// arrays for every row.
type Workspace struct {
	dist    []float64
	allowed []AllowedSet
	dirty   []uint32 // touched vertex ids, for O(touched) reset
	heap    dijkstraHeap
	eps     float64
}

// NewWorkspace allocates a Workspace sized for g.
func NewWorkspace(g *graphmodel.Graph) *Workspace {
	n := int(g.NumVertices)
	w := &Workspace{
		dist:    make([]float64, n),
		allowed: make([]AllowedSet, n),
		eps:     EpsilonFor(g),
	}
	for i := range w.dist {
		w.dist[i] = math.Inf(1)
	}
	return w
}

func (w *Workspace) reset() {
	for _, v := range w.dirty {
		w.dist[v] = math.Inf(1)
		w.allowed[v] = AllowedSet{}
	}
	w.dirty = w.dirty[:0]
	w.heap = w.heap[:0]
}

func (w *Workspace) touch(v uint32) {
	if math.IsInf(w.dist[v], 1) {
		w.dirty = append(w.dirty, v)
	}
}

// Dist returns the shortest distance found from the last Run's source to v.
func (w *Workspace) Dist(v uint32) float64 { return w.dist[v] }

// Allowed returns the allowed-move bitset for v from the last Run.
func (w *Workspace) Allowed(v uint32) AllowedSet { return w.allowed[v] }

type heapItem struct {
	dist float64
	v    uint32
}

type dijkstraHeap []heapItem

func (h dijkstraHeap) Len() int            { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h dijkstraHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *dijkstraHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Run computes, for source s, the allowed-move bitset A[v] for every
// vertex v: the set of s's out-edges lying on some optimal s->v path.
// Results are read back through Dist/Allowed until the next Run call
// (which resets only the vertices touched by the previous run).
func (w *Workspace) Run(g *graphmodel.Graph, s uint32) {
	w.reset()

	outDegree := int(g.FirstOut[s+1] - g.FirstOut[s])
	start, _ := g.OutEdges(s)

	w.touch(s)
	w.dist[s] = 0
	w.allowed[s] = AllowedSet{} // empty by convention: source has no "first move to itself"
	heap.Init(&w.heap)
	heap.Push(&w.heap, heapItem{dist: 0, v: s})

	for w.heap.Len() > 0 {
		top := heap.Pop(&w.heap).(heapItem)
		u, d := top.v, top.dist
		if d > w.dist[u]+w.eps {
			continue // stale entry, superseded by a better one already relaxed
		}

		isSource := u == s

		edgeStart, edgeEnd := g.OutEdges(u)
		for e := edgeStart; e < edgeEnd; e++ {
			v := g.Head[e]
			newD := d + g.Weight[e]

			var inherited AllowedSet
			if isSource {
				inherited = NewAllowedSet(outDegree)
				inherited.Set(int(e - start))
			} else {
				inherited = w.allowed[u]
			}

			w.touch(v)
			switch {
			case newD < w.dist[v]-w.eps:
				w.dist[v] = newD
				w.allowed[v] = AllowedSet{}
				w.allowed[v].CopyFrom(inherited)
				heap.Push(&w.heap, heapItem{dist: newD, v: v})
			case newD <= w.dist[v]+w.eps:
				if newD < w.dist[v] {
					w.dist[v] = newD
				}
				w.allowed[v].UnionWith(inherited)
			default:
				// newD > dist[v]: not an improvement, skip.
			}
		}
	}
}
