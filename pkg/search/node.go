package search

import "math"

// nodeState is the coarse state-machine position of a search node.
// FRESH is implicit: a node whose Epoch doesn't match the arena's current
// epoch has never been touched this query, regardless of its stored state.
type nodeState uint8

const (
	stateOpen nodeState = iota
	stateClosed
)

// node is the transient per-vertex search record. g/f/ub follow spec's
// admissible-pair invariants; Epoch lets the arena skip an O(|V|) reset
// between queries by treating any node whose Epoch is stale as FRESH.
type node struct {
	g, f, ub  float64
	cpdUB     float64 // CPD-continuation distance from this vertex to the query's target, cached at generation
	parent    uint32
	hasParent bool
	generated bool // cpdUB(n) already computed this query
	epoch     uint64
	state     nodeState
}

// arena holds one node record per graph vertex, reused across queries.
// Advancing epoch invalidates every record in O(1); individual records are
// lazily reset to FRESH defaults the first time a query touches them.
type arena struct {
	nodes []node
	epoch uint64
}

func newArena(numVertices uint32) *arena {
	return &arena{nodes: make([]node, numVertices)}
}

// beginQuery advances the epoch, making every existing record stale
// (effectively FRESH) without touching the backing array.
func (a *arena) beginQuery() {
	a.epoch++
}

// get returns the record for v, resetting it to FRESH defaults first if it
// is stale from a previous query.
func (a *arena) get(v uint32) *node {
	n := &a.nodes[v]
	if n.epoch != a.epoch {
		*n = node{g: math.Inf(1), f: math.Inf(1), ub: math.Inf(1), cpdUB: math.Inf(1), epoch: a.epoch}
	}
	return n
}

// touched reports whether v has a live record for the current epoch,
// without materialising one.
func (a *arena) touched(v uint32) bool {
	return a.nodes[v].epoch == a.epoch
}
