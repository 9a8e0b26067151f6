package search

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpdrouter/pkg/cpd"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/order"
)

func findVertexAt(t *testing.T, g *graphmodel.Graph, x, y int32) uint32 {
	t.Helper()
	for v := uint32(0); v < g.NumVertices; v++ {
		if g.X[v] == x && g.Y[v] == y {
			return v
		}
	}
	t.Fatalf("no vertex at (%d,%d)", x, y)
	return 0
}

const wallGridMap = `type octile
height 5
width 5
map
..@..
..@..
..@..
..@..
.....
`

// TestScenarioWallForcesDetourAroundObstacle is the wall scenario: a
// vertical wall at column 2 spanning rows 0..3 with a gap at row 4 forces
// any row-0 crossing to detour down through the gap.
func TestScenarioWallForcesDetourAroundObstacle(t *testing.T) {
	g, err := graphmodel.LoadGrid(strings.NewReader(wallGridMap))
	require.NoError(t, err)
	e := buildEngine(t, g)

	start := findVertexAt(t, g, 0, 0)
	target := findVertexAt(t, g, 4, 0)

	res, err := e.GetPath(context.Background(), uint64(start), uint64(target), DefaultOptions())
	require.NoError(t, err)
	require.False(t, res.Unreachable())

	ws := cpd.NewWorkspace(g)
	ws.Run(g, start)
	assert.InDelta(t, ws.Dist(target), res.SumOfEdgeCosts, 1e-6)

	sawGapRow := false
	for _, ext := range res.Path {
		v, ok := g.ToGraphID(ext)
		require.True(t, ok)
		if g.Y[v] == 4 {
			sawGapRow = true
		}
	}
	assert.True(t, sawGapRow, "expected path to detour through the gap row")
}

// twoComponentGraph builds two disjoint 4-vertex chains with no edges
// between them.
func twoComponentGraph() *graphmodel.Graph {
	type edge struct {
		from, to uint32
		w        float64
	}
	var edges []edge
	chain := func(base uint32) {
		for i := uint32(0); i < 3; i++ {
			edges = append(edges,
				edge{base + i, base + i + 1, 1},
				edge{base + i + 1, base + i, 1})
		}
	}
	chain(0)
	chain(4)

	adj := make([][]edge, 8)
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e)
	}
	firstOut := make([]uint32, 9)
	var head []uint32
	var weight []float64
	for v := uint32(0); v < 8; v++ {
		firstOut[v] = uint32(len(head))
		for _, e := range adj[v] {
			head = append(head, e.to)
			weight = append(weight, e.w)
		}
	}
	firstOut[8] = uint32(len(head))
	return &graphmodel.Graph{NumVertices: 8, FirstOut: firstOut, Head: head, Weight: weight}
}

// TestScenarioDisconnectedComponentsReturnUnreachable is the disconnected
// scenario: a query across two components with no connecting edge must
// return an empty path without erroring, after a finite number of
// expansions.
func TestScenarioDisconnectedComponentsReturnUnreachable(t *testing.T) {
	g := twoComponentGraph()
	e := buildEngine(t, g)

	res, err := e.GetPath(context.Background(), 0, 5, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Unreachable())
	assert.Less(t, res.Expansions, uint32(100))
}

// TestScenarioPerturbationRecoveryBoundedSuboptimality is the perturbation
// recovery scenario: the tiny-grid CPD is built before the diagonal
// (0,0)->(1,1) edge is perturbed to a much higher weight, and the
// quality-ratio-1.5 query on the perturbed graph must still land within
// 1.5x of the perturbed optimum.
func TestScenarioPerturbationRecoveryBoundedSuboptimality(t *testing.T) {
	g := smallGrid(t)
	ord := order.ComputeDFSPreorder(g)
	c, err := cpd.Build(context.Background(), g, ord, cpd.BuildOptions{Threads: 2})
	require.NoError(t, err)

	g.Perturb([]graphmodel.PerturbTriple{{Tail: 0, Head: 4, NewWeight: 100}})

	e := NewEngine(g, c)
	opts := DefaultOptions()
	opts.QualityRatio = 1.5
	res, err := e.GetPath(context.Background(), 0, 8, opts)
	require.NoError(t, err)
	require.False(t, res.Unreachable())

	ws := cpd.NewWorkspace(g)
	ws.Run(g, 0)
	optimalOnPerturbed := ws.Dist(8)
	assert.LessOrEqual(t, res.SumOfEdgeCosts, 1.5*optimalOnPerturbed+1e-6)
}

// randomWalledGrid builds a size x size octile grid with a deterministic
// pseudo-random wall pattern, keeping both corners passable, large enough
// that a microsecond-scale time budget reliably cuts the search off before
// the open list drains.
func randomWalledGrid(t *testing.T, rng *rand.Rand, size int, wallProb float64) *graphmodel.Graph {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("type octile\n")
	fmt.Fprintf(&sb, "height %d\n", size)
	fmt.Fprintf(&sb, "width %d\n", size)
	sb.WriteString("map\n")
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x == 0 && y == 0) || (x == size-1 && y == size-1) || rng.Float64() >= wallProb {
				sb.WriteByte('.')
			} else {
				sb.WriteByte('@')
			}
		}
		sb.WriteByte('\n')
	}
	g, err := graphmodel.LoadGrid(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return g
}

// TestScenarioTimeCutoffReturnsPromptlyWithIncumbent is the cutoff
// scenario: a large maze queried with a tiny time budget returns
// immediately with the CPD-derived incumbent and a time cutoff reason.
func TestScenarioTimeCutoffReturnsPromptlyWithIncumbent(t *testing.T) {
	// Seed 24 is one whose wall pattern leaves the two corners connected.
	rng := rand.New(rand.NewSource(24))
	g := randomWalledGrid(t, rng, 60, 0.2)
	e := buildEngine(t, g)

	start := findVertexAt(t, g, 0, 0)
	target := findVertexAt(t, g, 59, 59)

	opts := DefaultOptions()
	opts.TimeCutoffNano = 1
	res, err := e.GetPath(context.Background(), uint64(start), uint64(target), opts)
	require.NoError(t, err)

	assert.Equal(t, CutoffTime, res.Cutoff)
	assert.True(t, res.Suboptimal)
	assert.False(t, res.Unreachable())
}
