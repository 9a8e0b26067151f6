package cpd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/order"
)

// chainGraph: 0 -> 1 -> 2 -> 3, unit weights, plus an isolated vertex 4.
func chainGraph() *graphmodel.Graph {
	return &graphmodel.Graph{
		NumVertices: 5,
		FirstOut:    []uint32{0, 1, 2, 3, 3, 3},
		Head:        []uint32{1, 2, 3},
		Weight:      []float64{1, 1, 1},
	}
}

func buildCPD(t *testing.T, g *graphmodel.Graph) *CPD {
	t.Helper()
	ord := order.ComputeDFSPreorder(g)
	c, err := Build(context.Background(), g, ord, BuildOptions{Threads: 2})
	require.NoError(t, err)
	return c
}

func TestCPDFirstMoveAlongChain(t *testing.T) {
	g := chainGraph()
	c := buildCPD(t, g)
	assert.Equal(t, Symbol(0), c.FirstMove(0, 3))
	assert.Equal(t, Symbol(0), c.FirstMove(1, 3))
	assert.Equal(t, SymbolNone, c.FirstMove(0, 0))
}

func TestCPDDistanceMatchesReferenceDijkstra(t *testing.T) {
	g := chainGraph()
	c := buildCPD(t, g)

	dist, ok := c.Distance(g, 0, 3, 10)
	require.True(t, ok)
	assert.InDelta(t, 3.0, dist, 1e-9)

	ws := NewWorkspace(g)
	ws.Run(g, 0)
	assert.InDelta(t, ws.Dist(3), dist, 1e-9)
}

func TestCPDDistanceUnreachable(t *testing.T) {
	g := chainGraph()
	c := buildCPD(t, g)
	_, ok := c.Distance(g, 0, 4, 10)
	assert.False(t, ok)
}

func TestCPDExtractPathReturnsExternalIDs(t *testing.T) {
	g := chainGraph()
	g.ExternalID = []uint64{100, 101, 102, 103, 104}
	c := buildCPD(t, g)

	path, cost, err := c.ExtractPath(g, 0, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 101, 102, 103}, path)
	assert.InDelta(t, 3.0, cost, 1e-9)
}

func TestCPDExtractPathSameSourceAndTarget(t *testing.T) {
	g := chainGraph()
	c := buildCPD(t, g)
	path, cost, err := c.ExtractPath(g, 2, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, path)
	assert.Equal(t, 0.0, cost)
}

func TestCPDExtractPathUnreachableReturnsError(t *testing.T) {
	g := chainGraph()
	c := buildCPD(t, g)
	_, _, err := c.ExtractPath(g, 0, 4, 10)
	require.Error(t, err)
	var cpdErr *cpderr.Error
	require.ErrorAs(t, err, &cpdErr)
	assert.Equal(t, cpderr.KindUnreachable, cpdErr.Kind)
}

func TestCPDResolveEdgeWildcardPicksLowestIndex(t *testing.T) {
	g := &graphmodel.Graph{
		NumVertices: 3,
		FirstOut:    []uint32{0, 2, 2, 2},
		Head:        []uint32{1, 2},
		Weight:      []float64{1, 1},
	}
	c := &CPD{Order: order.New(3)}
	edge, ok := c.resolveEdge(g, 0, SymbolWildcard)
	require.True(t, ok)
	assert.Equal(t, uint32(0), edge)
}

func TestCPDResolveEdgeNoneFails(t *testing.T) {
	g := chainGraph()
	c := &CPD{Order: order.New(5)}
	_, ok := c.resolveEdge(g, 0, SymbolNone)
	assert.False(t, ok)
}
