package cpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpdrouter/pkg/graphmodel"
)

// diamondGraph: 0 -> 1 -> 3 (cost 2), 0 -> 2 -> 3 (cost 2): two equal-cost
// paths, so A[3] from source 0 should contain both first moves.
func diamondGraph() *graphmodel.Graph {
	return &graphmodel.Graph{
		NumVertices: 4,
		FirstOut:    []uint32{0, 2, 3, 4, 4},
		Head:        []uint32{1, 2, 3, 3},
		Weight:      []float64{1, 1, 1, 1},
	}
}

func TestDijkstraSingleOptimalPath(t *testing.T) {
	g := &graphmodel.Graph{
		NumVertices: 3,
		FirstOut:    []uint32{0, 1, 2, 2},
		Head:        []uint32{1, 2},
		Weight:      []float64{1, 5},
	}
	ws := NewWorkspace(g)
	ws.Run(g, 0)
	assert.Equal(t, 1.0, ws.Dist(1))
	assert.Equal(t, 6.0, ws.Dist(2))
	m, ok := ws.Allowed(2).Singleton()
	require.True(t, ok)
	assert.Equal(t, 0, m) // first move is edge 0 (0->1)
}

func TestDijkstraAllowedSetSoundnessOnTies(t *testing.T) {
	g := diamondGraph()
	ws := NewWorkspace(g)
	ws.Run(g, 0)
	assert.Equal(t, 2.0, ws.Dist(3))
	assert.True(t, ws.Allowed(3).Contains(0))
	assert.True(t, ws.Allowed(3).Contains(1))
}

func TestDijkstraSourceHasEmptyAllowedSet(t *testing.T) {
	g := diamondGraph()
	ws := NewWorkspace(g)
	ws.Run(g, 0)
	assert.True(t, ws.Allowed(0).IsEmpty())
}

func TestDijkstraUnreachableVertex(t *testing.T) {
	g := &graphmodel.Graph{
		NumVertices: 2,
		FirstOut:    []uint32{0, 0, 0},
		Head:        nil,
		Weight:      nil,
	}
	ws := NewWorkspace(g)
	ws.Run(g, 0)
	assert.True(t, ws.Allowed(1).IsEmpty())
	assert.InDelta(t, 0.0, ws.Dist(0), 1e-9)
}

func TestDijkstraWorkspaceReusableAcrossSources(t *testing.T) {
	g := diamondGraph()
	ws := NewWorkspace(g)
	ws.Run(g, 0)
	firstDist := ws.Dist(3)
	ws.Run(g, 1)
	assert.NotEqual(t, firstDist, ws.Dist(3))
	assert.Equal(t, 1.0, ws.Dist(3))
}
