package graphmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGraph() *Graph {
	// 0 -> 1 (1.0), 1 -> 2 (1.0), 0 -> 2 (5.0)
	return &Graph{
		NumVertices: 3,
		FirstOut:    []uint32{0, 2, 3, 3},
		Head:        []uint32{1, 2, 2},
		Weight:      []float64{1.0, 5.0, 1.0},
		X:           []int32{0, 1, 2},
		Y:           []int32{0, 0, 0},
		Euclidean:   false,
	}
}

func TestOutEdges(t *testing.T) {
	g := smallGraph()
	start, end := g.OutEdges(0)
	assert.Equal(t, uint32(0), start)
	assert.Equal(t, uint32(2), end)
}

func TestNumEdges(t *testing.T) {
	g := smallGraph()
	assert.Equal(t, uint32(3), g.NumEdges())
}

func TestPerturbExistingEdge(t *testing.T) {
	g := smallGraph()
	g.Perturb([]PerturbTriple{{Tail: 0, Head: 1, NewWeight: 42.0}})
	assert.Equal(t, 42.0, g.Weight[0])
}

func TestPerturbMissingEdgeIsIgnored(t *testing.T) {
	g := smallGraph()
	before := append([]float64(nil), g.Weight...)
	g.Perturb([]PerturbTriple{{Tail: 2, Head: 0, NewWeight: 999}})
	assert.Equal(t, before, g.Weight)
}

func TestToExternalIDIdentityWhenNilMap(t *testing.T) {
	g := smallGraph()
	assert.Equal(t, uint64(1), g.ToExternalID(1))
	v, ok := g.ToGraphID(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)
}

func TestToGraphIDWithExplicitMap(t *testing.T) {
	g := smallGraph()
	g.ExternalID = []uint64{100, 200, 300}
	v, ok := g.ToGraphID(200)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)

	_, ok = g.ToGraphID(999)
	assert.False(t, ok)
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	g := smallGraph()
	g.Weight[0] = -1
	err := g.Validate()
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeHead(t *testing.T) {
	g := smallGraph()
	g.Head[0] = 99
	err := g.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	g := smallGraph()
	require.NoError(t, g.Validate())
}

func TestValidateRejectsSubEuclideanWeight(t *testing.T) {
	g := smallGraph()
	g.Euclidean = true
	// distance from 0 to 1 is 1.0, but declare weight 0.1
	g.Weight[0] = 0.1
	err := g.Validate()
	require.Error(t, err)
}
