package graphmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLargestComponentSplitsDisconnectedGraph(t *testing.T) {
	// component A: 0-1-2, component B: 3-4 (smaller)
	g := &Graph{
		NumVertices: 5,
		FirstOut:    []uint32{0, 1, 2, 2, 3, 3},
		Head:        []uint32{1, 2, 4},
		Weight:      []float64{1, 1, 1},
	}
	nodes := LargestComponent(g)
	assert.ElementsMatch(t, []uint32{0, 1, 2}, nodes)
}

func TestFilterToComponentRenumbersDensely(t *testing.T) {
	g := &Graph{
		NumVertices: 5,
		FirstOut:    []uint32{0, 1, 2, 2, 3, 3},
		Head:        []uint32{1, 2, 4},
		Weight:      []float64{1, 1, 1},
	}
	filtered := FilterToComponent(g, []uint32{0, 1, 2})
	require.Equal(t, uint32(3), filtered.NumVertices)
	assert.Equal(t, uint32(2), filtered.NumEdges())
}

func TestFilterToComponentDropsCrossComponentEdges(t *testing.T) {
	g := &Graph{
		NumVertices: 3,
		FirstOut:    []uint32{0, 1, 1, 1},
		Head:        []uint32{2},
		Weight:      []float64{1},
	}
	filtered := FilterToComponent(g, []uint32{0, 1})
	assert.Equal(t, uint32(0), filtered.NumEdges())
}
