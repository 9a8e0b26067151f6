package graphmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCo = `p aux sp co 3
v 1 0 0
v 2 10 0
v 3 10 10
`

const testGr = `p sp 3 3
a 1 2 10
a 2 3 10
a 1 3 25
`

func TestLoadDIMACSBasic(t *testing.T) {
	g, err := LoadDIMACS(strings.NewReader(testCo), strings.NewReader(testGr))
	require.NoError(t, err)
	require.Equal(t, uint32(3), g.NumVertices)
	require.Equal(t, uint32(3), g.NumEdges())

	v0, ok := g.ToGraphID(1)
	require.True(t, ok)
	v1, ok := g.ToGraphID(2)
	require.True(t, ok)

	start, end := g.OutEdges(v0)
	found := false
	for e := start; e < end; e++ {
		if g.Head[e] == v1 {
			found = true
			assert.Equal(t, 10.0, g.Weight[e])
		}
	}
	assert.True(t, found)
}

func TestLoadDIMACSSkipsMalformedLines(t *testing.T) {
	co := "p aux sp co 2\nv 1 0 0\nv garbage\nv 2 5 5\n"
	gr := "p sp 2 1\na 1 2 3\n"
	g, err := LoadDIMACS(strings.NewReader(co), strings.NewReader(gr))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), g.NumVertices)
}

func TestLoadDIMACSSkipsArcsToUnknownNodes(t *testing.T) {
	co := "p aux sp co 2\nv 1 0 0\nv 2 5 5\n"
	gr := "p sp 2 2\na 1 2 3\na 1 99 7\n"
	g, err := LoadDIMACS(strings.NewReader(co), strings.NewReader(gr))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), g.NumEdges())
}

func TestLoadDIMACSExternalIDPreserved(t *testing.T) {
	g, err := LoadDIMACS(strings.NewReader(testCo), strings.NewReader(testGr))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g.ToExternalID(0))
}
