package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineZeroDistance(t *testing.T) {
	d := Haversine(1.3521, 103.8198, 1.3521, 103.8198)
	require.InDelta(t, 0, d, 1e-6)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Singapore to Kuala Lumpur, roughly 315km.
	d := Haversine(1.3521, 103.8198, 3.1390, 101.6869)
	assert.InDelta(t, 315000, d, 15000)
}

func TestPointToSegmentDistEndpoint(t *testing.T) {
	dist, ratio := PointToSegmentDist(1.0, 1.0, 1.0, 1.0, 2.0, 2.0)
	assert.InDelta(t, 0, dist, 1e-6)
	assert.Equal(t, 0.0, ratio)
}

func TestPointToSegmentDistDegenerate(t *testing.T) {
	dist, ratio := PointToSegmentDist(1.001, 1.0, 1.0, 1.0, 1.0, 1.0)
	assert.Greater(t, dist, 0.0)
	assert.Equal(t, 0.0, ratio)
}

func TestPointToSegmentDistMidpoint(t *testing.T) {
	dist, ratio := PointToSegmentDist(0.0, 1.0, 0.0, 0.0, 0.0, 2.0)
	assert.InDelta(t, 0, dist, 1e-6)
	assert.InDelta(t, 0.5, ratio, 1e-6)
}

func TestOctileAxisAligned(t *testing.T) {
	d := Octile(0, 0, 5, 0)
	assert.Equal(t, 5.0, d)
}

func TestOctileDiagonal(t *testing.T) {
	d := Octile(0, 0, 3, 3)
	assert.InDelta(t, 3*math.Sqrt2, d, 1e-9)
}

func TestOctileMixed(t *testing.T) {
	d := Octile(0, 0, 5, 2)
	want := 3 + 2*math.Sqrt2
	assert.InDelta(t, want, d, 1e-9)
}

func TestEuclidean(t *testing.T) {
	d := Euclidean(0, 0, 3, 4)
	assert.Equal(t, 5.0, d)
}

func TestEuclideanTriangleInequality(t *testing.T) {
	ab := Euclidean(0, 0, 10, 0)
	ac := Euclidean(0, 0, 4, 3)
	cb := Euclidean(4, 3, 10, 0)
	assert.LessOrEqual(t, ab, ac+cb+1e-9)
}
