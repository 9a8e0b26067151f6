package roadnet

import (
	"math"

	"github.com/tidwall/rtree"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/geo"
	"cpdrouter/pkg/graphmodel"
)

const maxSnapDistMeters = 500.0

// snapEdge is the payload stored in the R-tree for each candidate edge.
type snapEdge struct {
	edgeIdx uint32
	u, v    uint32
}

// SnapResult is a query point resolved onto a road-network edge.
type SnapResult struct {
	EdgeIdx uint32
	NodeU   uint32
	NodeV   uint32
	Ratio   float64 // 0 = at NodeU, 1 = at NodeV
	Dist    float64 // meters from the query point to the snapped point
}

// Snapper answers nearest-edge queries over a road-network Graph using an
// R-tree spatial index over edge bounding boxes (lon, lat).
type Snapper struct {
	tree *rtree.RTreeG[snapEdge]
	g    *graphmodel.Graph
}

// NewSnapper builds an R-tree index over every edge of g. g must carry
// Lat/Lon coordinates (a road-network graph, not a grid/DIMACS one).
func NewSnapper(g *graphmodel.Graph) *Snapper {
	tree := &rtree.RTreeG[snapEdge]{}
	for u := uint32(0); u < g.NumVertices; u++ {
		start, end := g.OutEdges(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			minLon := math.Min(g.Lon[u], g.Lon[v])
			maxLon := math.Max(g.Lon[u], g.Lon[v])
			minLat := math.Min(g.Lat[u], g.Lat[v])
			maxLat := math.Max(g.Lat[u], g.Lat[v])
			tree.Insert(
				[2]float64{minLon, minLat},
				[2]float64{maxLon, maxLat},
				snapEdge{edgeIdx: e, u: u, v: v},
			)
		}
	}
	return &Snapper{tree: tree, g: g}
}

// degreesForMeters converts an approximate search radius in meters to
// degrees of latitude, used to expand the R-tree query window.
func degreesForMeters(meters float64) float64 {
	const metersPerDegree = 111_320.0
	return meters / metersPerDegree
}

// Snap resolves (lat, lng) to the nearest road-network edge within
// maxSnapDistMeters, expanding the search window until a candidate is
// found or the window exceeds the max snap distance.
func (s *Snapper) Snap(lat, lng float64) (SnapResult, error) {
	best := SnapResult{Dist: math.Inf(1)}

	for radiusMeters := 100.0; radiusMeters <= maxSnapDistMeters; radiusMeters *= 2 {
		d := degreesForMeters(radiusMeters)
		s.tree.Search(
			[2]float64{lng - d, lat - d},
			[2]float64{lng + d, lat + d},
			func(_, _ [2]float64, data snapEdge) bool {
				dist, ratio := geo.PointToSegmentDist(
					lat, lng,
					s.g.Lat[data.u], s.g.Lon[data.u],
					s.g.Lat[data.v], s.g.Lon[data.v],
				)
				if dist < best.Dist {
					best = SnapResult{EdgeIdx: data.edgeIdx, NodeU: data.u, NodeV: data.v, Ratio: ratio, Dist: dist}
				}
				return true
			},
		)
		if !math.IsInf(best.Dist, 1) {
			break
		}
	}

	if math.IsInf(best.Dist, 1) || best.Dist > maxSnapDistMeters {
		return SnapResult{}, cpderr.New(cpderr.KindInvalidArgument, "roadnet.Snap", errPointTooFar)
	}
	return best, nil
}

var errPointTooFar = pointTooFarError{}

type pointTooFarError struct{}

func (pointTooFarError) Error() string { return "point too far from any road" }
