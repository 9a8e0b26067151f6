// Package roadnet builds a road-network Graph from OpenStreetMap data and
// answers nearest-edge queries so that lat/lng query coordinates can be
// resolved to graph vertex ids before a search.
package roadnet

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	log "github.com/sirupsen/logrus"

	"cpdrouter/pkg/cpderr"
	"cpdrouter/pkg/geo"
)

// RawEdge is a directed edge parsed from a way, before node-id compaction.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	Weight     float64 // meters
}

// ParseResult holds the output of parsing an OSM PBF extract.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

var carHighways = map[string]bool{
	"motorway": true, "motorway_link": true, "trunk": true, "trunk_link": true,
	"primary": true, "primary_link": true, "secondary": true, "secondary_link": true,
	"tertiary": true, "tertiary_link": true, "unclassified": true,
	"residential": true, "living_street": true, "service": true,
}

func isCarAccessible(tags osm.Tags) bool {
	if !carHighways[tags.Find("highway")] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}
	return true
}

func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true
	hw := tags.Find("highway")
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		forward, backward = false, false
	}
	return forward, backward
}

type wayInfo struct {
	NodeIDs  []osm.NodeID
	Forward  bool
	Backward bool
}

// BBox is a geographic bounding box; the zero value disables filtering.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures Parse.
type ParseOptions struct {
	BBox BBox
}

// Parse reads an OSM PBF extract and returns directed car-accessible edges.
// The reader is scanned twice (ways then nodes), so it must support Seek.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	useBBox := !opt.BBox.IsZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}
		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{NodeIDs: nodeIDs, Forward: fwd, Backward: bwd})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, cpderr.New(cpderr.KindIO, "roadnet.Parse", fmt.Errorf("pass 1 (ways): %w", err))
	}
	scanner.Close()
	log.WithFields(log.Fields{"ways": len(ways), "referenced_nodes": len(referencedNodes)}).Info("osm pass 1 complete")

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, cpderr.New(cpderr.KindIO, "roadnet.Parse", fmt.Errorf("seek for pass 2: %w", err))
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, cpderr.New(cpderr.KindIO, "roadnet.Parse", fmt.Errorf("pass 2 (nodes): %w", err))
	}
	scanner.Close()
	log.WithField("coords", len(nodeLat)).Info("osm pass 2 complete")

	var edges []RawEdge
	var skipped, bboxFiltered int
	for _, way := range ways {
		for i := 0; i < len(way.NodeIDs)-1; i++ {
			fromID, toID := way.NodeIDs[i], way.NodeIDs[i+1]
			fromLat, fromOk := nodeLat[fromID]
			fromLon := nodeLon[fromID]
			toLat, toOk := nodeLat[toID]
			toLon := nodeLon[toID]
			if !fromOk || !toOk {
				skipped++
				continue
			}
			if useBBox && (!opt.BBox.Contains(fromLat, fromLon) || !opt.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}
			dist := geo.Haversine(fromLat, fromLon, toLat, toLon)
			if math.IsNaN(dist) {
				continue
			}
			if dist < 1e-3 {
				dist = 1e-3 // avoid zero-weight edges
			}
			if way.Forward {
				edges = append(edges, RawEdge{FromNodeID: fromID, ToNodeID: toID, Weight: dist})
			}
			if way.Backward {
				edges = append(edges, RawEdge{FromNodeID: toID, ToNodeID: fromID, Weight: dist})
			}
		}
	}
	if skipped > 0 {
		log.WithField("count", skipped).Warn("skipped edges with missing node coordinates")
	}
	if bboxFiltered > 0 {
		log.WithField("count", bboxFiltered).Info("filtered edges outside bounding box")
	}
	log.WithField("edges", len(edges)).Info("built directed edges")
	return &ParseResult{Edges: edges, NodeLat: nodeLat, NodeLon: nodeLon}, nil
}
