package graphmodel

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"cpdrouter/pkg/cpderr"
)

// LoadDIMACS reads a DIMACS coordinate file (co) and gr arc file (gr) pair
// and returns the resulting Graph with a Euclidean planar embedding.
// Vertex ids in both files are 1-indexed; the returned graph converts them
// to dense 0-indexed internal ids and preserves the external numbering in
// Graph.ExternalID.
func LoadDIMACS(co, gr io.Reader) (*Graph, error) {
	coords, err := parseCoFile(co)
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.LoadDIMACS", err)
	}
	edges, err := parseGrFile(gr)
	if err != nil {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.LoadDIMACS", err)
	}
	return buildDIMACSGraph(coords, edges)
}

type dimacsNode struct {
	id   uint64
	x, y int32
}

type dimacsEdge struct {
	tail, head uint64
	weight     float64
}

// parseCoFile reads `v id x y` lines, tab or space delimited, skipping
// malformed lines with a logged warning rather than failing the whole load.
func parseCoFile(r io.Reader) ([]dimacsNode, error) {
	var nodes []dimacsNode
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" || line[0] != 'v' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			log.WithField("line", lineNo).Warn("badly formatted node descriptor, skipping")
			continue
		}
		id, err1 := strconv.ParseUint(fields[1], 10, 64)
		x, err2 := strconv.ParseInt(fields[2], 10, 32)
		y, err3 := strconv.ParseInt(fields[3], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			log.WithField("line", lineNo).Warn("non-numeric node descriptor, skipping")
			continue
		}
		nodes = append(nodes, dimacsNode{id: id, x: int32(x), y: int32(y)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan co file: %w", err)
	}
	return nodes, nil
}

// parseGrFile reads `a tail head weight` lines.
func parseGrFile(r io.Reader) ([]dimacsEdge, error) {
	var edges []dimacsEdge
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" || line[0] != 'a' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			log.WithField("line", lineNo).Warn("badly formatted arc descriptor, skipping")
			continue
		}
		tail, err1 := strconv.ParseUint(fields[1], 10, 64)
		head, err2 := strconv.ParseUint(fields[2], 10, 64)
		w, err3 := strconv.ParseFloat(fields[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			log.WithField("line", lineNo).Warn("non-numeric arc descriptor, skipping")
			continue
		}
		edges = append(edges, dimacsEdge{tail: tail, head: head, weight: w})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan gr file: %w", err)
	}
	return edges, nil
}

func buildDIMACSGraph(nodes []dimacsNode, edges []dimacsEdge) (*Graph, error) {
	idToInternal := make(map[uint64]uint32, len(nodes))
	externalID := make([]uint64, 0, len(nodes))
	x := make([]int32, 0, len(nodes))
	y := make([]int32, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := idToInternal[n.id]; ok {
			continue
		}
		idToInternal[n.id] = uint32(len(externalID))
		externalID = append(externalID, n.id)
		x = append(x, n.x)
		y = append(y, n.y)
	}

	numVertices := uint32(len(externalID))

	type compactEdge struct {
		from, to uint32
		weight   float64
	}
	compact := make([]compactEdge, 0, len(edges))
	for _, e := range edges {
		from, ok1 := idToInternal[e.tail]
		to, ok2 := idToInternal[e.head]
		if !ok1 || !ok2 {
			log.WithFields(log.Fields{"tail": e.tail, "head": e.head}).
				Warn("arc references unknown node id, skipping")
			continue
		}
		compact = append(compact, compactEdge{from: from, to: to, weight: e.weight})
	}

	sort.Slice(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numVertices+1)
	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)

	for _, e := range compact {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}
	pos := make([]uint32, numVertices)
	copy(pos, firstOut[:numVertices])
	for _, e := range compact {
		idx := pos[e.from]
		head[idx] = e.to
		weight[idx] = e.weight
		pos[e.from]++
	}

	g := &Graph{
		NumVertices: numVertices,
		FirstOut:    firstOut,
		Head:        head,
		Weight:      weight,
		X:           x,
		Y:           y,
		Euclidean:   true,
		ExternalID:  externalID,
	}
	return g, nil
}
