package graphmodel

// unionFind is a disjoint-set structure with path halving and union by
// rank, used to find the largest weakly-connected component of a graph
// before CPD preprocessing (a CPD row for an unreachable target is wasted
// space; restricting to one component keeps every row dense).
type unionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

func newUnionFind(n uint32) *unionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &unionFind{parent: parent, rank: make([]byte, n), size: size}
}

func (uf *unionFind) find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y uint32) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}

// LargestComponent returns the internal vertex ids belonging to the
// largest weakly connected component, treating directed edges as
// undirected for connectivity purposes.
func LargestComponent(g *Graph) []uint32 {
	if g.NumVertices == 0 {
		return nil
	}
	uf := newUnionFind(g.NumVertices)
	for u := uint32(0); u < g.NumVertices; u++ {
		start, end := g.OutEdges(u)
		for e := start; e < end; e++ {
			uf.union(u, g.Head[e])
		}
	}

	bestRoot, bestSize := uint32(0), uint32(0)
	for i := uint32(0); i < g.NumVertices; i++ {
		root := uf.find(i)
		if uf.size[root] > bestSize {
			bestRoot, bestSize = root, uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumVertices; i++ {
		if uf.find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent returns a new Graph containing only the given vertices
// and the edges fully within them, renumbered densely from 0.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{FirstOut: []uint32{0}}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}
	numVertices := uint32(len(nodes))

	type edge struct {
		from, to uint32
		weight   float64
	}
	var edges []edge
	for _, oldU := range nodes {
		start, end := g.OutEdges(oldU)
		for e := start; e < end; e++ {
			if newV, ok := oldToNew[g.Head[e]]; ok {
				edges = append(edges, edge{from: oldToNew[oldU], to: newV, weight: g.Weight[e]})
			}
		}
	}

	numEdges := uint32(len(edges))
	firstOut := make([]uint32, numVertices+1)
	head := make([]uint32, numEdges)
	weight := make([]float64, numEdges)
	for _, e := range edges {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}
	pos := make([]uint32, numVertices)
	copy(pos, firstOut[:numVertices])
	for _, e := range edges {
		idx := pos[e.from]
		head[idx] = e.to
		weight[idx] = e.weight
		pos[e.from]++
	}

	out := &Graph{
		NumVertices: numVertices,
		FirstOut:    firstOut,
		Head:        head,
		Weight:      weight,
		Euclidean:   g.Euclidean,
		Octile:      g.Octile,
	}
	if g.X != nil {
		out.X = make([]int32, numVertices)
		out.Y = make([]int32, numVertices)
		for newIdx, oldIdx := range nodes {
			out.X[newIdx] = g.X[oldIdx]
			out.Y[newIdx] = g.Y[oldIdx]
		}
	}
	if g.Lat != nil {
		out.Lat = make([]float64, numVertices)
		out.Lon = make([]float64, numVertices)
		for newIdx, oldIdx := range nodes {
			out.Lat[newIdx] = g.Lat[oldIdx]
			out.Lon[newIdx] = g.Lon[oldIdx]
		}
	}
	if g.ExternalID != nil {
		out.ExternalID = make([]uint64, numVertices)
		for newIdx, oldIdx := range nodes {
			out.ExternalID[newIdx] = g.ExternalID[oldIdx]
		}
	}
	return out
}
