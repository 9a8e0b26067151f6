package graphmodel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cpdrouter/pkg/cpderr"
)

// octileScale multiplies the unit/√2 grid costs; kept at 1, so grid edge
// weights are exactly 1 and √2 in float64.
const octileScale = 1.0

const sqrt2 = 1.4142135623730951

// LoadGrid reads a passability grid in the common header+ASCII-map format
// (`type octile`, `height`, `width`, `map`, then `height` rows of `.`/`@`)
// and returns an 8-connected Graph over the passable cells. Grid coordinates
// double as planar (x, y); vertex ids are assigned row-major over passable
// cells only, so the mapping to (x, y) is carried in the returned Graph's
// X/Y arrays rather than being an identity function of the id.
func LoadGrid(r io.Reader) (*Graph, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), 1<<20)

	var height, width int
	sawMap := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "map" {
			sawMap = true
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "height":
			height, _ = strconv.Atoi(fields[1])
		case "width":
			width, _ = strconv.Atoi(fields[1])
		}
	}
	if !sawMap {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.LoadGrid", fmt.Errorf("missing 'map' section header"))
	}
	if height <= 0 || width <= 0 {
		return nil, cpderr.New(cpderr.KindIO, "graphmodel.LoadGrid", fmt.Errorf("invalid dimensions %dx%d", width, height))
	}

	passable := make([][]bool, height)
	for row := 0; row < height; row++ {
		if !sc.Scan() {
			return nil, cpderr.New(cpderr.KindIO, "graphmodel.LoadGrid", fmt.Errorf("truncated map: expected %d rows, got %d", height, row))
		}
		line := sc.Text()
		passable[row] = make([]bool, width)
		for col := 0; col < width && col < len(line); col++ {
			passable[row][col] = isPassable(line[col])
		}
	}

	id := make([][]int32, height)
	var x, y []int32
	for row := 0; row < height; row++ {
		id[row] = make([]int32, width)
		for col := 0; col < width; col++ {
			id[row][col] = -1
			if passable[row][col] {
				id[row][col] = int32(len(x))
				x = append(x, int32(col))
				y = append(y, int32(row))
			}
		}
	}

	numVertices := uint32(len(x))

	type nb struct{ dr, dc int }
	neighbours := []nb{
		{-1, 0}, {1, 0}, {0, -1}, {0, 1},
		{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
	}

	firstOut := make([]uint32, numVertices+1)
	var headBuf []uint32
	var weightBuf []float64

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if !passable[row][col] {
				continue
			}
			v := id[row][col]
			for _, n := range neighbours {
				r2, c2 := row+n.dr, col+n.dc
				if r2 < 0 || r2 >= height || c2 < 0 || c2 >= width {
					continue
				}
				if !passable[r2][c2] {
					continue
				}
				// a diagonal move needs both flanking orthogonal cells
				// passable; either one blocked cuts the corner.
				if n.dr != 0 && n.dc != 0 {
					if !passable[row][c2] || !passable[r2][col] {
						continue
					}
				}
				w := octileScale
				if n.dr != 0 && n.dc != 0 {
					w *= sqrt2
				}
				headBuf = append(headBuf, uint32(id[r2][c2]))
				weightBuf = append(weightBuf, w)
				firstOut[v+1]++
			}
		}
	}

	for i := uint32(1); i <= numVertices; i++ {
		firstOut[i] += firstOut[i-1]
	}

	// headBuf/weightBuf were appended in row-major, i.e. already vertex-id
	// order, so no re-sort is needed: CSR placement matches append order.
	return &Graph{
		NumVertices: numVertices,
		FirstOut:    firstOut,
		Head:        headBuf,
		Weight:      weightBuf,
		X:           x,
		Y:           y,
		Euclidean:   true,
		Octile:      true,
	}, nil
}

func isPassable(c byte) bool {
	switch c {
	case '.', 'G', 'S':
		return true
	default:
		return false
	}
}
