package graphmodel

import "fmt"

func errLenMismatch(field string, got, want int) error {
	return fmt.Errorf("%s length %d, want %d", field, got, want)
}

func errNonMonotonic(v uint32) error {
	return fmt.Errorf("FirstOut not monotonic at vertex %d", v)
}

func errHeadOutOfRange(edge int, head int, numVertices uint32) error {
	return fmt.Errorf("Head[%d]=%d out of range for NumVertices=%d", edge, head, numVertices)
}

func errNegativeWeight(u, v uint32, w float64) error {
	return fmt.Errorf("edge (%d -> %d) has negative weight %v", u, v, w)
}

func errSubEuclidean(u, v uint32, w, straight float64) error {
	return fmt.Errorf("edge (%d -> %d) weight %v is below Euclidean distance %v", u, v, w, straight)
}
