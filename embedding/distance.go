package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SquaredEuclidean returns the squared L2 distance between two vectors. It
// panics when the lengths differ, matching gonum's convention.
func SquaredEuclidean(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// Cosine returns the cosine distance (1 - cosine similarity) between two
// vectors. A zero vector is treated as orthogonal, yielding distance 1.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

// NearestRow returns the index of the row of m closest to q under squared
// Euclidean distance, along with that distance. Ties resolve to the earliest
// row.
func NearestRow(q []float64, m *mat.Dense) (int, float64) {
	rows, _ := m.Dims()
	best, bestDist := 0, SquaredEuclidean(q, m.RawRowView(0))
	for i := 1; i < rows; i++ {
		if d := SquaredEuclidean(q, m.RawRowView(i)); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// DistanceMatrix computes the pairwise squared Euclidean distances between
// the rows of a and the rows of b, returning an len(a)-by-len(b) matrix. It
// returns an error when the column dimensions differ.
func DistanceMatrix(a, b *mat.Dense) (*mat.Dense, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != cb {
		return nil, fmt.Errorf("embedding: dimension mismatch %d vs %d", ca, cb)
	}
	out := mat.NewDense(ra, rb, nil)
	for i := 0; i < ra; i++ {
		row := a.RawRowView(i)
		for j := 0; j < rb; j++ {
			out.Set(i, j, SquaredEuclidean(row, b.RawRowView(j)))
		}
	}
	return out, nil
}
