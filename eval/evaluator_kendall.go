package eval

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/tensor"
)

// KendallsTauOptions configures a Kendall's tau alignment evaluator.
type KendallsTauOptions struct {
	// InterClass widens the compared trajectory pairs to span different task
	// classes instead of staying within one class.
	InterClass bool `json:"inter_class" yaml:"inter_class"`
}

// kendallsTau measures how well embeddings preserve temporal ordering across
// trajectories.
type kendallsTau struct {
	opts KendallsTauOptions
}

var _ Evaluator = (*kendallsTau)(nil)

// NewKendallsTau creates a Kendall's tau evaluator.
//
// For every ordered pair of comparable trajectories, each query frame is
// matched to its nearest frame in the other trajectory's embedding space;
// Kendall's tau then scores the rank correlation between query time and
// matched time. A tau of 1 means temporal order is perfectly preserved, -1
// that it is reversed.
//
// The output carries a scalar (mean tau over all compared pairs) and one
// image per pair (the frame-to-frame distance matrix).
//
// Example:
//
//	ev, err := eval.NewKendallsTau(eval.KendallsTauOptions{InterClass: false})
func NewKendallsTau(opts KendallsTauOptions) (Evaluator, error) {
	return &kendallsTau{opts: opts}, nil
}

// Name returns the evaluator identifier.
func (k *kendallsTau) Name() string {
	return "kendalls_tau"
}

// InterClass reports the class mode captured at construction.
func (k *kendallsTau) InterClass() bool {
	return k.opts.InterClass
}

// Evaluate computes the metric over one unit.
//
// The algorithm:
//  1. Regroup steps by trajectory; every trajectory needs at least 2 frames.
//  2. For each ordered comparable pair (a, b), compute the pairwise distance
//     matrix between a's and b's embeddings.
//  3. Map each frame of a to its nearest frame of b and correlate the
//     matched indices against 0..len(a)-1 with Kendall's tau.
//  4. Average the taus; pairs whose matched indices have no rank variance
//     (tau undefined) are excluded from the mean.
func (k *kendallsTau) Evaluate(ctx context.Context, steps []embedding.Step) (Output, error) {
	trajs, err := splitTrajectories(k.Name(), steps, 2)
	if err != nil {
		return Output{}, err
	}
	for _, tr := range trajs {
		if tr.Len() < 2 {
			return Output{}, &UnsupportedInputError{
				Evaluator: k.Name(),
				Reason:    "trajectory " + tr.ID + " has fewer than 2 frames",
			}
		}
	}

	matrices := make([]*mat.Dense, len(trajs))
	for i, tr := range trajs {
		m, err := tr.Matrix()
		if err != nil {
			return Output{}, &UnsupportedInputError{Evaluator: k.Name(), Reason: err.Error()}
		}
		matrices[i] = m
	}

	var (
		taus      []float64
		distances []tensor.Dense
	)
	for i := range trajs {
		for j := range trajs {
			if i == j || !comparablePair(k.opts.InterClass, trajs[i], trajs[j]) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return Output{}, err
			}

			dist, err := embedding.DistanceMatrix(matrices[i], matrices[j])
			if err != nil {
				return Output{}, &UnsupportedInputError{Evaluator: k.Name(), Reason: err.Error()}
			}

			rows, _ := dist.Dims()
			query := make([]float64, rows)
			matched := make([]float64, rows)
			for t := 0; t < rows; t++ {
				query[t] = float64(t)
				matched[t] = float64(argminRow(dist, t))
			}

			if tau := stat.Kendall(query, matched, nil); !math.IsNaN(tau) {
				taus = append(taus, tau)
			}
			distances = append(distances, distanceImage(dist))
		}
	}

	if len(distances) == 0 {
		return Output{}, &UnsupportedInputError{Evaluator: k.Name(), Reason: "no comparable trajectory pairs"}
	}

	meanTau := 0.0
	if len(taus) > 0 {
		sum := 0.0
		for _, t := range taus {
			sum += t
		}
		meanTau = sum / float64(len(taus))
	}

	return Output{
		Scalar: SingleScalar(meanTau),
		Image:  ManyArtifacts(distances...),
	}, nil
}

// argminRow returns the column index of the smallest value in row t.
func argminRow(m *mat.Dense, t int) int {
	_, cols := m.Dims()
	best, bestVal := 0, m.At(t, 0)
	for c := 1; c < cols; c++ {
		if v := m.At(t, c); v < bestVal {
			best, bestVal = c, v
		}
	}
	return best
}

// distanceImage copies a distance matrix into a 2-D image tensor.
func distanceImage(m *mat.Dense) tensor.Dense {
	rows, cols := m.Dims()
	img := tensor.Zeros(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.Set(m.At(r, c), r, c)
		}
	}
	return img
}
