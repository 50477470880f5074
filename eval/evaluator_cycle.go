package eval

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/embedbench/sdk/embedding"
)

// CycleMode selects how many hops a consistency cycle makes before it must
// return to its starting frame.
type CycleMode int

const (
	// CycleTwoWay checks a -> b -> a round trips between trajectory pairs.
	CycleTwoWay CycleMode = iota

	// CycleThreeWay checks a -> b -> c -> a round trips between trajectory
	// triples, a stricter test of embedding-space alignment.
	CycleThreeWay
)

// cycleModeString returns a human-readable mode name.
func cycleModeString(m CycleMode) string {
	switch m {
	case CycleTwoWay:
		return "two_way"
	case CycleThreeWay:
		return "three_way"
	default:
		return "unknown"
	}
}

// CycleConsistencyOptions configures a cycle-consistency evaluator.
type CycleConsistencyOptions struct {
	// InterClass widens the compared trajectory groups to span different
	// task classes instead of staying within one class.
	InterClass bool `json:"inter_class" yaml:"inter_class"`

	// Mode selects two-way or three-way cycles.
	Mode CycleMode `json:"mode" yaml:"mode"`

	// Tolerance is how many frames a round trip may land away from its
	// starting frame and still count as consistent. 0 requires an exact
	// return.
	Tolerance int `json:"tolerance" yaml:"tolerance"`
}

// cycleConsistency measures whether nearest-neighbour hops through other
// trajectories return to where they started.
type cycleConsistency struct {
	opts CycleConsistencyOptions
}

var _ Evaluator = (*cycleConsistency)(nil)

// NewCycleConsistency creates a cycle-consistency evaluator.
//
// Each frame of a trajectory hops to its nearest frame in another
// trajectory (and, in three-way mode, onward to a third) and finally back;
// the frame is consistent when the round trip lands within Tolerance frames
// of where it began. The output carries a single scalar: the fraction of
// consistent frames, averaged over all compared groups.
//
// Example:
//
//	ev, err := eval.NewCycleConsistency(eval.CycleConsistencyOptions{
//	    Mode:      eval.CycleThreeWay,
//	    Tolerance: 1,
//	})
func NewCycleConsistency(opts CycleConsistencyOptions) (Evaluator, error) {
	if opts.Mode != CycleTwoWay && opts.Mode != CycleThreeWay {
		return nil, fmt.Errorf("eval: unknown cycle mode %d", opts.Mode)
	}
	if opts.Tolerance < 0 {
		return nil, fmt.Errorf("eval: negative cycle tolerance %d", opts.Tolerance)
	}
	return &cycleConsistency{opts: opts}, nil
}

// Name returns the evaluator identifier, qualified by mode.
func (c *cycleConsistency) Name() string {
	return "cycle_consistency_" + cycleModeString(c.opts.Mode)
}

// InterClass reports the class mode captured at construction.
func (c *cycleConsistency) InterClass() bool {
	return c.opts.InterClass
}

// Evaluate computes the metric over one unit.
func (c *cycleConsistency) Evaluate(ctx context.Context, steps []embedding.Step) (Output, error) {
	minTrajs := 2
	if c.opts.Mode == CycleThreeWay {
		minTrajs = 3
	}
	trajs, err := splitTrajectories(c.Name(), steps, minTrajs)
	if err != nil {
		return Output{}, err
	}

	matrices := make([]*mat.Dense, len(trajs))
	for i, tr := range trajs {
		m, err := tr.Matrix()
		if err != nil {
			return Output{}, &UnsupportedInputError{Evaluator: c.Name(), Reason: err.Error()}
		}
		matrices[i] = m
	}

	var rates []float64
	switch c.opts.Mode {
	case CycleTwoWay:
		for i := range trajs {
			for j := range trajs {
				if i == j || !comparablePair(c.opts.InterClass, trajs[i], trajs[j]) {
					continue
				}
				if err := ctx.Err(); err != nil {
					return Output{}, err
				}
				rates = append(rates, c.cycleRate(matrices, i, j))
			}
		}
	case CycleThreeWay:
		for i := range trajs {
			for j := range trajs {
				for l := range trajs {
					if i == j || j == l || i == l {
						continue
					}
					if !comparablePair(c.opts.InterClass, trajs[i], trajs[j]) ||
						!comparablePair(c.opts.InterClass, trajs[j], trajs[l]) ||
						!comparablePair(c.opts.InterClass, trajs[i], trajs[l]) {
						continue
					}
					if err := ctx.Err(); err != nil {
						return Output{}, err
					}
					rates = append(rates, c.cycleRate(matrices, i, j, l))
				}
			}
		}
	}

	if len(rates) == 0 {
		return Output{}, &UnsupportedInputError{Evaluator: c.Name(), Reason: "no comparable trajectory groups"}
	}

	sum := 0.0
	for _, r := range rates {
		sum += r
	}
	return Output{Scalar: SingleScalar(sum / float64(len(rates)))}, nil
}

// cycleRate runs every frame of the first trajectory through the hop chain
// and back, returning the fraction that land within tolerance of their
// start.
func (c *cycleConsistency) cycleRate(matrices []*mat.Dense, chain ...int) float64 {
	start := matrices[chain[0]]
	rows, _ := start.Dims()

	consistent := 0
	for t := 0; t < rows; t++ {
		emb := start.RawRowView(t)
		for _, hop := range chain[1:] {
			idx, _ := embedding.NearestRow(emb, matrices[hop])
			emb = matrices[hop].RawRowView(idx)
		}
		back, _ := embedding.NearestRow(emb, start)
		if diff := back - t; diff <= c.opts.Tolerance && diff >= -c.opts.Tolerance {
			consistent++
		}
	}
	return float64(consistent) / float64(rows)
}
