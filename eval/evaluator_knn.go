package eval

import (
	"context"
	"fmt"
	"sort"

	"github.com/embedbench/sdk/embedding"
)

// ClassifyKNNOptions configures a k-nearest-neighbour classification probe.
type ClassifyKNNOptions struct {
	// InterClass is accepted for uniform construction; classification always
	// spans every class in the unit, so the flag is stored unused.
	InterClass bool `json:"inter_class" yaml:"inter_class"`

	// K is the number of neighbours consulted per frame. Defaults to 1.
	K int `json:"k" yaml:"k"`
}

// classifyKNN probes how linearly separable task classes are in embedding
// space.
type classifyKNN struct {
	opts ClassifyKNNOptions
}

var _ Evaluator = (*classifyKNN)(nil)

// NewClassifyKNN creates a k-NN classification evaluator.
//
// Every frame is classified by majority vote among its K nearest frames
// drawn from the other trajectories in the unit, and the predicted label is
// compared against the frame's task class. The output carries a single
// scalar: the fraction of correctly classified frames.
//
// Example:
//
//	ev, err := eval.NewClassifyKNN(eval.ClassifyKNNOptions{K: 3})
func NewClassifyKNN(opts ClassifyKNNOptions) (Evaluator, error) {
	if opts.K == 0 {
		opts.K = 1
	}
	if opts.K < 0 {
		return nil, fmt.Errorf("eval: negative neighbour count %d", opts.K)
	}
	return &classifyKNN{opts: opts}, nil
}

// Name returns the evaluator identifier.
func (c *classifyKNN) Name() string {
	return "classify_knn"
}

// InterClass reports the flag captured at construction.
func (c *classifyKNN) InterClass() bool {
	return c.opts.InterClass
}

// Evaluate computes the metric over one unit.
//
// Frames vote leave-one-trajectory-out: a frame's candidates are every frame
// of every other trajectory, so a trajectory never matches against itself.
// Vote ties resolve to the class of the nearest tied candidate.
func (c *classifyKNN) Evaluate(ctx context.Context, steps []embedding.Step) (Output, error) {
	trajs, err := splitTrajectories(c.Name(), steps, 2)
	if err != nil {
		return Output{}, err
	}

	classes := make(map[string]struct{})
	total := 0
	for _, tr := range trajs {
		classes[tr.TaskID] = struct{}{}
		total += tr.Len()
	}
	if len(classes) < 2 {
		return Output{}, &UnsupportedInputError{Evaluator: c.Name(), Reason: "all trajectories share one task class"}
	}
	for _, tr := range trajs {
		if total-tr.Len() < c.opts.K {
			return Output{}, &UnsupportedInputError{
				Evaluator: c.Name(),
				Reason:    fmt.Sprintf("trajectory %s has %d candidate frames, need at least %d", tr.ID, total-tr.Len(), c.opts.K),
			}
		}
	}

	correct, counted := 0, 0
	for qi, query := range trajs {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		// Candidate pool: every frame outside the query trajectory.
		var (
			cands  []embedding.Step
			labels []string
		)
		for ci, cand := range trajs {
			if ci == qi {
				continue
			}
			for _, s := range cand.Steps {
				cands = append(cands, s)
				labels = append(labels, cand.TaskID)
			}
		}

		for _, s := range query.Steps {
			if predict(s.Emb, cands, labels, c.opts.K) == query.TaskID {
				correct++
			}
			counted++
		}
	}

	return Output{Scalar: SingleScalar(float64(correct) / float64(counted))}, nil
}

// predict returns the majority class among the k nearest candidates.
func predict(emb []float64, cands []embedding.Step, labels []string, k int) string {
	order := make([]int, len(cands))
	dists := make([]float64, len(cands))
	for i, cand := range cands {
		order[i] = i
		dists[i] = embedding.SquaredEuclidean(emb, cand.Emb)
	}
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	votes := make(map[string]int, k)
	for _, idx := range order[:k] {
		votes[labels[idx]]++
	}

	best := 0
	for _, n := range votes {
		if n > best {
			best = n
		}
	}
	// Nearest tied candidate breaks the tie.
	for _, idx := range order[:k] {
		if votes[labels[idx]] == best {
			return labels[idx]
		}
	}
	return ""
}
