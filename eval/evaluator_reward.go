package eval

import (
	"context"
	"fmt"
	"math"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/tensor"
)

// RewardPlotOptions configures a reward-curve visualizer.
type RewardPlotOptions struct {
	// InterClass is accepted for uniform construction; the reward curve is
	// computed per trajectory against the unit-wide goal, so the flag is
	// stored unused.
	InterClass bool `json:"inter_class" yaml:"inter_class"`

	// Height is the pixel height of the rendered plot. Defaults to 64.
	Height int `json:"height" yaml:"height"`
}

// rewardPlot renders embedding-distance reward curves.
type rewardPlot struct {
	opts RewardPlotOptions
}

var _ Evaluator = (*rewardPlot)(nil)

// NewRewardPlot creates a reward-curve visualizing evaluator.
//
// The goal point is the mean of every trajectory's final-step embedding; a
// step's reward is the negated Euclidean distance from the goal. Each
// trajectory's curve is rasterized into a Height x T image, normalized over
// the unit's full reward range so curves are comparable across trajectories.
// A rising curve means the embedding moves monotonically toward the goal.
//
// The output carries an image sequence with one plot per trajectory, in
// unit order.
func NewRewardPlot(opts RewardPlotOptions) (Evaluator, error) {
	if opts.Height == 0 {
		opts.Height = 64
	}
	if opts.Height < 2 {
		return nil, fmt.Errorf("eval: plot height %d too small", opts.Height)
	}
	return &rewardPlot{opts: opts}, nil
}

// Name returns the evaluator identifier.
func (r *rewardPlot) Name() string {
	return "reward_plot"
}

// InterClass reports the flag captured at construction.
func (r *rewardPlot) InterClass() bool {
	return r.opts.InterClass
}

// Evaluate computes the visualization over one unit.
func (r *rewardPlot) Evaluate(ctx context.Context, steps []embedding.Step) (Output, error) {
	trajs, err := splitTrajectories(r.Name(), steps, 1)
	if err != nil {
		return Output{}, err
	}

	dim := len(trajs[0].Steps[0].Emb)
	for _, tr := range trajs {
		if tr.Len() < 2 {
			return Output{}, &UnsupportedInputError{
				Evaluator: r.Name(),
				Reason:    "trajectory " + tr.ID + " has fewer than 2 steps",
			}
		}
		for i, s := range tr.Steps {
			if len(s.Emb) != dim {
				return Output{}, &UnsupportedInputError{
					Evaluator: r.Name(),
					Reason:    fmt.Sprintf("trajectory %s step %d dimension %d, want %d", tr.ID, i, len(s.Emb), dim),
				}
			}
		}
	}

	// Goal: mean of final-step embeddings across the unit.
	goal := make([]float64, dim)
	for _, tr := range trajs {
		last := tr.Steps[tr.Len()-1].Emb
		for d, v := range last {
			goal[d] += v
		}
	}
	for d := range goal {
		goal[d] /= float64(len(trajs))
	}

	// Rewards per trajectory, tracking the unit-wide range.
	rewards := make([][]float64, len(trajs))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, tr := range trajs {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		curve := make([]float64, tr.Len())
		for t, s := range tr.Steps {
			curve[t] = -math.Sqrt(embedding.SquaredEuclidean(s.Emb, goal))
			lo = math.Min(lo, curve[t])
			hi = math.Max(hi, curve[t])
		}
		rewards[i] = curve
	}

	plots := make([]tensor.Dense, len(rewards))
	for i, curve := range rewards {
		plots[i] = r.rasterize(curve, lo, hi)
	}
	return Output{Image: ManyArtifacts(plots...)}, nil
}

// rasterize draws one curve into a Height x len(curve) image with row 0 at
// the top. Consecutive points are joined vertically so the curve reads as a
// connected line.
func (r *rewardPlot) rasterize(curve []float64, lo, hi float64) tensor.Dense {
	h := r.opts.Height
	img := tensor.Zeros(h, len(curve))

	span := hi - lo
	prev := 0
	for t, v := range curve {
		row := (h - 1) / 2
		if span > 0 {
			row = h - 1 - int(math.Round((v-lo)/span*float64(h-1)))
		}
		img.Set(1, row, t)
		if t > 0 {
			step := 1
			if row < prev {
				step = -1
			}
			for y := prev; y != row; y += step {
				img.Set(1, y, t)
			}
		}
		prev = row
	}
	return img
}
