package eval

import (
	"context"
	"fmt"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/tensor"
)

// NearestNeighbourOptions configures a nearest-neighbour visualizer.
type NearestNeighbourOptions struct {
	// InterClass widens the partner trajectories to span different task
	// classes instead of staying within one class.
	InterClass bool `json:"inter_class" yaml:"inter_class"`
}

// nearestNeighbour renders what the embedding space considers "the same
// moment" across trajectories.
type nearestNeighbour struct {
	opts NearestNeighbourOptions
}

var _ Evaluator = (*nearestNeighbour)(nil)

// NewNearestNeighbour creates a nearest-neighbour visualizing evaluator.
//
// For each trajectory, every frame is paired side by side with the nearest
// frame (in embedding space) drawn from the unit's other comparable
// trajectories, producing one video per trajectory. Inspecting the videos
// shows whether nearest neighbours are semantically aligned moments.
//
// The output carries a video sequence with one entry per trajectory, in
// unit order. Every step must have a rendered frame and all frames must
// share one shape.
func NewNearestNeighbour(opts NearestNeighbourOptions) (Evaluator, error) {
	return &nearestNeighbour{opts: opts}, nil
}

// Name returns the evaluator identifier.
func (n *nearestNeighbour) Name() string {
	return "nearest_neighbour"
}

// InterClass reports the class mode captured at construction.
func (n *nearestNeighbour) InterClass() bool {
	return n.opts.InterClass
}

// Evaluate computes the visualization over one unit.
func (n *nearestNeighbour) Evaluate(ctx context.Context, steps []embedding.Step) (Output, error) {
	trajs, err := splitTrajectories(n.Name(), steps, 2)
	if err != nil {
		return Output{}, err
	}

	frameShape, err := uniformFrameShape(n.Name(), trajs)
	if err != nil {
		return Output{}, err
	}
	if rank := len(frameShape); rank != 2 && rank != 3 {
		return Output{}, &UnsupportedInputError{
			Evaluator: n.Name(),
			Reason:    fmt.Sprintf("frames have rank %d, want 2 or 3", rank),
		}
	}

	videos := make([]tensor.Dense, 0, len(trajs))
	for qi, query := range trajs {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		var partners []embedding.Step
		for ci, cand := range trajs {
			if ci == qi || !comparablePair(n.opts.InterClass, query, cand) {
				continue
			}
			partners = append(partners, cand.Steps...)
		}
		if len(partners) == 0 {
			return Output{}, &UnsupportedInputError{
				Evaluator: n.Name(),
				Reason:    "trajectory " + query.ID + " has no comparable partner",
			}
		}

		video := pairVideo(query.Steps, partners, frameShape)
		videos = append(videos, video)
	}

	return Output{Video: ManyArtifacts(videos...)}, nil
}

// uniformFrameShape checks that every step carries a frame and that all
// frames share one shape, returning it.
func uniformFrameShape(name string, trajs []embedding.Trajectory) ([]int, error) {
	var shape []int
	for _, tr := range trajs {
		for i, s := range tr.Steps {
			if !s.HasFrame() {
				return nil, &UnsupportedInputError{
					Evaluator: name,
					Reason:    fmt.Sprintf("trajectory %s step %d has no frame", tr.ID, i),
				}
			}
			if shape == nil {
				shape = s.Frame.Shape()
				continue
			}
			if !sameShape(shape, s.Frame.Shape()) {
				return nil, &UnsupportedInputError{
					Evaluator: name,
					Reason:    fmt.Sprintf("frame shapes differ: %v vs %v", shape, s.Frame.Shape()),
				}
			}
		}
	}
	return shape, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pairVideo stitches each query frame side by side with its nearest partner
// frame into one video tensor of shape T x H x 2W (x C).
func pairVideo(query, partners []embedding.Step, frameShape []int) tensor.Dense {
	h, w := frameShape[0], frameShape[1]
	shape := []int{len(query), h, 2 * w}
	if len(frameShape) == 3 {
		shape = append(shape, frameShape[2])
	}
	video := tensor.Zeros(shape...)

	for t, s := range query {
		nearest := nearestStep(s.Emb, partners)
		blitFrame(video, t, s.Frame, 0)
		blitFrame(video, t, nearest.Frame, w)
	}
	return video
}

// nearestStep returns the partner step whose embedding is closest to emb.
func nearestStep(emb []float64, partners []embedding.Step) embedding.Step {
	best, bestDist := 0, embedding.SquaredEuclidean(emb, partners[0].Emb)
	for i := 1; i < len(partners); i++ {
		if d := embedding.SquaredEuclidean(emb, partners[i].Emb); d < bestDist {
			best, bestDist = i, d
		}
	}
	return partners[best]
}

// blitFrame copies frame into video timestep t starting at column offset.
func blitFrame(video tensor.Dense, t int, frame tensor.Dense, offset int) {
	shape := frame.Shape()
	h, w := shape[0], shape[1]
	if len(shape) == 2 {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				video.Set(frame.At(y, x), t, y, offset+x)
			}
		}
		return
	}
	ch := shape[2]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < ch; c++ {
				video.Set(frame.At(y, x, c), t, y, offset+x, c)
			}
		}
	}
}
