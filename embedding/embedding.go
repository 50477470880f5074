// Package embedding defines the model-output records consumed by evaluators.
//
// A Step is the per-timestep output of an embedding model: the embedding
// vector itself plus optional metadata evaluators read (the rendered frame,
// the trajectory it belongs to, the downstream task label). Evaluators
// receive an ordered sequence of steps for one evaluated unit; helpers here
// regroup such sequences by trajectory and bridge them into gonum matrices.
package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/embedbench/sdk/tensor"
)

// Step is one timestep of embedding-model output. Emb is required; the
// remaining fields are optional metadata that specific evaluators consume.
type Step struct {
	// TrajectoryID identifies the trajectory this step belongs to. Steps
	// sharing an ID form one trajectory; an empty ID is a valid (single)
	// trajectory.
	TrajectoryID string `json:"trajectory_id,omitempty" yaml:"trajectory_id,omitempty"`

	// TaskID labels the downstream task or class of the trajectory, used by
	// classification metrics and by drivers grouping units per class.
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`

	// Emb is the embedding vector for this timestep.
	Emb []float64 `json:"emb" yaml:"emb"`

	// Frame is the rendered observation for this timestep, consumed only by
	// visualizing evaluators. The zero tensor means no frame was provided.
	Frame tensor.Dense `json:"frame,omitzero" yaml:"frame,omitempty"`
}

// IsValid checks that the step carries an embedding vector.
func (s Step) IsValid() error {
	if len(s.Emb) == 0 {
		return fmt.Errorf("embedding: step has no embedding vector")
	}
	return nil
}

// HasFrame reports whether a rendered frame is attached.
func (s Step) HasFrame() bool { return !s.Frame.IsZero() }

// Trajectory is a contiguous run of steps sharing one TrajectoryID.
type Trajectory struct {
	ID     string `json:"id" yaml:"id"`
	TaskID string `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

// Len returns the number of timesteps.
func (tr Trajectory) Len() int { return len(tr.Steps) }

// Matrix copies the trajectory's embeddings into a T x D gonum matrix. It
// returns an error when the trajectory is empty or the embedding dimension
// varies between steps.
func (tr Trajectory) Matrix() (*mat.Dense, error) {
	if len(tr.Steps) == 0 {
		return nil, fmt.Errorf("embedding: trajectory %q has no steps", tr.ID)
	}
	d := len(tr.Steps[0].Emb)
	if d == 0 {
		return nil, fmt.Errorf("embedding: trajectory %q step 0 has no embedding vector", tr.ID)
	}
	m := mat.NewDense(len(tr.Steps), d, nil)
	for i, s := range tr.Steps {
		if len(s.Emb) != d {
			return nil, fmt.Errorf("embedding: trajectory %q step %d dimension %d, want %d", tr.ID, i, len(s.Emb), d)
		}
		m.SetRow(i, s.Emb)
	}
	return m, nil
}

// Frames collects the per-step frames in order. It returns an error when any
// step is missing a frame.
func (tr Trajectory) Frames() ([]tensor.Dense, error) {
	frames := make([]tensor.Dense, len(tr.Steps))
	for i, s := range tr.Steps {
		if !s.HasFrame() {
			return nil, fmt.Errorf("embedding: trajectory %q step %d has no frame", tr.ID, i)
		}
		frames[i] = s.Frame
	}
	return frames, nil
}

// Split regroups a flat step sequence into trajectories keyed by
// TrajectoryID, preserving the order of first appearance and the step order
// within each trajectory. A trajectory's TaskID is taken from its first step.
func Split(steps []Step) []Trajectory {
	var out []Trajectory
	index := make(map[string]int)
	for _, s := range steps {
		i, ok := index[s.TrajectoryID]
		if !ok {
			i = len(out)
			index[s.TrajectoryID] = i
			out = append(out, Trajectory{ID: s.TrajectoryID, TaskID: s.TaskID})
		}
		out[i].Steps = append(out[i].Steps, s)
	}
	return out
}

// Join flattens trajectories back into one step sequence, trajectory by
// trajectory in the given order.
func Join(trajs []Trajectory) []Step {
	var n int
	for _, tr := range trajs {
		n += len(tr.Steps)
	}
	out := make([]Step, 0, n)
	for _, tr := range trajs {
		out = append(out, tr.Steps...)
	}
	return out
}
