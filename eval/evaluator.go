package eval

import (
	"context"
	"fmt"

	"github.com/embedbench/sdk/embedding"
)

// Evaluator computes one downstream-task metric in embedding space.
//
// Implementations receive the model outputs for one evaluated unit and
// return exactly one Output. A given evaluator populates the same payload
// kinds on every call, which is what makes its outputs mergeable; it keeps
// no state between calls beyond construction-time configuration.
//
// Evaluators are built by their New constructors from an options struct
// carrying at least the InterClass flag:
//
//	ev, err := eval.NewCycleConsistency(eval.CycleConsistencyOptions{
//	    InterClass: true,
//	})
type Evaluator interface {
	// Evaluate computes the metric over one evaluated unit. The steps are
	// ordered model outputs, possibly spanning several trajectories; the
	// evaluator regroups them as its metric requires. It returns an
	// *UnsupportedInputError when the input does not meet the metric's
	// minimal requirements.
	Evaluate(ctx context.Context, steps []embedding.Step) (Output, error)

	// Name returns the stable identifier of this evaluator, used as the
	// default log tag and as the config lookup key.
	Name() string

	// InterClass reports the flag captured at construction: whether the
	// metric compares trajectories across task classes rather than within
	// one class. Evaluators whose metric has no class notion store it
	// unused.
	InterClass() bool
}

// validSteps rejects units that are empty or contain a step without an
// embedding vector.
func validSteps(name string, steps []embedding.Step) error {
	if len(steps) == 0 {
		return &UnsupportedInputError{Evaluator: name, Reason: "no model outputs"}
	}
	for i, s := range steps {
		if err := s.IsValid(); err != nil {
			return &UnsupportedInputError{Evaluator: name, Reason: fmt.Sprintf("step %d: %v", i, err)}
		}
	}
	return nil
}

// splitTrajectories validates the unit and regroups it by trajectory,
// requiring at least min trajectories.
func splitTrajectories(name string, steps []embedding.Step, min int) ([]embedding.Trajectory, error) {
	if err := validSteps(name, steps); err != nil {
		return nil, err
	}
	trajs := embedding.Split(steps)
	if len(trajs) < min {
		return nil, &UnsupportedInputError{
			Evaluator: name,
			Reason:    fmt.Sprintf("%d trajectories, need at least %d", len(trajs), min),
		}
	}
	return trajs, nil
}

// comparablePair reports whether two trajectories may be compared under the
// given class mode: across any classes when interClass is set, within one
// task class otherwise.
func comparablePair(interClass bool, a, b embedding.Trajectory) bool {
	return interClass || a.TaskID == b.TaskID
}
