package eval

import (
	"errors"
	"fmt"
)

// ErrEmptyMergeInput is returned by Merge when the input slice is empty.
// There is no meaningful presence pattern to merge from zero outputs.
var ErrEmptyMergeInput = errors.New("eval: merge called with no outputs")

// InconsistentOutputError is returned by Merge when the outputs do not all
// share the same presence pattern. It signals a defect in the evaluator that
// produced the outputs: a given evaluator must populate the same payload
// kinds on every call.
type InconsistentOutputError struct {
	// Index is the position of the first output whose pattern differs.
	Index int
	// Want is the presence pattern of the first output.
	Want Presence
	// Got is the presence pattern found at Index.
	Got Presence
}

func (e *InconsistentOutputError) Error() string {
	return fmt.Sprintf("eval: inconsistent output at index %d: got %s, want %s", e.Index, e.Got, e.Want)
}

// UnsupportedInputError is returned by an Evaluator whose input does not meet
// the metric's minimal requirements, such as too few trajectories for a
// pairwise comparison or missing frames for a visualizer.
type UnsupportedInputError struct {
	// Evaluator is the name of the evaluator that rejected the input.
	Evaluator string
	// Reason describes the unmet requirement.
	Reason string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("eval: %s: unsupported input: %s", e.Evaluator, e.Reason)
}
