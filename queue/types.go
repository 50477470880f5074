package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/eval"
)

// Unit is one evaluation unit dispatched to a worker: a run-scoped slice of
// the model-output batch plus everything needed to evaluate it.
type Unit struct {
	// RunID is a UUID correlating all units of one run.
	RunID string `json:"run_id"`

	// Index is the unit's position in the run (0-based). Merged sequence
	// order follows Index, never completion order.
	Index int `json:"index"`

	// Total is the number of units in the run.
	Total int `json:"total"`

	// Evaluator is the registry name of the evaluator to apply.
	Evaluator string `json:"evaluator"`

	// Options are the evaluator's construction options, keyed by the
	// option struct's yaml names.
	Options map[string]any `json:"options,omitempty"`

	// StepsJSON is the unit's model-output steps serialized as JSON.
	StepsJSON string `json:"steps_json"`

	// SubmittedAt is the Unix timestamp in milliseconds when the unit was
	// queued.
	SubmittedAt int64 `json:"submitted_at"`
}

// Result is the outcome of evaluating one Unit. Workers push it onto the
// run's results list for the collector to gather.
type Result struct {
	// RunID correlates this result with its run.
	RunID string `json:"run_id"`

	// Index is the position of the evaluated unit in the run.
	Index int `json:"index"`

	// OutputJSON is the evaluator's Output serialized as JSON. Empty if
	// Error is set.
	OutputJSON string `json:"output_json,omitempty"`

	// Error is the failure message if evaluation failed. Empty on success.
	Error string `json:"error,omitempty"`

	// WorkerID identifies the worker that processed the unit.
	WorkerID string `json:"worker_id"`

	// StartedAt is the Unix timestamp in milliseconds when evaluation
	// started.
	StartedAt int64 `json:"started_at"`

	// CompletedAt is the Unix timestamp in milliseconds when evaluation
	// completed.
	CompletedAt int64 `json:"completed_at"`
}

// SetSteps serializes steps into the unit's payload.
func (u *Unit) SetSteps(steps []embedding.Step) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal unit steps: %w", err)
	}
	u.StepsJSON = string(data)
	return nil
}

// Steps deserializes the unit's payload.
func (u *Unit) Steps() ([]embedding.Step, error) {
	var steps []embedding.Step
	if err := json.Unmarshal([]byte(u.StepsJSON), &steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal unit steps: %w", err)
	}
	return steps, nil
}

// IsValid checks that the Unit has all required fields populated correctly.
func (u *Unit) IsValid() error {
	if u.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if u.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", u.Index)
	}
	if u.Total <= 0 {
		return fmt.Errorf("total must be positive, got %d", u.Total)
	}
	if u.Index >= u.Total {
		return fmt.Errorf("index %d is out of bounds for total %d", u.Index, u.Total)
	}
	if u.Evaluator == "" {
		return fmt.Errorf("evaluator name is required")
	}
	if u.StepsJSON == "" {
		return fmt.Errorf("steps_json is required")
	}
	if u.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", u.SubmittedAt)
	}
	return nil
}

// Age returns the duration since the unit was queued. Useful for spotting
// stale units and measuring queue wait time.
func (u *Unit) Age() time.Duration {
	if u.SubmittedAt <= 0 {
		return 0
	}
	now := time.Now().UnixMilli()
	return time.Duration(now-u.SubmittedAt) * time.Millisecond
}

// SetOutput serializes out into the result's payload.
func (r *Result) SetOutput(out eval.Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal result output: %w", err)
	}
	r.OutputJSON = string(data)
	return nil
}

// Output deserializes the result's payload.
func (r *Result) Output() (eval.Output, error) {
	var out eval.Output
	if err := json.Unmarshal([]byte(r.OutputJSON), &out); err != nil {
		return eval.Output{}, fmt.Errorf("failed to unmarshal result output: %w", err)
	}
	return out, nil
}

// HasError reports whether the result represents a failed evaluation.
func (r *Result) HasError() bool {
	return r.Error != ""
}

// Duration returns the wall-clock time the worker spent on the unit.
func (r *Result) Duration() time.Duration {
	if r.StartedAt <= 0 || r.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.StartedAt) * time.Millisecond
}

// IsValid checks that the Result has all required fields populated
// correctly.
func (r *Result) IsValid() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if r.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", r.Index)
	}
	if r.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	if r.StartedAt <= 0 {
		return fmt.Errorf("started_at must be positive, got %d", r.StartedAt)
	}
	if r.CompletedAt <= 0 {
		return fmt.Errorf("completed_at must be positive, got %d", r.CompletedAt)
	}
	if r.CompletedAt < r.StartedAt {
		return fmt.Errorf("completed_at (%d) cannot be before started_at (%d)", r.CompletedAt, r.StartedAt)
	}
	if !r.HasError() && r.OutputJSON == "" {
		return fmt.Errorf("output_json is required when error is empty")
	}
	return nil
}
