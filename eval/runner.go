package eval

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/embedbench/sdk/embedding"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Sink receives every merged result.
	Sink Sink

	// Prefix namespaces all logged tags, e.g. "valid".
	Prefix string

	// Parallelism bounds concurrent Evaluate calls per evaluator. Defaults
	// to runtime.NumCPU().
	Parallelism int
}

// Runner drives a set of evaluators over one batch of model outputs.
//
// For each evaluator the steps are grouped into units: one unit per task
// class (sorted by class) when the evaluator compares within classes, one
// unit spanning everything when it compares across them. Units evaluate
// concurrently under a bounded errgroup, results are collected by unit
// position, merged, and logged once — so the merged sequence order always
// matches unit order regardless of scheduling.
type Runner struct {
	opts RunnerOptions
}

// EvaluatorReport records one evaluator's slice of a run.
type EvaluatorReport struct {
	// Name is the evaluator's identifier.
	Name string `json:"name"`

	// Units is how many units the steps were grouped into.
	Units int `json:"units"`

	// Duration covers evaluate, merge and log for this evaluator.
	Duration time.Duration `json:"duration"`
}

// RunReport summarizes one completed run.
type RunReport struct {
	// RunID is the identifier assigned to this run.
	RunID string `json:"run_id"`

	// Step is the global step results were logged at.
	Step int64 `json:"step"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall time of the run.
	Duration time.Duration `json:"duration"`

	// Evaluators holds one entry per evaluator in run order.
	Evaluators []EvaluatorReport `json:"evaluators"`
}

// NewRunner creates a runner.
//
// Example:
//
//	r, err := eval.NewRunner(eval.RunnerOptions{
//	    Sink:        sink,
//	    Prefix:      "valid",
//	    Parallelism: 4,
//	})
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("eval: runner needs a sink")
	}
	if opts.Parallelism < 0 {
		return nil, fmt.Errorf("eval: negative parallelism %d", opts.Parallelism)
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	return &Runner{opts: opts}, nil
}

// Run evaluates every evaluator over steps and logs one merged Output per
// evaluator at the given step. The first failure aborts the run.
func (r *Runner) Run(ctx context.Context, evs []Evaluator, steps []embedding.Step, step int64) (*RunReport, error) {
	if len(evs) == 0 {
		return nil, fmt.Errorf("eval: no evaluators to run")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("eval: no steps to evaluate")
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		Step:      step,
		StartedAt: time.Now().UTC(),
	}

	for _, ev := range evs {
		start := time.Now()
		us := unitsFor(ev, steps)

		outs := make([]Output, len(us))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Parallelism)
		for i, u := range us {
			i, u := i, u
			g.Go(func() error {
				out, err := ev.Evaluate(gctx, u)
				if err != nil {
					return fmt.Errorf("eval: %s unit %d: %w", ev.Name(), i, err)
				}
				outs[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		merged, err := Merge(outs)
		if err != nil {
			return nil, fmt.Errorf("eval: merge %s: %w", ev.Name(), err)
		}
		if err := merged.Log(r.opts.Sink, step, ev.Name(), r.opts.Prefix); err != nil {
			return nil, err
		}

		report.Evaluators = append(report.Evaluators, EvaluatorReport{
			Name:     ev.Name(),
			Units:    len(us),
			Duration: time.Since(start),
		})
	}

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

// unitsFor groups steps into the evaluator's evaluation units. Class units
// are ordered by sorted task ID so unit positions are stable across runs.
func unitsFor(ev Evaluator, steps []embedding.Step) [][]embedding.Step {
	if ev.InterClass() {
		return [][]embedding.Step{steps}
	}

	byClass := make(map[string][]embedding.Step)
	var classes []string
	for _, s := range steps {
		if _, ok := byClass[s.TaskID]; !ok {
			classes = append(classes, s.TaskID)
		}
		byClass[s.TaskID] = append(byClass[s.TaskID], s)
	}
	sort.Strings(classes)

	units := make([][]embedding.Step, len(classes))
	for i, c := range classes {
		units[i] = byClass[c]
	}
	return units
}
