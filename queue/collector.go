package queue

import (
	"context"
	"fmt"

	"github.com/embedbench/sdk/eval"
)

// Collector gathers one run's results and restores unit order so the
// decoded outputs can be merged. Workers complete units in whatever order
// scheduling allows; merged sequence order must follow unit positions, so
// the collector slots every result by its Index before handing anything
// downstream.
type Collector struct {
	client Client
}

// NewCollector creates a collector on top of a queue client.
func NewCollector(client Client) *Collector {
	return &Collector{client: client}
}

// Collect blocks until all total results for the run have arrived, then
// returns their decoded outputs ordered by unit index, ready for
// eval.Merge. A worker failure, a duplicate index, or an out-of-range index
// fails the collection.
func (c *Collector) Collect(ctx context.Context, runID string, total int) ([]eval.Output, error) {
	if total <= 0 {
		return nil, fmt.Errorf("queue: total must be positive, got %d", total)
	}

	results := make([]*Result, total)
	for n := 0; n < total; n++ {
		r, err := c.client.PopResult(ctx, runID)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, fmt.Errorf("queue: run %s yielded no result after %d of %d", runID, n, total)
		}
		if r.Index < 0 || r.Index >= total {
			return nil, fmt.Errorf("queue: result index %d out of range for run %s (total %d)", r.Index, runID, total)
		}
		if results[r.Index] != nil {
			return nil, fmt.Errorf("queue: duplicate result for unit %d of run %s", r.Index, runID)
		}
		if r.HasError() {
			return nil, fmt.Errorf("queue: unit %d of run %s failed on worker %s: %s", r.Index, runID, r.WorkerID, r.Error)
		}
		results[r.Index] = r
	}

	outs := make([]eval.Output, total)
	for i, r := range results {
		out, err := r.Output()
		if err != nil {
			return nil, fmt.Errorf("queue: decode result for unit %d of run %s: %w", i, runID, err)
		}
		outs[i] = out
	}
	return outs, nil
}
