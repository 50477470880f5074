// Package queue provides Redis-based distribution of evaluation units
// across workers.
//
// The queue decouples unit submission from evaluation so a run can scale
// horizontally: a driver splits a model-output batch into units and pushes
// them, workers consume and evaluate them, and results flow back through a
// per-run results list. Because merged sequence order must follow unit
// positions rather than completion order, every unit and result carries an
// Index, and the Collector slots results by Index before anything reaches
// eval.Merge.
//
// # Core Components
//
// Client: Interface for interacting with Redis. Provides methods for:
//   - Push/Pop/PopAny operations on per-evaluator unit queues
//   - PushResult/PopResult on per-run results lists
//   - Announce/Completions pub/sub for run completion
//
// Unit: One evaluation unit - run ID, position, evaluator name and options,
// and the serialized model-output steps.
//
// Result: The outcome of evaluating a Unit, carrying the serialized Output
// or an error message.
//
// Collector: Gathers all of a run's results and returns the decoded
// outputs in unit order, ready for eval.Merge.
//
// # Redis Key Schema
//
//   - eval:units:<evaluator> - List of pending units (LPUSH/BRPOP)
//   - eval:results:<runID> - List of finished results (LPUSH/BRPOP)
//   - eval:runs:done - Pub/Sub channel announcing completed runs
//
// # Usage
//
// Creating a queue client:
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{
//		URL: "redis://localhost:6379",
//		ConnectTimeout: 5 * time.Second,
//	})
//
// Pushing a unit:
//
//	u := queue.Unit{
//		RunID:       runID,
//		Index:       0,
//		Total:       2,
//		Evaluator:   "kendalls_tau",
//		Options:     map[string]any{"inter_class": true},
//		SubmittedAt: time.Now().UnixMilli(),
//	}
//	if err := u.SetSteps(steps); err != nil {
//		return err
//	}
//	if err := client.Push(ctx, u); err != nil {
//		return err
//	}
//
// Consuming units (blocking):
//
//	u, err := client.Pop(ctx, "kendalls_tau")
//	if err != nil {
//		return err
//	}
//	steps, err := u.Steps()
//	// Evaluate and push the result...
//
// Collecting a run:
//
//	outs, err := queue.NewCollector(client).Collect(ctx, runID, total)
//	if err != nil {
//		return err
//	}
//	merged, err := eval.Merge(outs)
//
// Watching for finished runs:
//
//	runs, err := client.Completions(ctx)
//	for runID := range runs {
//		fmt.Printf("run %s complete\n", runID)
//	}
//
// # Error Handling
//
// All methods return errors for Redis connection failures, serialization
// errors, or context cancellation. Units and results are validated at the
// push boundary so malformed work never reaches a worker.
//
// # Thread Safety
//
// RedisClient is safe for concurrent use by multiple goroutines.
package queue
