// Package worker provides the main loop for running evaluation workers
// against the Redis unit queues.
//
// # Overview
//
// A worker consumes evaluation units from the per-evaluator queues, builds
// the named evaluator from a factory registry, evaluates the unit's steps,
// and pushes the result back for the collector. Running several workers
// scales a batch evaluation horizontally across processes or machines.
//
// # Architecture
//
// Workers operate in a producer-consumer pattern:
//   - Driver (producer): splits a run into Units and pushes them to Redis
//   - Workers (consumers): pop Units, evaluate, push Results
//   - Collector: gathers Results, restores unit order, merges
//
// # Usage
//
// To run a worker serving every shipped evaluator:
//
//	func main() {
//	    opts := worker.Options{
//	        RedisURL:    "redis://localhost:6379",
//	        Concurrency: 4,
//	    }
//
//	    // Blocks until SIGTERM/SIGINT
//	    if err := worker.Run(opts); err != nil {
//	        log.Fatalf("worker failed: %v", err)
//	    }
//	}
//
// # Health and Discovery
//
// Every worker serves the standard grpc_health_v1 service on HealthAddr so
// orchestrators can probe it; the status flips to NOT_SERVING as soon as
// shutdown begins. When a worker registry is configured (explicitly or via
// EMBEDBENCH_REGISTRY_ENDPOINTS), the worker registers a WorkerInfo on
// startup and deregisters on shutdown, so drivers can discover live
// consumers per evaluator.
//
// # Graceful Shutdown
//
// Workers handle SIGTERM and SIGINT:
//  1. Signal received, health flips to NOT_SERVING
//  2. Context cancelled, no new units are popped
//  3. Consumers finish their in-flight units
//  4. Run returns, or times out after ShutdownTimeout
//
// A unit interrupted mid-evaluation produces an error Result rather than
// disappearing, so the collector still sees the full run.
//
// # Error Handling
//
// The consumer loop is resilient: Redis connection failure is fatal and
// Run returns; pop errors are logged and the loop continues; evaluator
// construction and evaluation errors become error Results for the
// collector to surface.
package worker
