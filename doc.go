// Package sdk provides the Software Development Kit for the embedbench
// evaluation framework.
//
// The SDK evaluates learned embedding spaces against recorded agent
// trajectories. Training loops hand it batches of embedded steps; evaluators
// score how well the embedding space orders, clusters, and reconstructs those
// trajectories; sinks record the results wherever the experiment tracks them.
//
// # Core Concepts
//
// The SDK is organized around a few key concepts:
//
//   - Outputs: per-evaluation results carrying optional scalar, image, and
//     video channels (package eval)
//   - Evaluators: metrics over groups of embedded trajectory steps, such as
//     rank correlation or nearest-neighbor classification (package eval)
//   - Sinks: destinations for logged results - JSONL files, OpenTelemetry,
//     Prometheus (package eval)
//   - Steps: the embedded model outputs under evaluation (package embedding)
//   - Distribution: Redis-backed work queues, an etcd worker registry, and a
//     worker runtime for spreading evaluation across machines (packages
//     queue, registry, worker)
//
// # Getting Started
//
// Create a session bundling a sink and the evaluators to run:
//
//	import (
//	    "github.com/embedbench/sdk"
//	    "github.com/embedbench/sdk/eval"
//	)
//
//	sink, err := eval.NewJSONLSink("results.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := sdk.NewSession(
//	    sdk.WithSink(sink),
//	    sdk.WithPrefix("valid"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	report, err := session.EvaluateNamed(ctx, []string{"kendalls_tau"}, steps, globalStep)
//
// # Writing an Evaluator
//
// Custom metrics implement the eval.Evaluator interface:
//
//	type MyMetric struct{}
//
//	func (m *MyMetric) Evaluate(ctx context.Context, steps []embedding.Step) (eval.Output, error) {
//	    // Metric logic here
//	    return eval.Output{Scalar: eval.SingleScalar(score)}, nil
//	}
//
// Register a factory so suites and workers can build it by name:
//
//	reg.Register("my_metric", eval.Variant{New: newMyMetric})
//
// # Distributed Evaluation
//
// For large runs, a driver splits work into units and pushes them onto a
// Redis queue; workers pop units, evaluate, and push results back; a
// collector reassembles results in unit order before merging. Workers
// announce themselves in an etcd registry and expose the standard gRPC
// health service. See the queue, registry, and worker packages.
//
// # Error Handling
//
// The SDK uses sentinel errors and structured error types for robust error
// handling:
//
//	if err != nil {
//	    if errors.Is(err, sdk.ErrSessionClosed) {
//	        // Handle closed session
//	    }
//	    // Handle other errors
//	}
//
// # Observability
//
// Results flow through sinks rather than a global logger; the OTel sink
// publishes them as OpenTelemetry instruments and span events, and the
// Prometheus sink exposes them for scraping. Operational components (worker,
// examples) log with log/slog.
//
// # Thread Safety
//
// Session methods are safe for concurrent use. Evaluators are not shared
// across concurrent Evaluate calls by the runner; custom evaluators only
// need internal locking if callers share one instance themselves.
//
// # Examples
//
// See the examples directory for complete working examples of:
//
//   - Evaluating a batch of embedded steps locally
//   - Loading an evaluation suite from YAML
//   - Running a distributed worker fleet over Redis and etcd
package sdk
