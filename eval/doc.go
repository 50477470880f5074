// Package eval provides the evaluation result model and extension contract
// for assessing learned embedding models on downstream tasks. It defines the
// Output record unifying scalar metrics with image and video artifacts, the
// Evaluator interface concrete metrics implement, the Sink boundary results
// are logged through, and a suite runner that drives many evaluators over
// many units concurrently.
//
// # The Output Record
//
// Every evaluator produces one Output per evaluated unit. An Output carries
// up to three payload kinds, each independently absent, single, or a
// sequence:
//
//	out := eval.Output{
//	    Scalar: eval.SingleScalar(0.82),
//	    Image:  eval.ManyArtifacts(distA, distB),
//	}
//
// Absent kinds stay zero-valued; a scalar-only evaluator never touches Image
// or Video. Which kinds a variant populates is fixed: two Outputs from the
// same evaluator always share one presence pattern, which is what makes
// batch merging well defined.
//
// # Merging
//
// Merge folds the Outputs of a batch of units into one Output whose present
// kinds are sequences in input order:
//
//	merged, err := eval.Merge(outs)
//	if err != nil {
//	    var mismatch *eval.InconsistentOutputError
//	    if errors.As(err, &mismatch) {
//	        // outs[mismatch.Index] had presence mismatch.Got, want mismatch.Want
//	    }
//	}
//
// All inputs must share one presence pattern; the first offender is reported
// with its index and both patterns. An empty batch returns
// ErrEmptyMergeInput. Merging one Output still wraps its values in length-1
// sequences, and values that are already sequences nest rather than flatten,
// so downstream consumers see exactly one layer per merge.
//
// Merge is synchronous and shares nothing with the Evaluate calls that
// produced its inputs. When units are evaluated concurrently, collect
// results indexed by unit position first; both the Runner here and the queue
// package's Collector do exactly that, so merged sequence order always
// matches unit order no matter how the work was scheduled.
//
// # Logging
//
// Log dispatches one Output to a Sink under a (step, name, prefix) key:
//
//	if err := merged.Log(sink, step, "kendalls_tau", "valid"); err != nil {
//	    return err
//	}
//
// A present scalar kind emits exactly one LogScalar call carrying the
// arithmetic mean over all leaf values; the record itself is never mutated,
// so logging twice emits the same mean twice. A single image or video emits
// one call under the unmodified name; a sequence fans out one call per
// element in order under "name_0", "name_1", and so on, recursing with
// hierarchical suffixes if elements are themselves sequences. Absent kinds
// emit nothing. The first sink error aborts the dispatch and is returned
// wrapped with the failing tag.
//
// # Sinks
//
// Sink is the opaque logging boundary: three primitive operations, one per
// payload kind. The package ships JSONLSink (append-only JSONL file, one
// fsynced record per call), OTelSink (OpenTelemetry spans plus a scalar
// histogram and an artifact counter), PromSink (Prometheus gauges and
// counters), and MultiSink for fan-out. Anything that can log a scalar, an
// image, and a video can stand behind the interface:
//
//	sink, err := eval.NewJSONLSink("results/run.jsonl")
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
// # Evaluators
//
// An Evaluator turns a unit of model outputs — per-timestep embedding Steps
// spanning one or more trajectories — into one Output. Variants are
// constructed from an options struct that fixes the InterClass flag for the
// lifetime of the evaluator: false compares only trajectories of the same
// task class, true widens comparisons across classes. The flag is stored
// and retrievable even by variants whose metric ignores it.
//
// KendallsTau scores cross-trajectory frame alignment by rank correlation
// and attaches the per-pair distance matrices as images:
//
//	ev, err := eval.NewKendallsTau(eval.KendallsTauOptions{InterClass: true})
//
// CycleConsistency measures whether nearest-neighbour hops through other
// trajectories return to their starting frame, in two-way or three-way
// mode. ClassifyKNN probes class separability with a k-nearest-neighbour
// vote. NearestNeighbour renders side-by-side videos of each frame and its
// nearest cross-trajectory match. RewardPlot rasterizes goal-distance
// reward curves into images.
//
// Malformed units fail explicitly with *UnsupportedInputError naming the
// variant and the reason; no variant silently degrades.
//
// # Suites
//
// A SuiteConfig describes a whole evaluation run in YAML or JSON: which
// evaluators to build with which options, an optional CEL filter expression
// selecting evaluators by name, class mode, or presence pattern, and sink
// settings. LoadSuiteConfig decodes by file extension and validates the
// result, and SuiteConfig.Build resolves evaluator names against the package
// Registry:
//
//	cfg, err := eval.LoadSuiteConfig("suite.yaml")
//	if err != nil {
//	    return err
//	}
//	evs, err := cfg.Build(eval.DefaultRegistry())
//
// # Running
//
// Runner drives a suite: it groups steps into units (one unit per task
// class for within-class evaluators, one unit overall for inter-class
// ones), evaluates units concurrently under a bounded errgroup, collects
// results by unit position, merges, and logs — one merged record per
// evaluator per run:
//
//	r, err := eval.NewRunner(eval.RunnerOptions{Sink: sink, Parallelism: 4})
//	if err != nil {
//	    return err
//	}
//	report, err := r.Run(ctx, evs, steps, step)
package eval
