package sdk_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/embedbench/sdk"
	"github.com/embedbench/sdk/embedding"
	"github.com/embedbench/sdk/eval"
)

// quietSession creates a session that logs nowhere, for deterministic output.
func quietSession(opts ...sdk.Option) (*sdk.Session, error) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	opts = append(opts, sdk.WithLogger(logger))
	return sdk.NewSession(opts...)
}

// demoSteps builds two aligned trajectories of one manipulation task.
func demoSteps() []embedding.Step {
	var steps []embedding.Step
	for _, tr := range []struct {
		id   string
		vals []float64
	}{
		{"demo", []float64{0, 1, 2}},
		{"replay", []float64{0.1, 1.1, 2.1}},
	} {
		for _, v := range tr.vals {
			steps = append(steps, embedding.Step{
				TrajectoryID: tr.id,
				TaskID:       "reach",
				Emb:          []float64{v},
			})
		}
	}
	return steps
}

// ExampleNewSession demonstrates creating a session and evaluating a batch.
func ExampleNewSession() {
	// eval.NewMultiSink() with no members drops every result; real callers
	// pass a JSONL, OTel, or Prometheus sink here.
	session, err := quietSession(sdk.WithSink(eval.NewMultiSink()))
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	report, err := session.EvaluateNamed(context.Background(), []string{"kendalls_tau"}, demoSteps(), 100)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("evaluators run: %d\n", len(report.Evaluators))
	fmt.Printf("first: %s over %d unit(s)\n", report.Evaluators[0].Name, report.Evaluators[0].Units)

	// Output:
	// evaluators run: 1
	// first: kendalls_tau over 1 unit(s)
}

// ExampleSession_Evaluators demonstrates listing the shipped metric variants.
func ExampleSession_Evaluators() {
	session, err := quietSession(sdk.WithSink(eval.NewMultiSink()))
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	fmt.Println(strings.Join(session.Evaluators().Names(), "\n"))

	// Output:
	// classify_knn
	// cycle_consistency_three_way
	// cycle_consistency_two_way
	// kendalls_tau
	// nearest_neighbour
	// reward_plot
}
